package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
)

// SchoolController handles school directory requests
type SchoolController struct {
	schoolService services.SchoolService
}

// NewSchoolController creates a new SchoolController
func NewSchoolController(schoolService services.SchoolService) *SchoolController {
	return &SchoolController{schoolService: schoolService}
}

// CreateSchool handles school creation
// @Summary Create a school
// @Tags schools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SchoolRequest true "School details"
// @Success 201 {object} dto.APIResponse{data=models.School} "School created"
// @Failure 400 {object} dto.APIResponse "Invalid request format"
// @Failure 403 {object} dto.APIResponse "Superuser access required"
// @Failure 409 {object} dto.APIResponse "School already exists"
// @Router /schools [post]
func (c *SchoolController) CreateSchool(ctx *gin.Context) {
	var req dto.SchoolRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	school, err := c.schoolService.CreateSchool(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(school, "School created successfully"))
}

// GetSchool retrieves a school by ID
// @Summary Get a school
// @Tags schools
// @Produce json
// @Security BearerAuth
// @Param id path int true "School ID"
// @Success 200 {object} dto.APIResponse{data=models.School} "School details"
// @Failure 404 {object} dto.APIResponse "School not found"
// @Router /schools/{id} [get]
func (c *SchoolController) GetSchool(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	school, err := c.schoolService.GetSchool(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(school, ""))
}

// ListSchools lists schools with their student, class and book counts
// @Summary List schools
// @Tags schools
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.SchoolSummary} "Schools"
// @Router /schools [get]
func (c *SchoolController) ListSchools(ctx *gin.Context) {
	schools, err := c.schoolService.ListSchools(ctx.Request.Context(), middleware.ScopeFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(schools, ""))
}

// UpdateSchool updates a school
// @Summary Update a school
// @Tags schools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "School ID"
// @Param request body dto.SchoolRequest true "School details"
// @Success 200 {object} dto.APIResponse{data=models.School} "School updated"
// @Failure 404 {object} dto.APIResponse "School not found"
// @Failure 409 {object} dto.APIResponse "Name or short name taken"
// @Router /schools/{id} [put]
func (c *SchoolController) UpdateSchool(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.SchoolRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	school, err := c.schoolService.UpdateSchool(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(school, "School updated successfully"))
}

// DeleteSchool deletes a school that owns no records
// @Summary Delete a school
// @Tags schools
// @Produce json
// @Security BearerAuth
// @Param id path int true "School ID"
// @Success 200 {object} dto.APIResponse "School deleted"
// @Failure 404 {object} dto.APIResponse "School not found"
// @Failure 409 {object} dto.APIResponse "School still has students, classes or books"
// @Router /schools/{id} [delete]
func (c *SchoolController) DeleteSchool(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.schoolService.DeleteSchool(ctx.Request.Context(), middleware.ScopeFrom(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "School deleted successfully"))
}
