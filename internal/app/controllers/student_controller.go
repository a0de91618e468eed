package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
	"github.com/schoollib/library/internal/pkg/helpers"
)

// StudentController handles class groups and students
type StudentController struct {
	studentService services.StudentService
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService services.StudentService) *StudentController {
	return &StudentController{studentService: studentService}
}

// ListClassGroups lists class groups in the caller's school
// @Summary List class groups
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ClassGroupListResponse} "Class groups"
// @Router /class-groups [get]
func (c *StudentController) ListClassGroups(ctx *gin.Context) {
	groups, err := c.studentService.ListClassGroups(ctx.Request.Context(), middleware.ScopeFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ClassGroupListResponse{ClassGroups: groups}, ""))
}

// GetClassGroup retrieves a class group
// @Summary Get a class group
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class group ID"
// @Success 200 {object} dto.APIResponse{data=models.ClassGroup} "Class group"
// @Failure 404 {object} dto.APIResponse "Class group not found"
// @Router /class-groups/{id} [get]
func (c *StudentController) GetClassGroup(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	group, err := c.studentService.GetClassGroup(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(group, ""))
}

// CreateClassGroup creates a class group
// @Summary Create a class group
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ClassGroupRequest true "Class group"
// @Success 201 {object} dto.APIResponse{data=models.ClassGroup} "Class group created"
// @Failure 409 {object} dto.APIResponse "Name taken in this school"
// @Router /class-groups [post]
func (c *StudentController) CreateClassGroup(ctx *gin.Context) {
	var req dto.ClassGroupRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	group, err := c.studentService.CreateClassGroup(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(group, "Class group created successfully"))
}

// UpdateClassGroup updates a class group
// @Summary Update a class group
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class group ID"
// @Param request body dto.ClassGroupRequest true "Class group"
// @Success 200 {object} dto.APIResponse{data=models.ClassGroup} "Class group updated"
// @Failure 404 {object} dto.APIResponse "Class group not found"
// @Router /class-groups/{id} [put]
func (c *StudentController) UpdateClassGroup(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.ClassGroupRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	group, err := c.studentService.UpdateClassGroup(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(group, "Class group updated successfully"))
}

// DeleteClassGroup deletes a class group; its students keep their records without a class
// @Summary Delete a class group
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class group ID"
// @Success 200 {object} dto.APIResponse "Class group deleted"
// @Failure 404 {object} dto.APIResponse "Class group not found"
// @Router /class-groups/{id} [delete]
func (c *StudentController) DeleteClassGroup(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.studentService.DeleteClassGroup(ctx.Request.Context(), middleware.ScopeFrom(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Class group deleted successfully"))
}

// ListStudents lists and searches students
// @Summary List students
// @Description Searches name and student ID; extended=true also matches email and roll number.
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search text"
// @Param class query int false "Class group ID"
// @Param school query int false "School ID (superusers only)"
// @Param extended query bool false "Extended search"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.StudentListResponse} "Students"
// @Router /students [get]
func (c *StudentController) ListStudents(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	filter := dto.StudentFilter{
		Query:        strings.TrimSpace(ctx.Query("q")),
		ClassGroupID: middleware.QueryID(ctx, "class"),
		SchoolID:     middleware.QueryID(ctx, "school"),
		Extended:     helpers.IsTruthy(ctx.Query("extended")),
		Page:         page,
		Size:         size,
	}

	students, err := c.studentService.ListStudents(ctx.Request.Context(), middleware.ScopeFrom(ctx), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(students, ""))
}

// GetStudent retrieves a student
// @Summary Get a student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=models.Student} "Student"
// @Failure 404 {object} dto.APIResponse "Student not found"
// @Router /students/{id} [get]
func (c *StudentController) GetStudent(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	student, err := c.studentService.GetStudent(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student, ""))
}

// CreateStudent registers a student
// @Summary Create a student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.StudentRequest true "Student"
// @Success 201 {object} dto.APIResponse{data=models.Student} "Student created"
// @Failure 400 {object} dto.APIResponse "Invalid request format"
// @Failure 409 {object} dto.APIResponse "Student ID already exists"
// @Router /students [post]
func (c *StudentController) CreateStudent(ctx *gin.Context) {
	var req dto.StudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.studentService.CreateStudent(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(student, "Student created successfully"))
}

// UpdateStudent updates a student
// @Summary Update a student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body dto.StudentRequest true "Student"
// @Success 200 {object} dto.APIResponse{data=models.Student} "Student updated"
// @Failure 404 {object} dto.APIResponse "Student not found"
// @Failure 409 {object} dto.APIResponse "Student ID already exists"
// @Router /students/{id} [put]
func (c *StudentController) UpdateStudent(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.StudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.studentService.UpdateStudent(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student, "Student updated successfully"))
}

// DeleteStudent deletes a student without borrow history
// @Summary Delete a student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse "Student deleted"
// @Failure 404 {object} dto.APIResponse "Student not found"
// @Failure 409 {object} dto.APIResponse "Student has borrow records"
// @Router /students/{id} [delete]
func (c *StudentController) DeleteStudent(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.studentService.DeleteStudent(ctx.Request.Context(), middleware.ScopeFrom(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Student deleted successfully"))
}
