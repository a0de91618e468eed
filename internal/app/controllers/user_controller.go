package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
)

// UserController handles account administration
type UserController struct {
	schoolService services.SchoolService
}

// NewUserController creates a new user controller
func NewUserController(schoolService services.SchoolService) *UserController {
	return &UserController{schoolService: schoolService}
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func userResponses(users []*models.User) []*dto.UserResponse {
	out := make([]*dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	return out
}

// CreateUser creates an account with an optional school profile
// @Summary Create a user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateUserRequest true "Account details"
// @Success 201 {object} dto.APIResponse{data=dto.UserResponse} "User created"
// @Failure 400 {object} dto.APIResponse "Invalid request format"
// @Failure 409 {object} dto.APIResponse "Username taken"
// @Router /users [post]
func (c *UserController) CreateUser(ctx *gin.Context) {
	var req dto.CreateUserRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	user, err := c.schoolService.CreateUser(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewUserResponse(user), "User created successfully"))
}

// ListUsers lists accounts visible to the caller
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.UserResponse} "Users"
// @Router /users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	users, err := c.schoolService.ListUsers(ctx.Request.Context(), middleware.ScopeFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(userResponses(users), ""))
}

// UpdateProfile assigns a school and librarian flag to a user
// @Summary Update a user's school profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.UpdateProfileRequest true "Profile"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Profile updated"
// @Failure 404 {object} dto.APIResponse "User or school not found"
// @Router /users/{id}/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	user, err := c.schoolService.UpdateProfile(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewUserResponse(user), "Profile updated successfully"))
}

// SetActive enables or disables an account
// @Summary Enable or disable a user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse "Account updated"
// @Failure 400 {object} dto.APIResponse "Cannot disable own account"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /users/{id}/active [put]
func (c *UserController) SetActive(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req setActiveRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.schoolService.SetUserActive(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, *req.IsActive); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	msg := "Account disabled"
	if *req.IsActive {
		msg = "Account enabled"
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, msg))
}
