package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
)

// AuthController handles authentication requests
type AuthController struct {
	authService   services.AuthService
	schoolService services.SchoolService
}

// NewAuthController creates a new AuthController
func NewAuthController(authService services.AuthService, schoolService services.SchoolService) *AuthController {
	return &AuthController{
		authService:   authService,
		schoolService: schoolService,
	}
}

// Login handles user login
// @Summary Log in
// @Description Authenticates a user by username and password and returns an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Invalid request format"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Account disabled"
// @Router /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.authService.Login(ctx.Request.Context(), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, "Login successful"))
}

// Me returns the authenticated user's account and school profile
// @Summary Current user
// @Description Returns the caller's account, school and librarian flag
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Current user"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	user, err := c.schoolService.GetSettings(ctx.Request.Context(), middleware.ScopeFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewUserResponse(user), ""))
}

// ChangePassword changes the caller's password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} dto.APIResponse "Password changed"
// @Failure 400 {object} dto.APIResponse "Invalid request or wrong current password"
// @Router /auth/password [put]
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	var req dto.ChangePasswordRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.schoolService.ChangePassword(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Password changed successfully"))
}
