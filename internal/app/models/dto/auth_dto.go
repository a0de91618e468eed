package dto

import "github.com/schoollib/library/internal/app/models"

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents JWT token information
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType" example:"Bearer"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// AuthResponse represents successful authentication response
type AuthResponse struct {
	Token TokenResponse `json:"token"`
	User  *UserResponse `json:"user"`
}

// UserResponse represents basic user information together with its school profile
type UserResponse struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	FullName    string         `json:"fullName"`
	IsSuperuser bool           `json:"isSuperuser"`
	IsActive    bool           `json:"isActive"`
	SchoolID    *int64         `json:"schoolId,omitempty"`
	SchoolName  string         `json:"schoolName,omitempty"`
	IsLibrarian bool           `json:"isLibrarian"`
	School      *models.School `json:"school,omitempty"`
}

// NewUserResponse flattens a user and its optional profile.
func NewUserResponse(u *models.User) *UserResponse {
	if u == nil {
		return nil
	}
	resp := &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
	}
	if p := u.Profile; p != nil {
		resp.SchoolID = p.SchoolID
		resp.IsLibrarian = p.IsLibrarian
		if p.School != nil {
			resp.SchoolName = p.School.Name
			resp.School = p.School
		}
	}
	return resp
}
