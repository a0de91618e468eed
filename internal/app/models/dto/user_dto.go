package dto

// CreateUserRequest represents a staff or student account created by a superuser
type CreateUserRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=150"`
	Email       string `json:"email" binding:"omitempty,email"`
	Password    string `json:"password" binding:"required,min=8"`
	FullName    string `json:"fullName"`
	IsSuperuser bool   `json:"isSuperuser"`
	SchoolID    *int64 `json:"schoolId,omitempty" binding:"omitempty,gt=0"`
	IsLibrarian bool   `json:"isLibrarian"`
}

// UpdateProfileRequest assigns a school and librarian flag to an account
type UpdateProfileRequest struct {
	SchoolID    *int64 `json:"schoolId" binding:"omitempty,gt=0"`
	IsLibrarian bool   `json:"isLibrarian"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// SchoolRequest represents school create/update data
type SchoolRequest struct {
	Name      string `json:"name" binding:"required,max=200"`
	ShortName string `json:"shortName" binding:"required,max=20"`
	Address   string `json:"address"`
	Phone     string `json:"phone" binding:"max=20"`
	Email     string `json:"email" binding:"omitempty,email"`
	IsActive  *bool  `json:"isActive"`
}

// SchoolSummary is a school row with its related-record counts.
type SchoolSummary struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	ShortName       string `json:"shortName"`
	IsActive        bool   `json:"isActive"`
	StudentCount    int    `json:"studentCount"`
	ClassGroupCount int    `json:"classGroupCount"`
	BookCount       int    `json:"bookCount"`
}
