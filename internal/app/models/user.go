package models

import "time"

// User defines the account model based on the 'users' table
type User struct {
	ID          int64      `json:"id" db:"id"`
	Username    string     `json:"username" db:"username"`
	Email       string     `json:"email" db:"email"`
	Password    string     `json:"-" db:"password"`
	FullName    string     `json:"fullName" db:"full_name"`
	IsSuperuser bool       `json:"isSuperuser" db:"is_superuser"`
	IsActive    bool       `json:"isActive" db:"is_active"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`

	Profile *UserProfile `json:"profile,omitempty"`
}

// UserProfile links an account to the school it works in.
type UserProfile struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"userId" db:"user_id"`
	SchoolID    *int64    `json:"schoolId,omitempty" db:"school_id"`
	IsLibrarian bool      `json:"isLibrarian" db:"is_librarian"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`

	School *School `json:"school,omitempty"`
}
