package dto

import "github.com/schoollib/library/internal/app/models"

// ClassGroupRequest represents class group create/update data
type ClassGroupRequest struct {
	Name         string `json:"name" binding:"required,max=50"`
	ShortCode    string `json:"shortCode" binding:"max=10"`
	TeacherName  string `json:"teacherName" binding:"max=100"`
	AcademicYear string `json:"academicYear" binding:"max=20"`
	// SchoolID is honoured for superusers only; everyone else is pinned to their school.
	SchoolID *int64 `json:"schoolId,omitempty" binding:"omitempty,gt=0"`
}

// StudentRequest represents student create/update data
type StudentRequest struct {
	StudentID     string  `json:"studentId" binding:"required,max=20"`
	Name          string  `json:"name" binding:"required,max=100"`
	Gender        string  `json:"gender" binding:"omitempty,oneof=M F O P"`
	ClassGroupID  *int64  `json:"classGroupId,omitempty" binding:"omitempty,gt=0"`
	RollNumber    string  `json:"rollNumber" binding:"max=20"`
	Email         string  `json:"email" binding:"omitempty,email"`
	Phone         string  `json:"phone" binding:"max=20"`
	AdmissionDate *string `json:"admissionDate,omitempty" example:"2026-01-15"`
	IsActive      *bool   `json:"isActive"`
	SchoolID      *int64  `json:"schoolId,omitempty" binding:"omitempty,gt=0"`
	UserID        *int64  `json:"userId,omitempty" binding:"omitempty,gt=0"`
}

// StudentFilter carries list/search parameters
type StudentFilter struct {
	Query        string
	ClassGroupID *int64
	SchoolID     *int64
	// Extended widens the text match to email and roll number.
	Extended bool
	Page     int
	Size     int
}

// StudentListResponse represents a page of students
type StudentListResponse struct {
	Students []*models.Student `json:"students"`
	Query    string            `json:"query"`
	PaginationInfo
}

// ClassGroupListResponse lists class groups
type ClassGroupListResponse struct {
	ClassGroups []*models.ClassGroup `json:"classGroups"`
}
