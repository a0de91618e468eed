package models

import "time"

// DefaultAcademicYear is used when a class group is created without one.
const DefaultAcademicYear = "2025/2026"

// ClassGroup is a school's grade/section grouping of students (e.g. "S4A", "P7 Blue").
type ClassGroup struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	ShortCode    string `json:"shortCode" db:"short_code"`
	TeacherName  string `json:"teacherName" db:"teacher_name"`
	AcademicYear string `json:"academicYear" db:"academic_year"`
	SchoolID     int64  `json:"schoolId" db:"school_id"`

	SchoolShortName string `json:"schoolShortName,omitempty"`
	StudentCount    int    `json:"studentCount"`
}

// Student defines the student model based on the 'students' table
type Student struct {
	ID            int64      `json:"id" db:"id"`
	StudentID     string     `json:"studentId" db:"student_id"`
	Name          string     `json:"name" db:"name"`
	Gender        *Gender    `json:"gender,omitempty" db:"gender"`
	ClassGroupID  *int64     `json:"classGroupId,omitempty" db:"class_group_id"`
	RollNumber    *string    `json:"rollNumber,omitempty" db:"roll_number"`
	Email         *string    `json:"email,omitempty" db:"email"`
	Phone         *string    `json:"phone,omitempty" db:"phone"`
	AdmissionDate *time.Time `json:"admissionDate,omitempty" db:"admission_date"`
	IsActive      bool       `json:"isActive" db:"is_active"`
	SchoolID      int64      `json:"schoolId" db:"school_id"`
	UserID        *int64     `json:"userId,omitempty" db:"user_id"`

	ClassGroupName string `json:"classGroupName,omitempty"`
	SchoolName     string `json:"schoolName,omitempty"`
}
