package dto

import "github.com/schoollib/library/internal/app/models"

// ClassStudentCount is one bar of the per-class headcount
type ClassStudentCount struct {
	ClassName    string `json:"className"`
	StudentCount int    `json:"studentCount"`
}

// LibrarianDashboard is the landing view for librarians
type LibrarianDashboard struct {
	School               *models.School      `json:"school,omitempty"`
	ClassStats           []ClassStudentCount `json:"classStats"`
	TotalStudents        int                 `json:"totalStudents"`
	MonthlyStudentGrowth int                 `json:"monthlyStudentGrowth"`
	TotalClasses         int                 `json:"totalClasses"`
	TotalBooks           int                 `json:"totalBooks"`
	AvailableBooks       []BookResponse      `json:"availableBooks"`
	LowStockBooks        []BookResponse      `json:"lowStockBooks"`
	LowStockCount        int                 `json:"lowStockCount"`
	BorrowedBooks        []TransactionView   `json:"borrowedBooks"`
	TotalBorrowed        int                 `json:"totalBorrowed"`
	TodayIssued          int                 `json:"todayIssued"`
	OverdueCount         int                 `json:"overdueCount"`
	WeeklyBorrowCounts   [7]int              `json:"weeklyBorrowCounts"`
	WeeklyScaledHeights  [7]float64          `json:"weeklyScaledHeights"`
}

// StudentDashboard is the landing view for a student account
type StudentDashboard struct {
	Student       *models.Student   `json:"student,omitempty"`
	Borrows       []TransactionView `json:"borrows"`
	BorrowedCount int               `json:"borrowedCount"`
	OverdueCount  int               `json:"overdueCount"`
	TotalFine     int64             `json:"totalFine"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
}

// StudentBorrowStats summarises one student's borrowing
type StudentBorrowStats struct {
	ID            int64  `json:"id"`
	StudentID     string `json:"studentId"`
	Name          string `json:"name"`
	ClassName     string `json:"className"`
	TotalBorrows  int    `json:"totalBorrows"`
	ActiveBorrows int    `json:"activeBorrows"`
	OverdueCount  int    `json:"overdueCount"`
}

// HasBorrowed reports any borrow history
func (s StudentBorrowStats) HasBorrowed() bool {
	return s.TotalBorrows > 0
}

// ClassBorrowStats summarises borrowing in one class group
type ClassBorrowStats struct {
	ClassGroupID  int64  `json:"classGroupId"`
	Name          string `json:"name"`
	TotalStudents int    `json:"totalStudents"`
	BorrowerCount int    `json:"borrowerCount"`
	ActiveBorrows int    `json:"activeBorrows"`
	OverdueCount  int    `json:"overdueCount"`
}

// ReportsOverview is the librarian reports page
type ReportsOverview struct {
	TotalStudents       int                  `json:"totalStudents"`
	TotalBooks          int                  `json:"totalBooks"`
	TotalBorrowed       int                  `json:"totalBorrowed"`
	OverdueCount        int                  `json:"overdueCount"`
	OnTimePercentage    float64              `json:"onTimePercentage"`
	StudentsWithBorrows []StudentBorrowStats `json:"studentsWithBorrows"`
	ClassBorrowStats    []ClassBorrowStats   `json:"classBorrowStats"`
}

// ClassListsOverview lists every class with its borrowing summary
type ClassListsOverview struct {
	ClassSummaries []ClassBorrowStats `json:"classSummaries"`
}

// ClassStudentRow is one student line of the class detail page
type ClassStudentRow struct {
	*models.Student
	HasBorrowed   bool `json:"hasBorrowed"`
	ActiveBorrows int  `json:"activeBorrows"`
	OverdueCount  int  `json:"overdueCount"`
}

// ClassDetail lists a class group's students with their borrowing state
type ClassDetail struct {
	Title      string             `json:"title"`
	ClassGroup *models.ClassGroup `json:"classGroup"`
	Students   []ClassStudentRow  `json:"students"`
}

// LibraryStock summarises copies on and off the shelf
type LibraryStock struct {
	TotalCopies         int            `json:"totalCopies"`
	AvailableCopies     int            `json:"availableCopies"`
	BorrowedCopies      int            `json:"borrowedCopies"`
	AvailablePercentage float64        `json:"availablePercentage"`
	BorrowedPercentage  float64        `json:"borrowedPercentage"`
	LowStockBooks       []BookResponse `json:"lowStockBooks"`
	AllBooks            []BookResponse `json:"allBooks"`
}

// ReturnsList lists every borrow still out
type ReturnsList struct {
	BorrowedBooks []TransactionView `json:"borrowedBooks"`
}

// OverdueReport lists borrows past due with their accrued fines
type OverdueReport struct {
	Overdue      []TransactionView `json:"overdue"`
	TotalOverdue int               `json:"totalOverdue"`
	TotalFine    int64             `json:"totalFine"`
}
