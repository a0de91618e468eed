package dto

import (
	"time"

	"github.com/schoollib/library/internal/app/models"
)

// IssueBookRequest represents a single-copy issue
type IssueBookRequest struct {
	StudentID int64   `json:"studentId" binding:"required,gt=0"`
	BookID    int64   `json:"bookId" binding:"required,gt=0"`
	DueDate   *string `json:"dueDate,omitempty" example:"2026-05-01"`
	Notes     string  `json:"notes"`
}

// IssueItem is one title and how many copies of it to lend
type IssueItem struct {
	BookID   int64 `json:"bookId" binding:"required,gt=0"`
	Quantity int   `json:"quantity" binding:"min=0"`
}

// IssueManyRequest lends several titles to one student in one go
type IssueManyRequest struct {
	StudentID int64       `json:"studentId" binding:"required,gt=0"`
	DueDate   *string     `json:"dueDate,omitempty" example:"2026-05-01"`
	Items     []IssueItem `json:"items" binding:"dive"`
}

// IssueManyResult reports how many copies went out
type IssueManyResult struct {
	Issued       int                         `json:"issued"`
	Transactions []*models.BorrowTransaction `json:"transactions"`
}

// RenewRequest optionally overrides the renewal length
type RenewRequest struct {
	Days *int `json:"days,omitempty" binding:"omitempty,min=1,max=90"`
}

// BulkIDsRequest selects borrow transactions by id
type BulkIDsRequest struct {
	IDs []int64 `json:"ids" binding:"dive,gt=0"`
}

// Bulk actions accepted by BulkActionRequest
const (
	BulkActionReturn  = "return"
	BulkActionRenew   = "renew"
	BulkActionLost    = "lost"
	BulkActionDamaged = "damaged"
	BulkActionCancel  = "cancel"
)

// BulkActionRequest applies one ledger transition to many transactions
type BulkActionRequest struct {
	Action string  `json:"action" binding:"required,oneof=return renew lost damaged cancel"`
	IDs    []int64 `json:"ids" binding:"dive,gt=0"`
}

// BulkResult counts the outcome of a bulk operation
type BulkResult struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
}

// TransactionFilter carries list/search parameters
type TransactionFilter struct {
	Query       string
	Status      *models.TransactionStatus
	StudentID   *int64
	BookID      *int64
	OverdueOnly bool
	SchoolID    *int64
	Page        int
	Size        int
}

// TransactionView decorates a borrow with values derived from today's date
type TransactionView struct {
	*models.BorrowTransaction
	DisplayStatus models.TransactionStatus `json:"displayStatus" example:"OVERDUE"`
	DaysOverdue   int                      `json:"daysOverdue"`
	CurrentFine   int64                    `json:"currentFine"`
}

// NewTransactionView derives the display fields for today
func NewTransactionView(t *models.BorrowTransaction, today time.Time, dailyRate int64) TransactionView {
	return TransactionView{
		BorrowTransaction: t,
		DisplayStatus:     t.DisplayStatus(today),
		DaysOverdue:       t.DaysOverdue(today),
		CurrentFine:       t.CalculateFine(today, dailyRate),
	}
}

// NewTransactionViews maps a slice of borrows
func NewTransactionViews(list []*models.BorrowTransaction, today time.Time, dailyRate int64) []TransactionView {
	out := make([]TransactionView, 0, len(list))
	for _, t := range list {
		out = append(out, NewTransactionView(t, today, dailyRate))
	}
	return out
}

// TransactionListResponse represents a page of borrows
type TransactionListResponse struct {
	Transactions []TransactionView `json:"transactions"`
	Query        string            `json:"query"`
	PaginationInfo
}

// ReturnPreview is shown before a return is confirmed
type ReturnPreview struct {
	Transaction TransactionView `json:"transaction"`
	Student     *models.Student `json:"student"`
	Book        *models.Book    `json:"book"`
	DaysLeft    int             `json:"daysLeft"`
	FineIfToday int64           `json:"fineIfReturnedToday"`
}

// SweepResult reports the overdue sweep
type SweepResult struct {
	Updated int64 `json:"updated"`
}
