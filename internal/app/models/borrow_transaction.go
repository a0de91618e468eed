package models

import (
	"time"

	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
)

// LendingPolicy carries the configurable ledger constants.
type LendingPolicy struct {
	DailyFineRate  int64
	LoanPeriodDays int
	RenewalDays    int
	MaxRenewals    int
}

// DefaultLendingPolicy returns the stock lending rules.
func DefaultLendingPolicy() LendingPolicy {
	return LendingPolicy{
		DailyFineRate:  1000,
		LoanPeriodDays: 14,
		RenewalDays:    14,
		MaxRenewals:    2,
	}
}

// CopyAdjustment is the change a ledger transition applies to a book's counters.
type CopyAdjustment struct {
	Total     int
	Available int
}

// AdjustmentFor returns the counter change for moving an active borrow into to.
// Issuing already took the copy off the shelf, so LOST only shrinks the stock and
// DAMAGED leaves the counters alone.
func AdjustmentFor(to TransactionStatus) CopyAdjustment {
	switch to {
	case StatusReturned, StatusCancelled:
		return CopyAdjustment{Available: 1}
	case StatusLost:
		return CopyAdjustment{Total: -1}
	default:
		return CopyAdjustment{}
	}
}

// IssueAdjustment is the counter change applied when a copy is lent out.
var IssueAdjustment = CopyAdjustment{Available: -1}

// BorrowTransaction records one copy of a book lent to a student.
type BorrowTransaction struct {
	ID           int64             `json:"id" db:"id"`
	StudentID    int64             `json:"studentId" db:"student_id"`
	BookID       int64             `json:"bookId" db:"book_id"`
	IssuedDate   time.Time         `json:"issuedDate" db:"issued_date"`
	DueDate      time.Time         `json:"dueDate" db:"due_date"`
	ReturnedDate *time.Time        `json:"returnedDate,omitempty" db:"returned_date"`
	Status       TransactionStatus `json:"status" db:"status"`
	FineAmount   int64             `json:"fineAmount" db:"fine_amount"`
	FinePaid     bool              `json:"finePaid" db:"fine_paid"`
	IssuedBy     *int64            `json:"issuedBy,omitempty" db:"issued_by"`
	Notes        string            `json:"notes" db:"notes"`
	RenewalCount int               `json:"renewalCount" db:"renewal_count"`
	MaxRenewals  int               `json:"maxRenewals" db:"max_renewals"`
	CreatedAt    time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time         `json:"updatedAt" db:"updated_at"`

	// Joined display fields
	StudentName   string `json:"studentName,omitempty"`
	StudentNumber string `json:"studentNumber,omitempty"`
	ClassName     string `json:"className,omitempty"`
	BookTitle     string `json:"bookTitle,omitempty"`
	BookISBN      string `json:"bookIsbn,omitempty"`
	SchoolID      int64  `json:"schoolId,omitempty"`
}

// NewBorrowTransaction builds an ISSUED record. A nil dueDate falls back to the
// policy's loan period.
func NewBorrowTransaction(studentID, bookID int64, today time.Time, dueDate *time.Time, issuedBy *int64, policy LendingPolicy) (*BorrowTransaction, error) {
	issued := dates.Of(today)
	due := dates.AddDays(issued, policy.LoanPeriodDays)
	if dueDate != nil {
		due = dates.Of(*dueDate)
	}
	if !due.After(issued) {
		return nil, apperrors.ErrInvalidDueDate
	}
	return &BorrowTransaction{
		StudentID:   studentID,
		BookID:      bookID,
		IssuedDate:  issued,
		DueDate:     due,
		Status:      StatusIssued,
		IssuedBy:    issuedBy,
		MaxRenewals: policy.MaxRenewals,
	}, nil
}

// IsActive reports whether the copy is still out.
func (t *BorrowTransaction) IsActive() bool {
	return t.Status.IsActive()
}

// IsOverdue reports an active borrow past its due date.
func (t *BorrowTransaction) IsOverdue(today time.Time) bool {
	return t.IsActive() && dates.Of(today).After(dates.Of(t.DueDate))
}

// DaysOverdue is zero unless the borrow is overdue.
func (t *BorrowTransaction) DaysOverdue(today time.Time) int {
	if !t.IsOverdue(today) {
		return 0
	}
	return dates.DaysBetween(t.DueDate, today)
}

// CalculateFine is the fine accrued so far on an active borrow.
func (t *BorrowTransaction) CalculateFine(today time.Time, dailyRate int64) int64 {
	return int64(t.DaysOverdue(today)) * dailyRate
}

// DisplayStatus folds the derived overdue state into ISSUED.
func (t *BorrowTransaction) DisplayStatus(today time.Time) TransactionStatus {
	if t.Status == StatusIssued && t.IsOverdue(today) {
		return StatusOverdue
	}
	return t.Status
}

// CanRenew reports ISSUED with renewals left.
func (t *BorrowTransaction) CanRenew() bool {
	return t.Status == StatusIssued && t.RenewalCount < t.MaxRenewals
}

// Renew pushes the due date out by days.
func (t *BorrowTransaction) Renew(days int) error {
	if !t.CanRenew() {
		return apperrors.ErrCannotRenew
	}
	t.DueDate = dates.AddDays(t.DueDate, days)
	t.RenewalCount++
	return nil
}

// MarkReturned closes the borrow and charges any overdue fine.
func (t *BorrowTransaction) MarkReturned(today time.Time, dailyRate int64) error {
	if !t.IsActive() {
		return apperrors.ErrTransactionFinal
	}
	returned := dates.Of(today)
	t.FineAmount = t.CalculateFine(returned, dailyRate)
	t.FinePaid = false
	t.ReturnedDate = &returned
	t.Status = StatusReturned
	return nil
}

// MarkLost closes the borrow as lost.
func (t *BorrowTransaction) MarkLost() error {
	return t.finish(StatusLost)
}

// MarkDamaged closes the borrow as damaged.
func (t *BorrowTransaction) MarkDamaged() error {
	return t.finish(StatusDamaged)
}

// Cancel voids an issue made in error.
func (t *BorrowTransaction) Cancel() error {
	return t.finish(StatusCancelled)
}

func (t *BorrowTransaction) finish(to TransactionStatus) error {
	if !t.IsActive() {
		return apperrors.ErrTransactionFinal
	}
	t.Status = to
	return nil
}

// PayFine settles an outstanding fine.
func (t *BorrowTransaction) PayFine() error {
	if t.FineAmount <= 0 || t.FinePaid {
		return apperrors.ErrNoFineDue
	}
	t.FinePaid = true
	return nil
}

// UnpaidFine is the amount still owed on this record.
func (t *BorrowTransaction) UnpaidFine() int64 {
	if t.FinePaid {
		return 0
	}
	return t.FineAmount
}
