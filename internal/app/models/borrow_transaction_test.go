package models

import (
	"testing"
	"time"

	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func issuedOn(t *testing.T, issued time.Time) *BorrowTransaction {
	t.Helper()
	tx, err := NewBorrowTransaction(1, 1, issued, nil, nil, DefaultLendingPolicy())
	require.NoError(t, err)
	return tx
}

func TestNewBorrowTransactionDefaultsDueDate(t *testing.T) {
	tx := issuedOn(t, time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, day(2026, 3, 1), tx.IssuedDate)
	assert.Equal(t, day(2026, 3, 15), tx.DueDate)
	assert.Equal(t, StatusIssued, tx.Status)
	assert.Equal(t, 2, tx.MaxRenewals)
}

func TestNewBorrowTransactionRejectsDueDateNotAfterIssue(t *testing.T) {
	today := day(2026, 3, 1)
	for _, due := range []time.Time{today, day(2026, 2, 27)} {
		due := due
		_, err := NewBorrowTransaction(1, 1, today, &due, nil, DefaultLendingPolicy())
		assert.ErrorIs(t, err, apperrors.ErrInvalidDueDate)
	}
}

func TestCalculateFine(t *testing.T) {
	tx := issuedOn(t, day(2026, 3, 1))

	assert.Equal(t, int64(3000), tx.CalculateFine(day(2026, 3, 18), 1000))
	assert.Equal(t, 3, tx.DaysOverdue(day(2026, 3, 18)))
	assert.True(t, tx.IsOverdue(day(2026, 3, 18)))

	assert.Zero(t, tx.CalculateFine(day(2026, 3, 15), 1000))
	assert.False(t, tx.IsOverdue(day(2026, 3, 15)))
}

func TestReturnChargesOverdueDays(t *testing.T) {
	late := issuedOn(t, day(2026, 3, 1))
	require.NoError(t, late.MarkReturned(day(2026, 3, 18), 1000))
	assert.Equal(t, StatusReturned, late.Status)
	assert.Equal(t, int64(3000), late.FineAmount)
	assert.False(t, late.FinePaid)
	require.NotNil(t, late.ReturnedDate)
	assert.Equal(t, day(2026, 3, 18), *late.ReturnedDate)

	onTime := issuedOn(t, day(2026, 3, 1))
	require.NoError(t, onTime.MarkReturned(day(2026, 3, 15), 1000))
	assert.Zero(t, onTime.FineAmount)
}

func TestReturnTwiceIsRejected(t *testing.T) {
	tx := issuedOn(t, day(2026, 3, 1))
	require.NoError(t, tx.MarkReturned(day(2026, 3, 20), 1000))
	assert.ErrorIs(t, tx.MarkReturned(day(2026, 3, 21), 1000), apperrors.ErrTransactionFinal)
	assert.Equal(t, int64(5000), tx.FineAmount)
}

func TestTerminalStatesHaveNoFine(t *testing.T) {
	tx := issuedOn(t, day(2026, 3, 1))
	require.NoError(t, tx.MarkLost())
	assert.Zero(t, tx.CalculateFine(day(2026, 6, 1), 1000))
	assert.False(t, tx.IsOverdue(day(2026, 6, 1)))
}

func TestRenewCapsAtMaxRenewals(t *testing.T) {
	tx := issuedOn(t, day(2026, 3, 1))

	require.NoError(t, tx.Renew(14))
	assert.Equal(t, day(2026, 3, 29), tx.DueDate)
	require.NoError(t, tx.Renew(14))
	assert.Equal(t, day(2026, 4, 12), tx.DueDate)

	assert.ErrorIs(t, tx.Renew(14), apperrors.ErrCannotRenew)
	assert.Equal(t, day(2026, 4, 12), tx.DueDate)
	assert.Equal(t, 2, tx.RenewalCount)
}

func TestRenewRequiresIssuedStatus(t *testing.T) {
	tx := issuedOn(t, day(2026, 3, 1))
	tx.Status = StatusOverdue
	assert.ErrorIs(t, tx.Renew(14), apperrors.ErrCannotRenew)
}

func TestFinishTransitions(t *testing.T) {
	cases := map[TransactionStatus]func(*BorrowTransaction) error{
		StatusLost:      (*BorrowTransaction).MarkLost,
		StatusDamaged:   (*BorrowTransaction).MarkDamaged,
		StatusCancelled: (*BorrowTransaction).Cancel,
	}
	for want, apply := range cases {
		tx := issuedOn(t, day(2026, 3, 1))
		require.NoError(t, apply(tx))
		assert.Equal(t, want, tx.Status)
		assert.ErrorIs(t, apply(tx), apperrors.ErrTransactionFinal)
	}
}

func TestPayFine(t *testing.T) {
	tx := issuedOn(t, day(2026, 3, 1))
	assert.ErrorIs(t, tx.PayFine(), apperrors.ErrNoFineDue)

	require.NoError(t, tx.MarkReturned(day(2026, 3, 17), 1000))
	assert.Equal(t, int64(2000), tx.UnpaidFine())
	require.NoError(t, tx.PayFine())
	assert.Zero(t, tx.UnpaidFine())
	assert.ErrorIs(t, tx.PayFine(), apperrors.ErrNoFineDue)
}

func TestDisplayStatus(t *testing.T) {
	tx := issuedOn(t, day(2026, 3, 1))
	assert.Equal(t, StatusIssued, tx.DisplayStatus(day(2026, 3, 10)))
	assert.Equal(t, StatusOverdue, tx.DisplayStatus(day(2026, 3, 16)))
}

// Replays ledger transitions against a book and checks the copy counters stay in range.
func TestCopyAdjustmentsKeepCountsInRange(t *testing.T) {
	book := &Book{TotalCopies: 3, Available: 3}
	apply := func(a CopyAdjustment) {
		book.TotalCopies += a.Total
		book.Available += a.Available
		require.True(t, book.CountsValid(), "total=%d available=%d", book.TotalCopies, book.Available)
	}

	for _, to := range []TransactionStatus{StatusLost, StatusDamaged, StatusReturned} {
		require.True(t, book.CanIssue())
		apply(IssueAdjustment)
		apply(AdjustmentFor(to))
	}
	assert.Equal(t, 2, book.TotalCopies)
	assert.Equal(t, 1, book.Available)

	apply(IssueAdjustment)
	assert.False(t, book.CanIssue())
	apply(AdjustmentFor(StatusCancelled))
	assert.Equal(t, 1, book.Available)
}

func TestBookStatusLabel(t *testing.T) {
	assert.Equal(t, "Not Available", (&Book{TotalCopies: 2, Available: 0}).StatusLabel())
	assert.Equal(t, "1 available", (&Book{TotalCopies: 2, Available: 1}).StatusLabel())
	assert.Equal(t, "Available", (&Book{TotalCopies: 2, Available: 2}).StatusLabel())
}

func TestScopeSchoolFilter(t *testing.T) {
	school := int64(7)
	assert.Nil(t, Scope{IsSuperuser: true}.SchoolFilter())
	assert.Equal(t, int64(7), *Scope{SchoolID: &school}.SchoolFilter())
	assert.Equal(t, int64(-1), *Scope{}.SchoolFilter())

	assert.True(t, Scope{SchoolID: &school}.CanAccessSchool(7))
	assert.False(t, Scope{SchoolID: &school}.CanAccessSchool(8))
	assert.True(t, Scope{IsSuperuser: true}.CanAccessSchool(8))
}

func TestParseGender(t *testing.T) {
	cases := map[string]Gender{
		"female":            GenderFemale,
		"mAle":              GenderMale,
		" O ":               GenderOther,
		"PREFER NOT TO SAY": GenderPreferNotToSay,
		"Prefer not to say": GenderPreferNotToSay,
	}
	for in, want := range cases {
		g, ok := ParseGender(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, g, in)
	}
	_, ok := ParseGender("x")
	assert.False(t, ok)
}
