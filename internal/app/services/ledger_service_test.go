package services

import (
	"context"
	"testing"

	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	store   *memStore
	svc     *ledgerServiceImpl
	scope   models.Scope
	student *models.Student
	book    *models.Book
}

func newLedgerFixture(copies int) *ledgerFixture {
	m := newMemStore()
	school := m.addSchool("Hillside")
	cg := m.addClass(school.ID, "S1")
	svc := NewLedgerService(fakeTransactions{m}, fakeBooks{m}, fakeStudents{m}, models.DefaultLendingPolicy(), silentLogger()).(*ledgerServiceImpl)
	svc.now = fixedClock(testToday)
	return &ledgerFixture{
		store:   m,
		svc:     svc,
		scope:   librarianOf(school.ID),
		student: m.addStudent(school.ID, &cg.ID, "S001", "Alice"),
		book:    m.addBook(school.ID, "Physics", copies),
	}
}

func (f *ledgerFixture) issue(t *testing.T) *models.BorrowTransaction {
	t.Helper()
	tx, err := f.svc.Issue(context.Background(), f.scope, &dto.IssueBookRequest{StudentID: f.student.ID, BookID: f.book.ID})
	require.NoError(t, err)
	return tx
}

func (f *ledgerFixture) shelf() (available, total int) {
	b := f.store.books[f.book.ID]
	return b.Available, b.TotalCopies
}

func TestIssueTakesCopyOffShelf(t *testing.T) {
	f := newLedgerFixture(3)
	tx := f.issue(t)

	assert.Equal(t, models.StatusIssued, tx.Status)
	assert.Equal(t, testToday, tx.IssuedDate)
	assert.Equal(t, dates.AddDays(testToday, 14), tx.DueDate)
	assert.Equal(t, "Alice", tx.StudentName)
	assert.Equal(t, "Physics", tx.BookTitle)

	available, total := f.shelf()
	assert.Equal(t, 2, available)
	assert.Equal(t, 3, total)
}

func TestIssueWithoutCopiesCreatesNothing(t *testing.T) {
	f := newLedgerFixture(1)
	f.issue(t)

	_, err := f.svc.Issue(context.Background(), f.scope, &dto.IssueBookRequest{StudentID: f.student.ID, BookID: f.book.ID})
	assert.ErrorIs(t, err, apperrors.ErrNoCopiesAvailable)
	assert.Len(t, f.store.txs, 1)

	available, _ := f.shelf()
	assert.Equal(t, 0, available)
}

func TestIssueRejectsBadDueDate(t *testing.T) {
	f := newLedgerFixture(2)
	ctx := context.Background()

	garbled := "next week"
	_, err := f.svc.Issue(ctx, f.scope, &dto.IssueBookRequest{StudentID: f.student.ID, BookID: f.book.ID, DueDate: &garbled})
	assert.Equal(t, "Invalid due date format.", err.Error())

	past := "2026-03-01"
	_, err = f.svc.Issue(ctx, f.scope, &dto.IssueBookRequest{StudentID: f.student.ID, BookID: f.book.ID, DueDate: &past})
	assert.ErrorIs(t, err, apperrors.ErrInvalidDueDate)
	assert.Empty(t, f.store.txs)
}

func TestIssueAcrossSchools(t *testing.T) {
	f := newLedgerFixture(2)
	other := f.store.addSchool("Riverside")
	foreign := f.store.addBook(other.ID, "Chemistry", 2)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, f.scope, &dto.IssueBookRequest{StudentID: f.student.ID, BookID: foreign.ID})
	assert.ErrorIs(t, err, apperrors.ErrBookNotFound)

	_, err = f.svc.Issue(ctx, superuser(), &dto.IssueBookRequest{StudentID: f.student.ID, BookID: foreign.ID})
	assert.Equal(t, apperrors.ErrValidationFailed, apperrors.KindOf(err))
	assert.Equal(t, 2, f.store.books[foreign.ID].Available)
}

func TestLedgerRequiresLibrarian(t *testing.T) {
	f := newLedgerFixture(2)
	ctx := context.Background()
	req := &dto.IssueBookRequest{StudentID: f.student.ID, BookID: f.book.ID}

	_, err := f.svc.Issue(ctx, models.Scope{UserID: 5, SchoolID: f.scope.SchoolID}, req)
	assert.Equal(t, apperrors.ErrPermissionDenied, apperrors.KindOf(err))

	_, err = f.svc.Issue(ctx, models.Scope{UserID: 5, IsLibrarian: true}, req)
	assert.ErrorIs(t, err, apperrors.ErrNoSchoolAssigned)
}

func TestLateReturnChargesFine(t *testing.T) {
	f := newLedgerFixture(2)
	tx := f.issue(t)

	f.svc.now = fixedClock(dates.AddDays(tx.DueDate, 3))
	returned, msgs, err := f.svc.Return(context.Background(), f.scope, tx.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusReturned, returned.Status)
	assert.Equal(t, int64(3000), returned.FineAmount)
	assert.False(t, returned.FinePaid)
	assert.Equal(t, []string{"Returned 3 day(s) late. Fine: 3000 UGX"}, msgs.Texts(dto.MessageWarning))

	available, _ := f.shelf()
	assert.Equal(t, 2, available)
	assert.Equal(t, int64(3000), f.store.txs[tx.ID].FineAmount)
}

func TestOnTimeReturn(t *testing.T) {
	f := newLedgerFixture(2)
	tx := f.issue(t)

	f.svc.now = fixedClock(tx.DueDate)
	returned, msgs, err := f.svc.Return(context.Background(), f.scope, tx.ID)
	require.NoError(t, err)
	assert.Zero(t, returned.FineAmount)
	assert.Equal(t, []string{"Book returned successfully."}, msgs.Texts(dto.MessageSuccess))
}

func TestReturnTwiceIsRejected(t *testing.T) {
	f := newLedgerFixture(2)
	tx := f.issue(t)
	ctx := context.Background()

	_, _, err := f.svc.Return(ctx, f.scope, tx.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Return(ctx, f.scope, tx.ID)
	assert.ErrorIs(t, err, apperrors.ErrTransactionFinal)

	available, total := f.shelf()
	assert.Equal(t, 2, available)
	assert.Equal(t, 2, total)
}

func TestReturnPreview(t *testing.T) {
	f := newLedgerFixture(2)
	tx := f.issue(t)
	ctx := context.Background()

	preview, err := f.svc.ReturnPreview(ctx, f.scope, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, preview.DaysLeft)
	assert.Zero(t, preview.FineIfToday)

	f.svc.now = fixedClock(dates.AddDays(tx.DueDate, 2))
	preview, err = f.svc.ReturnPreview(ctx, f.scope, tx.ID)
	require.NoError(t, err)
	assert.Zero(t, preview.DaysLeft)
	assert.Equal(t, int64(2000), preview.FineIfToday)
	assert.Equal(t, models.StatusOverdue, preview.Transaction.DisplayStatus)
}

func TestRenewStopsAtMaxRenewals(t *testing.T) {
	f := newLedgerFixture(2)
	tx := f.issue(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		renewed, err := f.svc.Renew(ctx, f.scope, tx.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, i, renewed.RenewalCount)
	}
	assert.Equal(t, dates.AddDays(testToday, 42), f.store.txs[tx.ID].DueDate)

	_, err := f.svc.Renew(ctx, f.scope, tx.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrCannotRenew)
	assert.Equal(t, 2, f.store.txs[tx.ID].RenewalCount)
}

func TestRenewWithCustomDays(t *testing.T) {
	f := newLedgerFixture(2)
	tx := f.issue(t)

	days := 7
	renewed, err := f.svc.Renew(context.Background(), f.scope, tx.ID, &days)
	require.NoError(t, err)
	assert.Equal(t, dates.AddDays(testToday, 21), renewed.DueDate)
}

func TestFinalTransitionsAdjustStock(t *testing.T) {
	ctx := context.Background()

	f := newLedgerFixture(3)
	lost := f.issue(t)
	_, err := f.svc.MarkLost(ctx, f.scope, lost.ID)
	require.NoError(t, err)
	available, total := f.shelf()
	assert.Equal(t, 2, available)
	assert.Equal(t, 2, total)

	damaged := f.issue(t)
	_, err = f.svc.MarkDamaged(ctx, f.scope, damaged.ID)
	require.NoError(t, err)
	available, total = f.shelf()
	assert.Equal(t, 1, available)
	assert.Equal(t, 2, total)

	cancelled := f.issue(t)
	_, err = f.svc.Cancel(ctx, f.scope, cancelled.ID)
	require.NoError(t, err)
	available, total = f.shelf()
	assert.Equal(t, 1, available)
	assert.Equal(t, 2, total)

	_, err = f.svc.Cancel(ctx, f.scope, lost.ID)
	assert.ErrorIs(t, err, apperrors.ErrTransactionFinal)
}

func TestPayFine(t *testing.T) {
	f := newLedgerFixture(1)
	tx := f.issue(t)
	ctx := context.Background()

	_, err := f.svc.PayFine(ctx, f.scope, tx.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoFineDue)

	f.svc.now = fixedClock(dates.AddDays(tx.DueDate, 1))
	_, _, err = f.svc.Return(ctx, f.scope, tx.ID)
	require.NoError(t, err)

	paid, err := f.svc.PayFine(ctx, f.scope, tx.ID)
	require.NoError(t, err)
	assert.True(t, paid.FinePaid)
	assert.Zero(t, paid.UnpaidFine())

	_, err = f.svc.PayFine(ctx, f.scope, tx.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoFineDue)
}

func TestIssueManyCapsAtAvailableCopies(t *testing.T) {
	f := newLedgerFixture(2)
	empty := f.store.addBook(f.student.SchoolID, "Chemistry", 0)
	spare := f.store.addBook(f.student.SchoolID, "Biology", 4)

	result, msgs, err := f.svc.IssueMany(context.Background(), f.scope, &dto.IssueManyRequest{
		StudentID: f.student.ID,
		Items: []dto.IssueItem{
			{BookID: f.book.ID, Quantity: 3},
			{BookID: empty.ID, Quantity: 1},
			{BookID: spare.ID, Quantity: 0},
			{BookID: 9999, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Issued)
	assert.Len(t, f.store.txs, 2)
	assert.Equal(t, []string{"2 book copies issued to Alice!"}, msgs.Texts(dto.MessageSuccess))
	assert.Equal(t, []string{"Only 2 copy/copies of 'Physics' available (requested 3)."}, msgs.Texts(dto.MessageWarning))

	available, _ := f.shelf()
	assert.Equal(t, 0, available)
	assert.Equal(t, 4, f.store.books[spare.ID].Available)
}

func TestIssueManyMergesRepeatedTitles(t *testing.T) {
	f := newLedgerFixture(2)
	spare := f.store.addBook(f.student.SchoolID, "Biology", 4)

	result, msgs, err := f.svc.IssueMany(context.Background(), f.scope, &dto.IssueManyRequest{
		StudentID: f.student.ID,
		Items: []dto.IssueItem{
			{BookID: f.book.ID, Quantity: 2},
			{BookID: spare.ID, Quantity: 1},
			{BookID: f.book.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Issued)
	assert.Len(t, f.store.txs, 3)
	assert.Equal(t, []string{"Only 2 copy/copies of 'Physics' available (requested 3)."}, msgs.Texts(dto.MessageWarning))

	available, _ := f.shelf()
	assert.Equal(t, 0, available)
	assert.Equal(t, 3, f.store.books[spare.ID].Available)
}

func TestIssueManyWithNothingToIssue(t *testing.T) {
	f := newLedgerFixture(0)

	result, msgs, err := f.svc.IssueMany(context.Background(), f.scope, &dto.IssueManyRequest{
		StudentID: f.student.ID,
		Items:     []dto.IssueItem{{BookID: f.book.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Zero(t, result.Issued)
	assert.Equal(t, []string{"No valid books or quantities selected."}, msgs.Texts(dto.MessageWarning))
	assert.Empty(t, f.store.txs)
}

func TestBulkReturnSkipsFinishedAndUnknown(t *testing.T) {
	f := newLedgerFixture(3)
	ctx := context.Background()
	first, second, done := f.issue(t), f.issue(t), f.issue(t)
	_, _, err := f.svc.Return(ctx, f.scope, done.ID)
	require.NoError(t, err)

	result, msgs, err := f.svc.BulkReturn(ctx, f.scope, []int64{first.ID, second.ID, done.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, dto.BulkResult{Succeeded: 2, Skipped: 2}, result)
	assert.Equal(t, []string{"Successfully returned 2 book(s)."}, msgs.Texts(dto.MessageSuccess))

	available, _ := f.shelf()
	assert.Equal(t, 3, available)

	_, msgs, err = f.svc.BulkReturn(ctx, f.scope, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"No books selected for return."}, msgs.Texts(dto.MessageWarning))

	_, msgs, err = f.svc.BulkReturn(ctx, f.scope, []int64{done.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"No valid books were returned."}, msgs.Texts(dto.MessageWarning))
}

func TestBulkActionReportsEachTransaction(t *testing.T) {
	f := newLedgerFixture(2)
	ctx := context.Background()
	active, done := f.issue(t), f.issue(t)
	_, _, err := f.svc.Return(ctx, f.scope, done.ID)
	require.NoError(t, err)

	_, _, err = f.svc.BulkAction(ctx, f.scope, &dto.BulkActionRequest{Action: dto.BulkActionLost, IDs: []int64{active.ID}})
	assert.Equal(t, apperrors.ErrPermissionDenied, apperrors.KindOf(err))

	result, msgs, err := f.svc.BulkAction(ctx, superuser(), &dto.BulkActionRequest{
		Action: dto.BulkActionLost,
		IDs:    []int64{active.ID, done.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, dto.BulkResult{Succeeded: 1, Skipped: 1}, result)
	assert.Equal(t, []string{
		"Marked as Lost: Alice - Physics (LOST)",
		"Successfully marked 1 as Lost.",
	}, msgs.Texts(dto.MessageSuccess))
	assert.Equal(t, []string{"Cannot mark Alice - Physics (RETURNED) as Lost (already finalized)"}, msgs.Texts(dto.MessageError))

	available, total := f.shelf()
	assert.Equal(t, 1, available)
	assert.Equal(t, 1, total)
}

func TestSweepOverduePersistsStatus(t *testing.T) {
	f := newLedgerFixture(2)
	tx := f.issue(t)
	ctx := context.Background()

	f.svc.now = fixedClock(dates.AddDays(tx.DueDate, 1))
	res, err := f.svc.SweepOverdue(ctx, f.scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Updated)
	assert.Equal(t, models.StatusOverdue, f.store.txs[tx.ID].Status)

	// An OVERDUE borrow can still be returned but no longer renewed.
	_, err = f.svc.Renew(ctx, f.scope, tx.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrCannotRenew)
	_, _, err = f.svc.Return(ctx, f.scope, tx.ID)
	assert.NoError(t, err)
}

func TestCountersStayInRange(t *testing.T) {
	f := newLedgerFixture(2)
	ctx := context.Background()

	a, b := f.issue(t), f.issue(t)
	_, err := f.svc.Issue(ctx, f.scope, &dto.IssueBookRequest{StudentID: f.student.ID, BookID: f.book.ID})
	assert.ErrorIs(t, err, apperrors.ErrNoCopiesAvailable)

	_, err = f.svc.MarkLost(ctx, f.scope, a.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Return(ctx, f.scope, b.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Return(ctx, f.scope, b.ID)
	assert.Error(t, err)

	for _, book := range f.store.books {
		assert.True(t, book.CountsValid(), "book %d: available=%d total=%d", book.ID, book.Available, book.TotalCopies)
	}
	available, total := f.shelf()
	assert.Equal(t, 1, available)
	assert.Equal(t, 1, total)
}

func TestListTransactionsIsScoped(t *testing.T) {
	f := newLedgerFixture(2)
	f.issue(t)
	other := f.store.addSchool("Riverside")
	st := f.store.addStudent(other.ID, nil, "R001", "Bob")
	book := f.store.addBook(other.ID, "Chemistry", 1)
	_, err := f.svc.Issue(context.Background(), superuser(), &dto.IssueBookRequest{StudentID: st.ID, BookID: book.ID})
	require.NoError(t, err)

	list, err := f.svc.ListTransactions(context.Background(), f.scope, dto.TransactionFilter{Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, list.Transactions, 1)
	assert.Equal(t, "Alice", list.Transactions[0].StudentName)
}
