package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
	"github.com/schoollib/library/internal/pkg/helpers"
)

// LedgerService runs the borrow transaction lifecycle
type LedgerService interface {
	Issue(ctx context.Context, scope models.Scope, req *dto.IssueBookRequest) (*models.BorrowTransaction, error)
	IssueMany(ctx context.Context, scope models.Scope, req *dto.IssueManyRequest) (*dto.IssueManyResult, dto.Messages, error)
	ReturnPreview(ctx context.Context, scope models.Scope, id int64) (*dto.ReturnPreview, error)
	Return(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, dto.Messages, error)
	BulkReturn(ctx context.Context, scope models.Scope, ids []int64) (dto.BulkResult, dto.Messages, error)
	BulkAction(ctx context.Context, scope models.Scope, req *dto.BulkActionRequest) (dto.BulkResult, dto.Messages, error)
	Renew(ctx context.Context, scope models.Scope, id int64, days *int) (*models.BorrowTransaction, error)
	MarkLost(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error)
	MarkDamaged(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error)
	Cancel(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error)
	PayFine(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error)
	SweepOverdue(ctx context.Context, scope models.Scope) (dto.SweepResult, error)
	GetTransaction(ctx context.Context, scope models.Scope, id int64) (dto.TransactionView, error)
	ListTransactions(ctx context.Context, scope models.Scope, filter dto.TransactionFilter) (*dto.TransactionListResponse, error)
}

type ledgerServiceImpl struct {
	txRepo      TransactionStore
	bookRepo    BookStore
	studentRepo StudentStore
	policy      models.LendingPolicy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(txRepo TransactionStore, bookRepo BookStore, studentRepo StudentStore, policy models.LendingPolicy, logger zerolog.Logger) LedgerService {
	return &ledgerServiceImpl{
		txRepo:      txRepo,
		bookRepo:    bookRepo,
		studentRepo: studentRepo,
		policy:      policy,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ledgerServiceImpl) today() time.Time {
	return dates.Of(s.now())
}

// transactionLabel names a borrow in per-item messages.
func transactionLabel(t *models.BorrowTransaction) string {
	return fmt.Sprintf("%s - %s (%s)", t.StudentName, t.BookTitle, t.Status)
}

func copiesWord(n int) string {
	if n == 1 {
		return "copy"
	}
	return "copies"
}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := dates.Parse(*raw)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid due date format.")
	}
	return &d, nil
}

func decorate(t *models.BorrowTransaction, st *models.Student, book *models.Book) {
	t.StudentName = st.Name
	t.StudentNumber = st.StudentID
	t.ClassName = st.ClassGroupName
	t.BookTitle = book.Title
	t.BookISBN = helpers.Deref(book.ISBN)
	t.SchoolID = book.SchoolID
}

// Issue lends one copy of a book to a student
func (s *ledgerServiceImpl) Issue(ctx context.Context, scope models.Scope, req *dto.IssueBookRequest) (*models.BorrowTransaction, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	student, err := s.studentRepo.GetByID(ctx, req.StudentID, scope.SchoolFilter())
	if err != nil {
		return nil, err
	}
	book, err := s.bookRepo.GetByID(ctx, req.BookID, scope.SchoolFilter())
	if err != nil {
		return nil, err
	}
	if book.SchoolID != student.SchoolID {
		return nil, apperrors.NewValidationError("student and book belong to different schools")
	}
	if !book.CanIssue() {
		return nil, apperrors.ErrNoCopiesAvailable
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	issuedBy := scope.UserID
	t, err := models.NewBorrowTransaction(student.ID, book.ID, s.today(), due, &issuedBy, s.policy)
	if err != nil {
		return nil, err
	}
	t.Notes = strings.TrimSpace(req.Notes)

	if err := s.txRepo.Issue(ctx, t); err != nil {
		return nil, err
	}
	decorate(t, student, book)

	s.logger.Info().Int64("transactionId", t.ID).Int64("bookId", book.ID).Int64("studentId", student.ID).Msg("Book issued")
	return t, nil
}

// mergeIssueItems sums quantities of repeated titles, keeping first-seen order.
func mergeIssueItems(items []dto.IssueItem) []dto.IssueItem {
	merged := make([]dto.IssueItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if i, ok := index[item.BookID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.BookID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// IssueMany lends several titles to one student, capping each quantity at the
// copies on the shelf
func (s *ledgerServiceImpl) IssueMany(ctx context.Context, scope models.Scope, req *dto.IssueManyRequest) (*dto.IssueManyResult, dto.Messages, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, nil, err
	}
	student, err := s.studentRepo.GetByID(ctx, req.StudentID, scope.SchoolFilter())
	if err != nil {
		return nil, nil, err
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, nil, err
	}

	issuedBy := scope.UserID
	today := s.today()
	var warnings []string
	var batch []*models.BorrowTransaction
	books := make(map[int64]*models.Book)

	for _, item := range mergeIssueItems(req.Items) {
		if item.Quantity <= 0 {
			continue
		}
		book, err := s.bookRepo.GetByID(ctx, item.BookID, &student.SchoolID)
		if err != nil {
			if errors.Is(err, apperrors.ErrBookNotFound) {
				continue
			}
			return nil, nil, err
		}
		if !book.CanIssue() {
			continue
		}

		qty := item.Quantity
		if qty > book.Available {
			warnings = append(warnings, fmt.Sprintf("Only %d copy/copies of '%s' available (requested %d).",
				book.Available, book.Title, qty))
			qty = book.Available
		}
		for i := 0; i < qty; i++ {
			t, err := models.NewBorrowTransaction(student.ID, book.ID, today, due, &issuedBy, s.policy)
			if err != nil {
				return nil, nil, err
			}
			batch = append(batch, t)
		}
		books[book.ID] = book
	}

	var msgs dto.Messages
	if len(batch) == 0 {
		msgs.Warning("No valid books or quantities selected.")
		return &dto.IssueManyResult{Transactions: []*models.BorrowTransaction{}}, msgs, nil
	}

	if err := s.txRepo.IssueBatch(ctx, batch); err != nil {
		return nil, nil, err
	}
	for _, t := range batch {
		decorate(t, student, books[t.BookID])
	}

	msgs.Success(fmt.Sprintf("%d book %s issued to %s!", len(batch), copiesWord(len(batch)), student.Name))
	for _, w := range warnings {
		msgs.Warning(w)
	}
	return &dto.IssueManyResult{Issued: len(batch), Transactions: batch}, msgs, nil
}

func (s *ledgerServiceImpl) load(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	return s.txRepo.GetByID(ctx, id, scope.SchoolFilter())
}

// ReturnPreview shows what returning an active borrow today would charge
func (s *ledgerServiceImpl) ReturnPreview(ctx context.Context, scope models.Scope, id int64) (*dto.ReturnPreview, error) {
	t, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, apperrors.ErrTransactionNotFound
	}
	student, err := s.studentRepo.GetByID(ctx, t.StudentID, nil)
	if err != nil {
		return nil, err
	}
	book, err := s.bookRepo.GetByID(ctx, t.BookID, nil)
	if err != nil {
		return nil, err
	}

	today := s.today()
	daysLeft := 0
	if !t.DueDate.Before(today) {
		daysLeft = dates.DaysBetween(today, t.DueDate)
	}
	return &dto.ReturnPreview{
		Transaction: dto.NewTransactionView(t, today, s.policy.DailyFineRate),
		Student:     student,
		Book:        book,
		DaysLeft:    daysLeft,
		FineIfToday: t.CalculateFine(today, s.policy.DailyFineRate),
	}, nil
}

func (s *ledgerServiceImpl) returnOne(ctx context.Context, t *models.BorrowTransaction) error {
	if err := t.MarkReturned(s.today(), s.policy.DailyFineRate); err != nil {
		return err
	}
	return s.txRepo.Finish(ctx, t, models.AdjustmentFor(models.StatusReturned))
}

// Return closes an active borrow, charges any overdue fine and puts the copy back
func (s *ledgerServiceImpl) Return(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, dto.Messages, error) {
	t, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	due := t.DueDate
	if err := s.returnOne(ctx, t); err != nil {
		return nil, nil, err
	}

	var msgs dto.Messages
	if t.FineAmount > 0 {
		msgs.Warning(fmt.Sprintf("Returned %d day(s) late. Fine: %d UGX", dates.DaysBetween(due, *t.ReturnedDate), t.FineAmount))
	} else {
		msgs.Success("Book returned successfully.")
	}
	return t, msgs, nil
}

// BulkReturn returns every listed borrow that is still active in the caller's school
func (s *ledgerServiceImpl) BulkReturn(ctx context.Context, scope models.Scope, ids []int64) (dto.BulkResult, dto.Messages, error) {
	var result dto.BulkResult
	var msgs dto.Messages
	if err := requireLibrarian(scope); err != nil {
		return result, nil, err
	}
	if len(ids) == 0 {
		msgs.Warning("No books selected for return.")
		return result, msgs, nil
	}

	for _, id := range ids {
		t, err := s.txRepo.GetByID(ctx, id, scope.SchoolFilter())
		if err == nil {
			err = s.returnOne(ctx, t)
		}
		if err != nil {
			if apperrors.Is(err, apperrors.ErrTransactionNotFound, apperrors.ErrTransactionFinal) {
				result.Skipped++
				continue
			}
			return result, nil, err
		}
		result.Succeeded++
	}

	if result.Succeeded > 0 {
		msgs.Success(fmt.Sprintf("Successfully returned %d book(s).", result.Succeeded))
	} else {
		msgs.Warning("No valid books were returned.")
	}
	return result, msgs, nil
}

// BulkAction applies one administrative transition to many borrows, reporting
// each outcome; superusers only
func (s *ledgerServiceImpl) BulkAction(ctx context.Context, scope models.Scope, req *dto.BulkActionRequest) (dto.BulkResult, dto.Messages, error) {
	var result dto.BulkResult
	var msgs dto.Messages
	if err := requireSuperuser(scope); err != nil {
		return result, nil, err
	}

	for _, id := range req.IDs {
		t, err := s.txRepo.GetByID(ctx, id, nil)
		if err != nil {
			if errors.Is(err, apperrors.ErrTransactionNotFound) {
				result.Skipped++
				continue
			}
			return result, nil, err
		}

		var opErr error
		switch req.Action {
		case dto.BulkActionRenew:
			opErr = s.renewOne(ctx, t, s.policy.RenewalDays)
		case dto.BulkActionLost:
			opErr = s.finishOne(ctx, t, (*models.BorrowTransaction).MarkLost)
		case dto.BulkActionDamaged:
			opErr = s.finishOne(ctx, t, (*models.BorrowTransaction).MarkDamaged)
		case dto.BulkActionCancel:
			opErr = s.finishOne(ctx, t, (*models.BorrowTransaction).Cancel)
		default:
			opErr = s.returnOne(ctx, t)
		}

		if opErr != nil {
			if apperrors.KindOf(opErr) != apperrors.ErrValidationFailed {
				return result, nil, opErr
			}
			result.Skipped++
			msgs.Error(bulkFailureText(req.Action, t, opErr))
			continue
		}
		result.Succeeded++
		msgs.Success(bulkSuccessText(req.Action, t))
	}

	if result.Succeeded > 0 {
		msgs.Success(bulkSummaryText(req.Action, result.Succeeded))
	}
	return result, msgs, nil
}

func bulkSuccessText(action string, t *models.BorrowTransaction) string {
	switch action {
	case dto.BulkActionRenew:
		return "Renewed: " + transactionLabel(t)
	case dto.BulkActionLost:
		return "Marked as Lost: " + transactionLabel(t)
	case dto.BulkActionDamaged:
		return "Marked as Damaged: " + transactionLabel(t)
	case dto.BulkActionCancel:
		return "Cancelled: " + transactionLabel(t)
	default:
		return "Successfully returned: " + transactionLabel(t)
	}
}

func bulkFailureText(action string, t *models.BorrowTransaction, err error) string {
	switch action {
	case dto.BulkActionRenew:
		return fmt.Sprintf("Cannot renew %s: %v", transactionLabel(t), err)
	case dto.BulkActionLost:
		return fmt.Sprintf("Cannot mark %s as Lost (already finalized)", transactionLabel(t))
	case dto.BulkActionDamaged:
		return fmt.Sprintf("Cannot mark %s as Damaged (already finalized)", transactionLabel(t))
	case dto.BulkActionCancel:
		return fmt.Sprintf("Cannot cancel %s (already finalized)", transactionLabel(t))
	default:
		return fmt.Sprintf("Error returning %s: already %s.", transactionLabel(t), strings.ToLower(string(t.Status)))
	}
}

func bulkSummaryText(action string, n int) string {
	switch action {
	case dto.BulkActionRenew:
		return fmt.Sprintf("Successfully renewed %d transaction(s).", n)
	case dto.BulkActionLost:
		return fmt.Sprintf("Successfully marked %d as Lost.", n)
	case dto.BulkActionDamaged:
		return fmt.Sprintf("Successfully marked %d as Damaged.", n)
	case dto.BulkActionCancel:
		return fmt.Sprintf("Successfully cancelled %d transaction(s).", n)
	default:
		return fmt.Sprintf("Successfully returned %d transaction(s).", n)
	}
}

func (s *ledgerServiceImpl) renewOne(ctx context.Context, t *models.BorrowTransaction, days int) error {
	if !t.CanRenew() {
		return apperrors.ErrCannotRenew
	}
	due, count, err := s.txRepo.Renew(ctx, t.ID, days)
	if err != nil {
		return err
	}
	t.DueDate = due
	t.RenewalCount = count
	return nil
}

// Renew extends an ISSUED borrow, by the configured renewal length unless days is given
func (s *ledgerServiceImpl) Renew(ctx context.Context, scope models.Scope, id int64, days *int) (*models.BorrowTransaction, error) {
	t, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	extension := s.policy.RenewalDays
	if days != nil {
		extension = *days
	}
	if extension <= 0 {
		return nil, apperrors.NewValidationError("renewal days must be positive")
	}
	if err := s.renewOne(ctx, t, extension); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *ledgerServiceImpl) finishOne(ctx context.Context, t *models.BorrowTransaction, transition func(*models.BorrowTransaction) error) error {
	if err := transition(t); err != nil {
		return err
	}
	return s.txRepo.Finish(ctx, t, models.AdjustmentFor(t.Status))
}

func (s *ledgerServiceImpl) finish(ctx context.Context, scope models.Scope, id int64, transition func(*models.BorrowTransaction) error) (*models.BorrowTransaction, error) {
	t, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.finishOne(ctx, t, transition); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("transactionId", t.ID).Str("status", string(t.Status)).Msg("Borrow finalized")
	return t, nil
}

// MarkLost writes off the copy: it leaves the stock for good
func (s *ledgerServiceImpl) MarkLost(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error) {
	return s.finish(ctx, scope, id, (*models.BorrowTransaction).MarkLost)
}

// MarkDamaged keeps the copy on the books but never back on the shelf
func (s *ledgerServiceImpl) MarkDamaged(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error) {
	return s.finish(ctx, scope, id, (*models.BorrowTransaction).MarkDamaged)
}

// Cancel voids an issue and puts the copy back without a fine
func (s *ledgerServiceImpl) Cancel(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error) {
	return s.finish(ctx, scope, id, (*models.BorrowTransaction).Cancel)
}

// PayFine settles the fine on a returned borrow
func (s *ledgerServiceImpl) PayFine(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error) {
	t, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := t.PayFine(); err != nil {
		return nil, err
	}
	if err := s.txRepo.PayFine(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// SweepOverdue persists OVERDUE on ISSUED borrows past their due date
func (s *ledgerServiceImpl) SweepOverdue(ctx context.Context, scope models.Scope) (dto.SweepResult, error) {
	if err := requireLibrarian(scope); err != nil {
		return dto.SweepResult{}, err
	}
	n, err := s.txRepo.MarkOverdue(ctx, s.today(), scope.SchoolFilter())
	if err != nil {
		return dto.SweepResult{}, err
	}
	s.logger.Info().Int64("updated", n).Msg("Overdue sweep finished")
	return dto.SweepResult{Updated: n}, nil
}

// GetTransaction returns one borrow with its derived state
func (s *ledgerServiceImpl) GetTransaction(ctx context.Context, scope models.Scope, id int64) (dto.TransactionView, error) {
	t, err := s.load(ctx, scope, id)
	if err != nil {
		return dto.TransactionView{}, err
	}
	return dto.NewTransactionView(t, s.today(), s.policy.DailyFineRate), nil
}

// ListTransactions searches borrows in scope
func (s *ledgerServiceImpl) ListTransactions(ctx context.Context, scope models.Scope, filter dto.TransactionFilter) (*dto.TransactionListResponse, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	filter.SchoolID = scope.SchoolFilter()
	today := s.today()
	list, total, err := s.txRepo.List(ctx, filter, today)
	if err != nil {
		return nil, err
	}
	return &dto.TransactionListResponse{
		Transactions:   dto.NewTransactionViews(list, today, s.policy.DailyFineRate),
		Query:          filter.Query,
		PaginationInfo: helpers.NewPaginationInfo(total, filter.Page, filter.Size),
	}, nil
}
