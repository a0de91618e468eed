package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/db"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
	"github.com/schoollib/library/internal/pkg/dberrors"
	"github.com/schoollib/library/internal/pkg/helpers"
	"github.com/schoollib/library/internal/pkg/logger"
)

// activeCondition matches borrows whose copy is still out.
const activeCondition = "t.status IN ('ISSUED', 'OVERDUE')"

// TransactionRepository handles database operations for borrow transactions
type TransactionRepository struct {
	db *db.PostgresDB
}

// NewTransactionRepository creates a new borrow transaction repository
func NewTransactionRepository(database *db.PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: database}
}

func selectTransactions() squirrel.SelectBuilder {
	return psql.Select(
		"t.id", "t.student_id", "t.book_id", "t.issued_date", "t.due_date", "t.returned_date",
		"t.status", "t.fine_amount", "t.fine_paid", "t.issued_by", "t.notes", "t.renewal_count",
		"t.max_renewals", "t.created_at", "t.updated_at",
		"st.name", "st.student_id", "COALESCE(cg.name, '')", "b.title", "COALESCE(b.isbn, '')", "b.school_id",
	).From("borrow_transactions t").
		Join("students st ON st.id = t.student_id").
		LeftJoin("class_groups cg ON cg.id = st.class_group_id").
		Join("books b ON b.id = t.book_id")
}

func scanTransaction(row pgx.Row) (*models.BorrowTransaction, error) {
	var t models.BorrowTransaction
	err := row.Scan(
		&t.ID, &t.StudentID, &t.BookID, &t.IssuedDate, &t.DueDate, &t.ReturnedDate,
		&t.Status, &t.FineAmount, &t.FinePaid, &t.IssuedBy, &t.Notes, &t.RenewalCount,
		&t.MaxRenewals, &t.CreatedAt, &t.UpdatedAt,
		&t.StudentName, &t.StudentNumber, &t.ClassName, &t.BookTitle, &t.BookISBN, &t.SchoolID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("error scanning borrow transaction: %w", err)
	}
	return &t, nil
}

// copyAdjustmentSQL builds the guarded counter update for one book. The WHERE
// clause only matches when the new counters still satisfy
// 0 <= available <= total_copies, so a stale or concurrent change updates nothing.
func copyAdjustmentSQL(bookID int64, adj models.CopyAdjustment) (string, []interface{}, error) {
	return psql.Update("books").
		Set("available", squirrel.Expr("available + ?", adj.Available)).
		Set("total_copies", squirrel.Expr("total_copies + ?", adj.Total)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": bookID}).
		Where(squirrel.Expr("available + ? >= 0", adj.Available)).
		Where(squirrel.Expr("available + ? <= total_copies + ?", adj.Available, adj.Total)).
		ToSql()
}

func adjustCopies(ctx context.Context, q db.Querier, bookID int64, adj models.CopyAdjustment) error {
	if adj == (models.CopyAdjustment{}) {
		return nil
	}

	sql, args, err := copyAdjustmentSQL(bookID, adj)
	if err != nil {
		return fmt.Errorf("error building copy adjustment SQL: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error adjusting book copies: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if adj.Available < 0 {
			return apperrors.ErrNoCopiesAvailable
		}
		logger.Warn().Int64("bookId", bookID).Int("total", adj.Total).Int("available", adj.Available).
			Msg("Copy adjustment rejected by counter guard")
		return apperrors.NewValidationError("book copy counts do not allow this change")
	}
	return nil
}

func insertTransaction(ctx context.Context, q db.Querier, t *models.BorrowTransaction) error {
	sql, args, err := psql.Insert("borrow_transactions").
		Columns("student_id", "book_id", "issued_date", "due_date", "status", "issued_by", "notes", "max_renewals").
		Values(t.StudentID, t.BookID, t.IssuedDate, t.DueDate, t.Status, t.IssuedBy, t.Notes, t.MaxRenewals).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building issue SQL: %w", err)
	}

	if err := q.QueryRow(ctx, sql, args...).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.NewResourceNotFoundError("student or book not found")
		}
		if dberrors.IsCheckConstraintError(err) {
			return apperrors.ErrInvalidDueDate
		}
		return fmt.Errorf("error creating borrow transaction: %w", err)
	}
	return nil
}

// Issue takes one copy off the shelf and records the borrow in the same
// database transaction. It fails with ErrNoCopiesAvailable when none are left.
func (r *TransactionRepository) Issue(ctx context.Context, t *models.BorrowTransaction) error {
	return r.IssueBatch(ctx, []*models.BorrowTransaction{t})
}

// IssueBatch issues every borrow or none of them
func (r *TransactionRepository) IssueBatch(ctx context.Context, list []*models.BorrowTransaction) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, t := range list {
			if err := adjustCopies(ctx, tx, t.BookID, models.IssueAdjustment); err != nil {
				return err
			}
			if err := insertTransaction(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// Finish moves an active borrow into the terminal state carried by t and applies
// adj to the book's counters. Only one caller can finish a given borrow.
func (r *TransactionRepository) Finish(ctx context.Context, t *models.BorrowTransaction, adj models.CopyAdjustment) error {
	sql, args, err := psql.Update("borrow_transactions").
		Set("status", t.Status).
		Set("returned_date", t.ReturnedDate).
		Set("fine_amount", t.FineAmount).
		Set("fine_paid", t.FinePaid).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": t.ID}).
		Where(squirrel.Eq{"status": []string{string(models.StatusIssued), string(models.StatusOverdue)}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building finish SQL: %w", err)
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("error updating borrow transaction: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrTransactionFinal
		}
		return adjustCopies(ctx, tx, t.BookID, adj)
	})
}

// Renew extends an ISSUED borrow by days and returns the new due date and count
func (r *TransactionRepository) Renew(ctx context.Context, id int64, days int) (time.Time, int, error) {
	sql, args, err := psql.Update("borrow_transactions").
		Set("due_date", squirrel.Expr("due_date + ?::int", days)).
		Set("renewal_count", squirrel.Expr("renewal_count + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "status": string(models.StatusIssued)}).
		Where("renewal_count < max_renewals").
		Suffix("RETURNING due_date, renewal_count").
		ToSql()
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("error building renew SQL: %w", err)
	}

	var due time.Time
	var count int
	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&due, &count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, 0, apperrors.ErrCannotRenew
		}
		return time.Time{}, 0, fmt.Errorf("error renewing borrow transaction: %w", err)
	}
	return due, count, nil
}

// PayFine marks an outstanding fine as settled
func (r *TransactionRepository) PayFine(ctx context.Context, id int64) error {
	sql, args, err := psql.Update("borrow_transactions").
		Set("fine_paid", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "fine_paid": false}).
		Where("fine_amount > 0").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building pay fine SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error paying fine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNoFineDue
	}
	return nil
}

// overdueSweepSQL builds the ISSUED to OVERDUE status write for borrows due before today.
func overdueSweepSQL(today time.Time, schoolFilter *int64) (string, []interface{}, error) {
	q := psql.Update("borrow_transactions").
		Set("status", string(models.StatusOverdue)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"status": string(models.StatusIssued)}).
		Where(squirrel.Lt{"due_date": dates.Of(today)})
	if schoolFilter != nil {
		q = q.Where(squirrel.Expr("book_id IN (SELECT id FROM books WHERE school_id = ?)", *schoolFilter))
	}
	return q.ToSql()
}

// MarkOverdue persists OVERDUE on every ISSUED borrow past its due date
func (r *TransactionRepository) MarkOverdue(ctx context.Context, today time.Time, schoolFilter *int64) (int64, error) {
	sql, args, err := overdueSweepSQL(today, schoolFilter)
	if err != nil {
		return 0, fmt.Errorf("error building overdue sweep SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error sweeping overdue borrows")
		return 0, fmt.Errorf("error sweeping overdue borrows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByID retrieves a borrow, restricted to books of schoolFilter when set
func (r *TransactionRepository) GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.BorrowTransaction, error) {
	sql, args, err := inSchool(selectTransactions().Where(squirrel.Eq{"t.id": id}), "b.school_id", schoolFilter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get borrow transaction SQL: %w", err)
	}
	return scanTransaction(r.db.Pool.QueryRow(ctx, sql, args...))
}

// transactionFilterQuery applies list filters. OVERDUE and ISSUED are matched by
// their derived meaning so a list agrees with the displayed status.
func transactionFilterQuery(q squirrel.SelectBuilder, filter dto.TransactionFilter, today time.Time) squirrel.SelectBuilder {
	today = dates.Of(today)
	q = inSchool(q, "b.school_id", filter.SchoolID)
	if filter.StudentID != nil {
		q = q.Where(squirrel.Eq{"t.student_id": *filter.StudentID})
	}
	if filter.BookID != nil {
		q = q.Where(squirrel.Eq{"t.book_id": *filter.BookID})
	}
	if filter.Status != nil {
		switch *filter.Status {
		case models.StatusOverdue:
			q = q.Where(activeCondition).Where(squirrel.Lt{"t.due_date": today})
		case models.StatusIssued:
			q = q.Where(squirrel.Eq{"t.status": string(models.StatusIssued)}).Where(squirrel.GtOrEq{"t.due_date": today})
		default:
			q = q.Where(squirrel.Eq{"t.status": string(*filter.Status)})
		}
	}
	if filter.OverdueOnly {
		q = q.Where(activeCondition).Where(squirrel.Lt{"t.due_date": today})
	}
	if filter.Query != "" {
		pattern := helpers.ContainsPattern(filter.Query)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"st.name": pattern},
			squirrel.ILike{"st.student_id": pattern},
			squirrel.ILike{"b.title": pattern},
			squirrel.ILike{"b.isbn": pattern},
		})
	}
	return q
}

// List returns one page of borrows matching filter plus the total match count
func (r *TransactionRepository) List(ctx context.Context, filter dto.TransactionFilter, today time.Time) ([]*models.BorrowTransaction, int64, error) {
	countQuery := psql.Select("COUNT(*)").From("borrow_transactions t").
		Join("students st ON st.id = t.student_id").
		Join("books b ON b.id = t.book_id")
	countSQL, countArgs, err := transactionFilterQuery(countQuery, filter, today).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("error building count borrows SQL: %w", err)
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting borrows: %w", err)
	}

	offset, limit := helpers.CalculateOffsetLimit(filter.Page, filter.Size)
	list, err := r.query(ctx, transactionFilterQuery(selectTransactions(), filter, today).
		OrderBy("t.issued_date DESC", "t.id DESC").Offset(offset).Limit(limit))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListActive returns borrows still out, newest first. A zero limit returns all.
func (r *TransactionRepository) ListActive(ctx context.Context, schoolFilter *int64, limit uint64) ([]*models.BorrowTransaction, error) {
	q := inSchool(selectTransactions().Where(activeCondition), "b.school_id", schoolFilter).
		OrderBy("t.issued_date DESC", "t.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.query(ctx, q)
}

// ListOverdue returns active borrows due before today, most overdue first
func (r *TransactionRepository) ListOverdue(ctx context.Context, schoolFilter *int64, today time.Time) ([]*models.BorrowTransaction, error) {
	q := inSchool(selectTransactions().Where(activeCondition), "b.school_id", schoolFilter).
		Where(squirrel.Lt{"t.due_date": dates.Of(today)}).
		OrderBy("t.due_date", "t.id")
	return r.query(ctx, q)
}

// ListByStudent returns a student's full borrow history, newest first
func (r *TransactionRepository) ListByStudent(ctx context.Context, studentID int64) ([]*models.BorrowTransaction, error) {
	return r.query(ctx, selectTransactions().Where(squirrel.Eq{"t.student_id": studentID}).OrderBy("t.issued_date DESC", "t.id DESC"))
}

func (r *TransactionRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*models.BorrowTransaction, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building borrow query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying borrows: %w", err)
	}
	defer rows.Close()

	list := make([]*models.BorrowTransaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
