package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/db"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dberrors"
	"github.com/schoollib/library/internal/pkg/helpers"
	"github.com/schoollib/library/internal/pkg/logger"
)

// BookRepository handles database operations for the catalog
type BookRepository struct {
	db *db.PostgresDB
}

// NewBookRepository creates a new book repository
func NewBookRepository(database *db.PostgresDB) *BookRepository {
	return &BookRepository{db: database}
}

func selectBooks() squirrel.SelectBuilder {
	return psql.Select(
		"b.id", "b.title", "b.author", "b.isbn", "b.category_id", "b.school_id",
		"b.total_copies", "b.available", "b.publication_year", "b.description",
		"b.created_at", "b.updated_at",
		"COALESCE(c.name, '')", "s.name",
	).From("books b").
		LeftJoin("categories c ON c.id = b.category_id").
		Join("schools s ON s.id = b.school_id")
}

func scanBook(row pgx.Row) (*models.Book, error) {
	var b models.Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.CategoryID, &b.SchoolID,
		&b.TotalCopies, &b.Available, &b.PublicationYear, &b.Description,
		&b.CreatedAt, &b.UpdatedAt,
		&b.CategoryName, &b.SchoolName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("error scanning book: %w", err)
	}
	return &b, nil
}

func (r *BookRepository) queryBooks(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Book, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building book query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying books: %w", err)
	}
	defer rows.Close()

	books := make([]*models.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// Create inserts a book. Available starts at total copies unless the caller set it.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	sql, args, err := psql.Insert("books").
		Columns("title", "author", "isbn", "category_id", "school_id", "total_copies", "available", "publication_year", "description").
		Values(book.Title, book.Author, book.ISBN, book.CategoryID, book.SchoolID, book.TotalCopies, book.Available, book.PublicationYear, book.Description).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building create book SQL: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		switch {
		case dberrors.IsCheckConstraintError(err):
			return apperrors.NewValidationError("available copies must be between 0 and total copies")
		case dberrors.IsForeignKeyError(err):
			return apperrors.NewResourceNotFoundError("school or category not found")
		}
		logger.Error().Err(err).Str("title", book.Title).Msg("Error creating book")
		return fmt.Errorf("error creating book: %w", err)
	}
	return nil
}

// GetByID retrieves a book, restricted to schoolFilter when set
func (r *BookRepository) GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.Book, error) {
	q := inSchool(selectBooks().Where(squirrel.Eq{"b.id": id}), "b.school_id", schoolFilter)
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get book SQL: %w", err)
	}
	return scanBook(r.db.Pool.QueryRow(ctx, sql, args...))
}

// bookFilterQuery applies the list filters shared by List and its count.
func bookFilterQuery(q squirrel.SelectBuilder, filter dto.BookFilter) squirrel.SelectBuilder {
	q = inSchool(q, "b.school_id", filter.SchoolID)
	if filter.Query != "" {
		pattern := helpers.ContainsPattern(filter.Query)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"b.title": pattern},
			squirrel.ILike{"b.author": pattern},
			squirrel.ILike{"b.isbn": pattern},
		})
	}
	if filter.CategoryID != nil {
		q = q.Where(squirrel.Eq{"b.category_id": *filter.CategoryID})
	}
	if filter.AvailableOnly {
		q = q.Where(squirrel.Gt{"b.available": 0})
	}
	return q
}

// List returns one page of books matching filter plus the total match count
func (r *BookRepository) List(ctx context.Context, filter dto.BookFilter) ([]*models.Book, int64, error) {
	countSQL, countArgs, err := bookFilterQuery(
		psql.Select("COUNT(*)").From("books b"), filter,
	).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("error building count books SQL: %w", err)
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting books: %w", err)
	}

	offset, limit := helpers.CalculateOffsetLimit(filter.Page, filter.Size)
	books, err := r.queryBooks(ctx, bookFilterQuery(selectBooks(), filter).OrderBy("b.title", "b.id").Offset(offset).Limit(limit))
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// ListAll returns every book in scope ordered by title
func (r *BookRepository) ListAll(ctx context.Context, schoolFilter *int64) ([]*models.Book, error) {
	return r.queryBooks(ctx, inSchool(selectBooks(), "b.school_id", schoolFilter).OrderBy("b.title", "b.id"))
}

// ListMostAvailable returns books with copies on the shelf, most available first
func (r *BookRepository) ListMostAvailable(ctx context.Context, schoolFilter *int64, limit uint64) ([]*models.Book, error) {
	q := inSchool(selectBooks(), "b.school_id", schoolFilter).
		Where(squirrel.Gt{"b.available": 0}).
		OrderBy("b.available DESC", "b.title").
		Limit(limit)
	return r.queryBooks(ctx, q)
}

// ListLowStock returns books with at most threshold copies available.
// A zero limit returns all of them.
func (r *BookRepository) ListLowStock(ctx context.Context, schoolFilter *int64, threshold int, limit uint64) ([]*models.Book, error) {
	q := inSchool(selectBooks(), "b.school_id", schoolFilter).
		Where(squirrel.LtOrEq{"b.available": threshold}).
		OrderBy("b.available", "b.title")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.queryBooks(ctx, q)
}

// Update saves catalog fields. A change of total copies shifts available by the
// same amount in one statement, and is refused when it would drop below the
// copies currently lent out.
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	sql, args, err := psql.Update("books").
		Set("title", book.Title).
		Set("author", book.Author).
		Set("isbn", book.ISBN).
		Set("category_id", book.CategoryID).
		Set("publication_year", book.PublicationYear).
		Set("description", book.Description).
		Set("available", squirrel.Expr("available + (? - total_copies)", book.TotalCopies)).
		Set("total_copies", book.TotalCopies).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": book.ID}).
		Where(squirrel.Expr("total_copies - available <= ?", book.TotalCopies)).
		Suffix("RETURNING available, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building update book SQL: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&book.Available, &book.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, book.ID, nil); getErr != nil {
				return getErr
			}
			return apperrors.NewValidationError("total copies cannot be lower than the copies currently borrowed")
		}
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrCategoryNotFound
		}
		return fmt.Errorf("error updating book: %w", err)
	}
	return nil
}

// Delete removes a book that has never been lent
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := psql.Delete("books").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("error building delete book SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrBookHasActiveBorrows
		}
		return fmt.Errorf("error deleting book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}
