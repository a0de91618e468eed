package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/db"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dberrors"
	"github.com/schoollib/library/internal/pkg/logger"
)

// SchoolRepository handles database operations for schools
type SchoolRepository struct {
	db *db.PostgresDB
}

// NewSchoolRepository creates a new school repository
func NewSchoolRepository(database *db.PostgresDB) *SchoolRepository {
	return &SchoolRepository{db: database}
}

var schoolColumns = []string{
	"s.id", "s.name", "s.short_name", "s.address", "s.phone", "s.email", "s.is_active", "s.created_at", "s.updated_at",
}

func selectSchools() squirrel.SelectBuilder {
	return psql.Select(schoolColumns...).From("schools s")
}

func scanSchool(row pgx.Row) (*models.School, error) {
	var s models.School
	err := row.Scan(&s.ID, &s.Name, &s.ShortName, &s.Address, &s.Phone, &s.Email, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSchoolNotFound
		}
		return nil, fmt.Errorf("error scanning school: %w", err)
	}
	return &s, nil
}

// Create inserts a school
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	sql, args, err := psql.Insert("schools").
		Columns("name", "short_name", "address", "phone", "email", "is_active").
		Values(school.Name, school.ShortName, school.Address, school.Phone, school.Email, school.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building create school SQL: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&school.ID, &school.CreatedAt, &school.UpdatedAt)
	if err != nil {
		if dberrors.IsDuplicateKeyError(err) {
			return apperrors.ErrSchoolAlreadyExists
		}
		logger.Error().Err(err).Str("name", school.Name).Msg("Error creating school")
		return fmt.Errorf("error creating school: %w", err)
	}
	return nil
}

// GetByID retrieves a school by ID
func (r *SchoolRepository) GetByID(ctx context.Context, id int64) (*models.School, error) {
	sql, args, err := selectSchools().Where(squirrel.Eq{"s.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get school SQL: %w", err)
	}
	return scanSchool(r.db.Pool.QueryRow(ctx, sql, args...))
}

// FindByName resolves a school by exact name first, then by short name, both case-insensitively.
func (r *SchoolRepository) FindByName(ctx context.Context, name string) (*models.School, error) {
	name = strings.TrimSpace(name)
	sql, args, err := selectSchools().
		Where(squirrel.Or{
			squirrel.Expr("LOWER(s.name) = LOWER(?)", name),
			squirrel.Expr("LOWER(s.short_name) = LOWER(?)", name),
		}).
		OrderByClause("CASE WHEN LOWER(s.name) = LOWER(?) THEN 0 ELSE 1 END", name).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building find school SQL: %w", err)
	}
	return scanSchool(r.db.Pool.QueryRow(ctx, sql, args...))
}

// List returns all schools ordered by name
func (r *SchoolRepository) List(ctx context.Context) ([]*models.School, error) {
	sql, args, err := selectSchools().OrderBy("s.name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building list schools SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing schools: %w", err)
	}
	defer rows.Close()

	var schools []*models.School
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		schools = append(schools, s)
	}
	return schools, rows.Err()
}

// ListSummaries returns every school with its student, class and book counts
func (r *SchoolRepository) ListSummaries(ctx context.Context) ([]dto.SchoolSummary, error) {
	sql, args, err := psql.Select(
		"s.id", "s.name", "s.short_name", "s.is_active",
		"(SELECT COUNT(*) FROM students st WHERE st.school_id = s.id)",
		"(SELECT COUNT(*) FROM class_groups cg WHERE cg.school_id = s.id)",
		"(SELECT COUNT(*) FROM books b WHERE b.school_id = s.id)",
	).From("schools s").OrderBy("s.name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building school summaries SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing school summaries: %w", err)
	}
	defer rows.Close()

	var out []dto.SchoolSummary
	for rows.Next() {
		var s dto.SchoolSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.ShortName, &s.IsActive, &s.StudentCount, &s.ClassGroupCount, &s.BookCount); err != nil {
			return nil, fmt.Errorf("error scanning school summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update updates an existing school
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	sql, args, err := psql.Update("schools").
		Set("name", school.Name).
		Set("short_name", school.ShortName).
		Set("address", school.Address).
		Set("phone", school.Phone).
		Set("email", school.Email).
		Set("is_active", school.IsActive).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": school.ID}).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building update school SQL: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&school.CreatedAt, &school.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrSchoolNotFound
		}
		if dberrors.IsDuplicateKeyError(err) {
			return apperrors.ErrSchoolAlreadyExists
		}
		return fmt.Errorf("error updating school: %w", err)
	}
	return nil
}

// Delete removes a school that owns no students, classes or books
func (r *SchoolRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := psql.Delete("schools").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("error building delete school SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrSchoolHasRelations
		}
		return fmt.Errorf("error deleting school: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrSchoolNotFound
	}
	return nil
}
