package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/db"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dberrors"
)

// ClassGroupRepository handles database operations for class groups
type ClassGroupRepository struct {
	db *db.PostgresDB
}

// NewClassGroupRepository creates a new class group repository
func NewClassGroupRepository(database *db.PostgresDB) *ClassGroupRepository {
	return &ClassGroupRepository{db: database}
}

func selectClassGroups() squirrel.SelectBuilder {
	return psql.Select(
		"cg.id", "cg.name", "cg.short_code", "cg.teacher_name", "cg.academic_year", "cg.school_id",
		"s.short_name",
		"(SELECT COUNT(*) FROM students st WHERE st.class_group_id = cg.id)",
	).From("class_groups cg").
		Join("schools s ON s.id = cg.school_id")
}

func scanClassGroup(row pgx.Row) (*models.ClassGroup, error) {
	var cg models.ClassGroup
	err := row.Scan(&cg.ID, &cg.Name, &cg.ShortCode, &cg.TeacherName, &cg.AcademicYear, &cg.SchoolID,
		&cg.SchoolShortName, &cg.StudentCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrClassGroupNotFound
		}
		return nil, fmt.Errorf("error scanning class group: %w", err)
	}
	return &cg, nil
}

// Create inserts a class group
func (r *ClassGroupRepository) Create(ctx context.Context, cg *models.ClassGroup) error {
	sql, args, err := psql.Insert("class_groups").
		Columns("name", "short_code", "teacher_name", "academic_year", "school_id").
		Values(cg.Name, cg.ShortCode, cg.TeacherName, cg.AcademicYear, cg.SchoolID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building create class group SQL: %w", err)
	}

	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&cg.ID); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "class_groups_school_name_key") {
			return apperrors.ErrClassGroupAlreadyExists
		}
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrSchoolNotFound
		}
		return fmt.Errorf("error creating class group: %w", err)
	}
	return nil
}

// GetByID retrieves a class group, restricted to schoolFilter when set
func (r *ClassGroupRepository) GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.ClassGroup, error) {
	q := inSchool(selectClassGroups().Where(squirrel.Eq{"cg.id": id}), "cg.school_id", schoolFilter)
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get class group SQL: %w", err)
	}
	return scanClassGroup(r.db.Pool.QueryRow(ctx, sql, args...))
}

// FindByName looks a class up by name within one school, case-insensitively
func (r *ClassGroupRepository) FindByName(ctx context.Context, schoolID int64, name string) (*models.ClassGroup, error) {
	sql, args, err := selectClassGroups().
		Where(squirrel.Eq{"cg.school_id": schoolID}).
		Where(squirrel.Expr("LOWER(cg.name) = LOWER(?)", strings.TrimSpace(name))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building find class group SQL: %w", err)
	}
	return scanClassGroup(r.db.Pool.QueryRow(ctx, sql, args...))
}

// List returns class groups in scope ordered by name
func (r *ClassGroupRepository) List(ctx context.Context, schoolFilter *int64) ([]*models.ClassGroup, error) {
	sql, args, err := inSchool(selectClassGroups(), "cg.school_id", schoolFilter).OrderBy("cg.name", "s.short_name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building list class groups SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing class groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*models.ClassGroup, 0)
	for rows.Next() {
		cg, err := scanClassGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, cg)
	}
	return groups, rows.Err()
}

// Update updates an existing class group
func (r *ClassGroupRepository) Update(ctx context.Context, cg *models.ClassGroup) error {
	sql, args, err := psql.Update("class_groups").
		Set("name", cg.Name).
		Set("short_code", cg.ShortCode).
		Set("teacher_name", cg.TeacherName).
		Set("academic_year", cg.AcademicYear).
		Where(squirrel.Eq{"id": cg.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building update class group SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "class_groups_school_name_key") {
			return apperrors.ErrClassGroupAlreadyExists
		}
		return fmt.Errorf("error updating class group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClassGroupNotFound
	}
	return nil
}

// Delete removes a class group; its students stay enrolled without one
func (r *ClassGroupRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := psql.Delete("class_groups").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("error building delete class group SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting class group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClassGroupNotFound
	}
	return nil
}
