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

// StudentRepository handles database operations for students
type StudentRepository struct {
	db *db.PostgresDB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(database *db.PostgresDB) *StudentRepository {
	return &StudentRepository{db: database}
}

var studentInsertColumns = []string{
	"student_id", "name", "gender", "class_group_id", "roll_number", "email", "phone",
	"admission_date", "is_active", "school_id", "user_id",
}

func selectStudents() squirrel.SelectBuilder {
	return psql.Select(
		"st.id", "st.student_id", "st.name", "st.gender", "st.class_group_id", "st.roll_number",
		"st.email", "st.phone", "st.admission_date", "st.is_active", "st.school_id", "st.user_id",
		"COALESCE(cg.name, '')", "s.name",
	).From("students st").
		LeftJoin("class_groups cg ON cg.id = st.class_group_id").
		Join("schools s ON s.id = st.school_id")
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	var st models.Student
	err := row.Scan(
		&st.ID, &st.StudentID, &st.Name, &st.Gender, &st.ClassGroupID, &st.RollNumber,
		&st.Email, &st.Phone, &st.AdmissionDate, &st.IsActive, &st.SchoolID, &st.UserID,
		&st.ClassGroupName, &st.SchoolName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, fmt.Errorf("error scanning student: %w", err)
	}
	return &st, nil
}

func studentValues(st *models.Student) []interface{} {
	return []interface{}{
		st.StudentID, st.Name, st.Gender, st.ClassGroupID, st.RollNumber, st.Email, st.Phone,
		st.AdmissionDate, st.IsActive, st.SchoolID, st.UserID,
	}
}

func mapStudentWriteError(err error) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, "students_student_id_key"):
		return apperrors.ErrStudentIDAlreadyExists
	case dberrors.IsDuplicateConstraintError(err, "students_user_id_key"):
		return apperrors.NewConflictError("user account is already linked to another student")
	case dberrors.IsForeignKeyError(err):
		return apperrors.NewResourceNotFoundError("school, class group or user not found")
	}
	return nil
}

func insertStudent(ctx context.Context, q db.Querier, st *models.Student) error {
	sql, args, err := psql.Insert("students").
		Columns(studentInsertColumns...).
		Values(studentValues(st)...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building create student SQL: %w", err)
	}

	if err := q.QueryRow(ctx, sql, args...).Scan(&st.ID); err != nil {
		if mapped := mapStudentWriteError(err); mapped != nil {
			return mapped
		}
		logger.Error().Err(err).Str("studentId", st.StudentID).Msg("Error creating student")
		return fmt.Errorf("error creating student: %w", err)
	}
	return nil
}

// Create inserts a student
func (r *StudentRepository) Create(ctx context.Context, st *models.Student) error {
	return insertStudent(ctx, r.db.Pool, st)
}

// CreateMany inserts all students in one transaction; any failure writes none of them
func (r *StudentRepository) CreateMany(ctx context.Context, students []*models.Student) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, st := range students {
			if err := insertStudent(ctx, tx, st); err != nil {
				return fmt.Errorf("student %s: %w", st.StudentID, err)
			}
		}
		return nil
	})
}

// GetByID retrieves a student, restricted to schoolFilter when set
func (r *StudentRepository) GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.Student, error) {
	return r.getOne(ctx, inSchool(selectStudents().Where(squirrel.Eq{"st.id": id}), "st.school_id", schoolFilter))
}

// GetByStudentID retrieves a student by the school-issued identifier
func (r *StudentRepository) GetByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	return r.getOne(ctx, selectStudents().Where(squirrel.Eq{"st.student_id": studentID}))
}

// GetByUserID retrieves the student linked to a login account
func (r *StudentRepository) GetByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.getOne(ctx, selectStudents().Where(squirrel.Eq{"st.user_id": userID}))
}

func (r *StudentRepository) getOne(ctx context.Context, q squirrel.SelectBuilder) (*models.Student, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get student SQL: %w", err)
	}
	return scanStudent(r.db.Pool.QueryRow(ctx, sql, args...))
}

// ExistingStudentIDs reports which of ids are already taken system-wide
func (r *StudentRepository) ExistingStudentIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	taken := make(map[string]bool)
	if len(ids) == 0 {
		return taken, nil
	}

	sql, args, err := psql.Select("student_id").From("students").Where(squirrel.Eq{"student_id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building student id lookup SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error looking up student ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning student id: %w", err)
		}
		taken[id] = true
	}
	return taken, rows.Err()
}

// studentFilterQuery applies the list filters shared by List and its count.
func studentFilterQuery(q squirrel.SelectBuilder, filter dto.StudentFilter) squirrel.SelectBuilder {
	q = inSchool(q, "st.school_id", filter.SchoolID)
	if filter.ClassGroupID != nil {
		q = q.Where(squirrel.Eq{"st.class_group_id": *filter.ClassGroupID})
	}
	if filter.Query != "" {
		pattern := helpers.ContainsPattern(filter.Query)
		match := squirrel.Or{
			squirrel.ILike{"st.name": pattern},
			squirrel.ILike{"st.student_id": pattern},
			squirrel.ILike{"cg.name": pattern},
		}
		if filter.Extended {
			match = append(match, squirrel.ILike{"st.email": pattern}, squirrel.ILike{"st.roll_number": pattern})
		}
		q = q.Where(match)
	}
	return q
}

// List returns one page of students matching filter plus the total match count
func (r *StudentRepository) List(ctx context.Context, filter dto.StudentFilter) ([]*models.Student, int64, error) {
	countSQL, countArgs, err := studentFilterQuery(
		psql.Select("COUNT(*)").From("students st").LeftJoin("class_groups cg ON cg.id = st.class_group_id"),
		filter,
	).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("error building count students SQL: %w", err)
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting students: %w", err)
	}

	offset, limit := helpers.CalculateOffsetLimit(filter.Page, filter.Size)
	students, err := r.query(ctx, studentFilterQuery(selectStudents(), filter).OrderBy("st.name", "st.id").Offset(offset).Limit(limit))
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

// ListAll returns every student in scope, optionally limited to one class, ordered by name
func (r *StudentRepository) ListAll(ctx context.Context, schoolFilter *int64, classGroupID *int64) ([]*models.Student, error) {
	q := inSchool(selectStudents(), "st.school_id", schoolFilter)
	if classGroupID != nil {
		q = q.Where(squirrel.Eq{"st.class_group_id": *classGroupID})
	}
	return r.query(ctx, q.OrderBy("st.name", "st.id"))
}

func (r *StudentRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Student, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building student query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying students: %w", err)
	}
	defer rows.Close()

	students := make([]*models.Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// Update updates an existing student
func (r *StudentRepository) Update(ctx context.Context, st *models.Student) error {
	values := studentValues(st)
	builder := psql.Update("students")
	for i, col := range studentInsertColumns {
		builder = builder.Set(col, values[i])
	}
	sql, args, err := builder.Where(squirrel.Eq{"id": st.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("error building update student SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		if mapped := mapStudentWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("error updating student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

// Delete removes a student with no borrow history
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := psql.Delete("students").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("error building delete student SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrStudentHasBorrows
		}
		return fmt.Errorf("error deleting student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}
