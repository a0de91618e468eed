package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/db"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dberrors"
	"github.com/schoollib/library/internal/pkg/logger"
)

// UserRepository handles accounts and their school profiles
type UserRepository struct {
	db *db.PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(database *db.PostgresDB) *UserRepository {
	return &UserRepository{db: database}
}

// selectUsers joins the optional profile and school so one row carries the whole scope.
func selectUsers() squirrel.SelectBuilder {
	return psql.Select(
		"u.id", "u.username", "u.email", "u.password", "u.full_name", "u.is_superuser", "u.is_active",
		"u.last_login_at", "u.created_at", "u.updated_at",
		"p.id", "p.school_id", "COALESCE(p.is_librarian, FALSE)",
		"s.name", "s.short_name",
	).From("users u").
		LeftJoin("user_school_profiles p ON p.user_id = u.id").
		LeftJoin("schools s ON s.id = p.school_id")
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u                     models.User
		profileID, schoolID   *int64
		isLibrarian           bool
		schoolName, shortName *string
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.IsSuperuser, &u.IsActive,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
		&profileID, &schoolID, &isLibrarian,
		&schoolName, &shortName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("error scanning user: %w", err)
	}

	if profileID != nil {
		u.Profile = &models.UserProfile{ID: *profileID, UserID: u.ID, SchoolID: schoolID, IsLibrarian: isLibrarian}
		if schoolID != nil && schoolName != nil {
			u.Profile.School = &models.School{ID: *schoolID, Name: *schoolName}
			if shortName != nil {
				u.Profile.School.ShortName = *shortName
			}
		}
	}
	return &u, nil
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	sql, args, err := psql.Insert("users").
		Columns("username", "email", "password", "full_name", "is_superuser", "is_active").
		Values(user.Username, user.Email, user.Password, user.FullName, user.IsSuperuser, user.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building create user SQL: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_username_key") {
			return apperrors.NewConflictError("username already exists")
		}
		logger.Error().Err(err).Str("username", user.Username).Msg("Error creating user")
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user with its profile
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	sql, args, err := selectUsers().Where(squirrel.Eq{"u.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get user SQL: %w", err)
	}
	return scanUser(r.db.Pool.QueryRow(ctx, sql, args...))
}

// GetByUsername retrieves a user by login name
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	sql, args, err := selectUsers().Where(squirrel.Eq{"u.username": username}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get user by username SQL: %w", err)
	}
	return scanUser(r.db.Pool.QueryRow(ctx, sql, args...))
}

// List returns users, restricted to one school's profiles when schoolFilter is set
func (r *UserRepository) List(ctx context.Context, schoolFilter *int64) ([]*models.User, error) {
	q := inSchool(selectUsers(), "p.school_id", schoolFilter).OrderBy("u.username")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building list users SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpsertProfile creates or replaces the school profile of a user
func (r *UserRepository) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	sql, args, err := psql.Insert("user_school_profiles").
		Columns("user_id", "school_id", "is_librarian").
		Values(profile.UserID, profile.SchoolID, profile.IsLibrarian).
		Suffix(`ON CONFLICT (user_id) DO UPDATE
			SET school_id = EXCLUDED.school_id, is_librarian = EXCLUDED.is_librarian, updated_at = NOW()
			RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building upsert profile SQL: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrSchoolNotFound
		}
		return fmt.Errorf("error saving user profile: %w", err)
	}
	return nil
}

// UpdatePassword stores a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	return r.touch(ctx, userID, "password", hash)
}

// UpdateLastLogin stamps a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	return r.touch(ctx, userID, "last_login_at", at)
}

// SetActive enables or disables an account
func (r *UserRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	return r.touch(ctx, userID, "is_active", active)
}

func (r *UserRepository) touch(ctx context.Context, userID int64, column string, value interface{}) error {
	sql, args, err := psql.Update("users").
		Set(column, value).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building update user SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating user %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
