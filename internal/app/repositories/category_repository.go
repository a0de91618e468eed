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

// CategoryRepository handles database operations for book categories
type CategoryRepository struct {
	db *db.PostgresDB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(database *db.PostgresDB) *CategoryRepository {
	return &CategoryRepository{db: database}
}

func selectCategories() squirrel.SelectBuilder {
	return psql.Select("c.id", "c.name", "c.description", "c.created_at").From("categories c")
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("error scanning category: %w", err)
	}
	return &c, nil
}

// Create inserts a category
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	sql, args, err := psql.Insert("categories").
		Columns("name", "description").
		Values(category.Name, category.Description).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building create category SQL: %w", err)
	}

	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&category.ID, &category.CreatedAt); err != nil {
		if dberrors.IsDuplicateKeyError(err) {
			return apperrors.ErrCategoryAlreadyExists
		}
		return fmt.Errorf("error creating category: %w", err)
	}
	return nil
}

// GetOrCreate returns the category with this name (case-insensitive), creating it when missing
func (r *CategoryRepository) GetOrCreate(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	existing, err := r.GetByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrCategoryNotFound) {
		return nil, err
	}

	category := &models.Category{Name: name}
	if err := r.Create(ctx, category); err != nil {
		// Lost a race with a concurrent import; read the winner.
		if errors.Is(err, apperrors.ErrCategoryAlreadyExists) {
			return r.GetByName(ctx, name)
		}
		return nil, err
	}
	return category, nil
}

// GetByID retrieves a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	sql, args, err := selectCategories().Where(squirrel.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get category SQL: %w", err)
	}
	return scanCategory(r.db.Pool.QueryRow(ctx, sql, args...))
}

// GetByName retrieves a category by name, case-insensitively
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	sql, args, err := selectCategories().Where(squirrel.Expr("LOWER(c.name) = LOWER(?)", name)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building get category by name SQL: %w", err)
	}
	return scanCategory(r.db.Pool.QueryRow(ctx, sql, args...))
}

// List returns all categories ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	sql, args, err := selectCategories().OrderBy("c.name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building list categories SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Update updates an existing category
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	sql, args, err := psql.Update("categories").
		Set("name", category.Name).
		Set("description", category.Description).
		Where(squirrel.Eq{"id": category.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building update category SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateKeyError(err) {
			return apperrors.ErrCategoryAlreadyExists
		}
		return fmt.Errorf("error updating category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}

// Delete removes a category; its books keep existing without one
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := psql.Delete("categories").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("error building delete category SQL: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}
