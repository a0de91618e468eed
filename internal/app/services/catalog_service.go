package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/helpers"
)

// CatalogService manages categories and books
type CatalogService interface {
	CreateCategory(ctx context.Context, scope models.Scope, req *dto.CategoryRequest) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, scope models.Scope, id int64, req *dto.CategoryRequest) (*models.Category, error)
	DeleteCategory(ctx context.Context, scope models.Scope, id int64) error

	CreateBook(ctx context.Context, scope models.Scope, req *dto.CreateBookRequest) (*models.Book, error)
	GetBook(ctx context.Context, scope models.Scope, id int64) (*models.Book, error)
	ListBooks(ctx context.Context, scope models.Scope, filter dto.BookFilter) (*dto.BookListResponse, error)
	UpdateBook(ctx context.Context, scope models.Scope, id int64, req *dto.UpdateBookRequest) (*models.Book, error)
	DeleteBook(ctx context.Context, scope models.Scope, id int64) error
}

type catalogServiceImpl struct {
	categoryRepo CategoryStore
	bookRepo     BookStore
	logger       zerolog.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(categoryRepo CategoryStore, bookRepo BookStore, logger zerolog.Logger) CatalogService {
	return &catalogServiceImpl{
		categoryRepo: categoryRepo,
		bookRepo:     bookRepo,
		logger:       logger,
	}
}

// CreateCategory adds a category shared by every school
func (s *catalogServiceImpl) CreateCategory(ctx context.Context, scope models.Scope, req *dto.CategoryRequest) (*models.Category, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	category := &models.Category{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns all categories
func (s *catalogServiceImpl) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.categoryRepo.List(ctx)
}

// UpdateCategory edits a category
func (s *catalogServiceImpl) UpdateCategory(ctx context.Context, scope models.Scope, id int64, req *dto.CategoryRequest) (*models.Category, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = strings.TrimSpace(req.Name)
	category.Description = req.Description
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory removes a category; its books become uncategorised
func (s *catalogServiceImpl) DeleteCategory(ctx context.Context, scope models.Scope, id int64) error {
	if err := requireSuperuser(scope); err != nil {
		return err
	}
	return s.categoryRepo.Delete(ctx, id)
}

func (s *catalogServiceImpl) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	_, err := s.categoryRepo.GetByID(ctx, *id)
	return err
}

// CreateBook adds a book with every copy on the shelf
func (s *catalogServiceImpl) CreateBook(ctx context.Context, scope models.Scope, req *dto.CreateBookRequest) (*models.Book, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	schoolID, err := owningSchool(scope, req.SchoolID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		ISBN:            helpers.NullIfBlank(req.ISBN),
		CategoryID:      req.CategoryID,
		SchoolID:        schoolID,
		TotalCopies:     req.TotalCopies,
		Available:       req.TotalCopies,
		PublicationYear: req.PublicationYear,
		Description:     req.Description,
	}
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("bookId", book.ID).Int64("schoolId", schoolID).Msg("Book added")
	return book, nil
}

// GetBook returns a book in the caller's school
func (s *catalogServiceImpl) GetBook(ctx context.Context, scope models.Scope, id int64) (*models.Book, error) {
	return s.bookRepo.GetByID(ctx, id, scope.SchoolFilter())
}

// ListBooks searches the caller's catalog
func (s *catalogServiceImpl) ListBooks(ctx context.Context, scope models.Scope, filter dto.BookFilter) (*dto.BookListResponse, error) {
	filter.SchoolID = scope.SchoolFilter()
	books, total, err := s.bookRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.BookListResponse{
		Books:          dto.NewBookResponses(books),
		Query:          filter.Query,
		PaginationInfo: helpers.NewPaginationInfo(total, filter.Page, filter.Size),
	}, nil
}

// UpdateBook edits a book; a new total keeps the lent-out count unchanged
func (s *catalogServiceImpl) UpdateBook(ctx context.Context, scope models.Scope, id int64, req *dto.UpdateBookRequest) (*models.Book, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	book, err := s.bookRepo.GetByID(ctx, id, scope.SchoolFilter())
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	book.Title = strings.TrimSpace(req.Title)
	book.Author = strings.TrimSpace(req.Author)
	book.ISBN = helpers.NullIfBlank(req.ISBN)
	book.CategoryID = req.CategoryID
	book.TotalCopies = req.TotalCopies
	book.PublicationYear = req.PublicationYear
	book.Description = req.Description
	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook removes a book with no borrow history
func (s *catalogServiceImpl) DeleteBook(ctx context.Context, scope models.Scope, id int64) error {
	if err := requireLibrarian(scope); err != nil {
		return err
	}
	if _, err := s.bookRepo.GetByID(ctx, id, scope.SchoolFilter()); err != nil {
		return err
	}
	return s.bookRepo.Delete(ctx, id)
}
