package dto

import "github.com/schoollib/library/internal/app/models"

// CategoryRequest represents category create/update data
type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

// CreateBookRequest represents book creation data; available starts equal to totalCopies
type CreateBookRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	Author          string `json:"author" binding:"required,max=100"`
	ISBN            string `json:"isbn" binding:"max=13"`
	CategoryID      *int64 `json:"categoryId,omitempty" binding:"omitempty,gt=0"`
	SchoolID        *int64 `json:"schoolId,omitempty" binding:"omitempty,gt=0"`
	TotalCopies     int    `json:"totalCopies" binding:"required,min=1"`
	PublicationYear *int   `json:"publicationYear,omitempty" binding:"omitempty,min=1000,max=9999"`
	Description     string `json:"description"`
}

// UpdateBookRequest represents book update data. Changing totalCopies keeps the
// borrowed count fixed and moves available by the same delta.
type UpdateBookRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	Author          string `json:"author" binding:"required,max=100"`
	ISBN            string `json:"isbn" binding:"max=13"`
	CategoryID      *int64 `json:"categoryId,omitempty" binding:"omitempty,gt=0"`
	TotalCopies     int    `json:"totalCopies" binding:"required,min=1"`
	PublicationYear *int   `json:"publicationYear,omitempty" binding:"omitempty,min=1000,max=9999"`
	Description     string `json:"description"`
}

// BookFilter carries list/search parameters
type BookFilter struct {
	Query         string
	CategoryID    *int64
	SchoolID      *int64
	AvailableOnly bool
	Page          int
	Size          int
}

// BookResponse decorates a book with its shelf status
type BookResponse struct {
	*models.Book
	StatusLabel    string `json:"statusLabel" example:"2 available"`
	BorrowedCopies int    `json:"borrowedCopies"`
}

// NewBookResponse builds the response view of a book
func NewBookResponse(b *models.Book) BookResponse {
	return BookResponse{Book: b, StatusLabel: b.StatusLabel(), BorrowedCopies: b.BorrowedCopies()}
}

// NewBookResponses maps a slice of books
func NewBookResponses(books []*models.Book) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, NewBookResponse(b))
	}
	return out
}

// BookListResponse represents a page of books
type BookListResponse struct {
	Books []BookResponse `json:"books"`
	Query string         `json:"query"`
	PaginationInfo
}
