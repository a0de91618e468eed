package models

import (
	"fmt"
	"time"
)

// Category groups books by subject
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Book is one catalog title owned by a school. Copies are counted, not tracked individually.
type Book struct {
	ID              int64     `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	ISBN            *string   `json:"isbn,omitempty" db:"isbn"`
	CategoryID      *int64    `json:"categoryId,omitempty" db:"category_id"`
	SchoolID        int64     `json:"schoolId" db:"school_id"`
	TotalCopies     int       `json:"totalCopies" db:"total_copies"`
	Available       int       `json:"available" db:"available"`
	PublicationYear *int      `json:"publicationYear,omitempty" db:"publication_year"`
	Description     string    `json:"description" db:"description"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`

	CategoryName string `json:"categoryName,omitempty"`
	SchoolName   string `json:"schoolName,omitempty"`
}

// CanIssue reports whether a copy is on the shelf
func (b *Book) CanIssue() bool {
	return b.Available > 0
}

// BorrowedCopies is the number of copies not on the shelf.
func (b *Book) BorrowedCopies() int {
	return b.TotalCopies - b.Available
}

// CountsValid checks 0 <= available <= total_copies.
func (b *Book) CountsValid() bool {
	return b.Available >= 0 && b.Available <= b.TotalCopies
}

// StatusLabel is the shelf status shown in listings
func (b *Book) StatusLabel() string {
	switch {
	case b.Available == 0:
		return "Not Available"
	case b.Available < b.TotalCopies:
		return fmt.Sprintf("%d available", b.Available)
	default:
		return "Available"
	}
}
