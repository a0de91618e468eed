package services

import (
	"context"
	"time"

	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/repositories"
)

// The store interfaces below are the repository methods each service relies on.
// The pgx repositories satisfy them; tests substitute in-memory fakes.

// SchoolStore persists schools
type SchoolStore interface {
	Create(ctx context.Context, school *models.School) error
	GetByID(ctx context.Context, id int64) (*models.School, error)
	FindByName(ctx context.Context, name string) (*models.School, error)
	List(ctx context.Context) ([]*models.School, error)
	ListSummaries(ctx context.Context) ([]dto.SchoolSummary, error)
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id int64) error
}

// UserStore persists accounts and their school profiles
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, schoolFilter *int64) ([]*models.User, error)
	UpsertProfile(ctx context.Context, profile *models.UserProfile) error
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
	SetActive(ctx context.Context, userID int64, active bool) error
}

// CategoryStore persists book categories
type CategoryStore interface {
	Create(ctx context.Context, category *models.Category) error
	GetOrCreate(ctx context.Context, name string) (*models.Category, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id int64) error
}

// BookStore persists catalog books
type BookStore interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.Book, error)
	List(ctx context.Context, filter dto.BookFilter) ([]*models.Book, int64, error)
	ListAll(ctx context.Context, schoolFilter *int64) ([]*models.Book, error)
	ListMostAvailable(ctx context.Context, schoolFilter *int64, limit uint64) ([]*models.Book, error)
	ListLowStock(ctx context.Context, schoolFilter *int64, threshold int, limit uint64) ([]*models.Book, error)
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id int64) error
}

// ClassGroupStore persists class groups
type ClassGroupStore interface {
	Create(ctx context.Context, cg *models.ClassGroup) error
	GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.ClassGroup, error)
	FindByName(ctx context.Context, schoolID int64, name string) (*models.ClassGroup, error)
	List(ctx context.Context, schoolFilter *int64) ([]*models.ClassGroup, error)
	Update(ctx context.Context, cg *models.ClassGroup) error
	Delete(ctx context.Context, id int64) error
}

// StudentStore persists students
type StudentStore interface {
	Create(ctx context.Context, st *models.Student) error
	CreateMany(ctx context.Context, students []*models.Student) error
	GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.Student, error)
	GetByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Student, error)
	ExistingStudentIDs(ctx context.Context, ids []string) (map[string]bool, error)
	List(ctx context.Context, filter dto.StudentFilter) ([]*models.Student, int64, error)
	ListAll(ctx context.Context, schoolFilter *int64, classGroupID *int64) ([]*models.Student, error)
	Update(ctx context.Context, st *models.Student) error
	Delete(ctx context.Context, id int64) error
}

// TransactionStore persists borrow transactions and applies their copy adjustments
type TransactionStore interface {
	Issue(ctx context.Context, t *models.BorrowTransaction) error
	IssueBatch(ctx context.Context, list []*models.BorrowTransaction) error
	Finish(ctx context.Context, t *models.BorrowTransaction, adj models.CopyAdjustment) error
	Renew(ctx context.Context, id int64, days int) (time.Time, int, error)
	PayFine(ctx context.Context, id int64) error
	MarkOverdue(ctx context.Context, today time.Time, schoolFilter *int64) (int64, error)
	GetByID(ctx context.Context, id int64, schoolFilter *int64) (*models.BorrowTransaction, error)
	List(ctx context.Context, filter dto.TransactionFilter, today time.Time) ([]*models.BorrowTransaction, int64, error)
	ListActive(ctx context.Context, schoolFilter *int64, limit uint64) ([]*models.BorrowTransaction, error)
	ListOverdue(ctx context.Context, schoolFilter *int64, today time.Time) ([]*models.BorrowTransaction, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*models.BorrowTransaction, error)
}

// ReportStore runs dashboard aggregates
type ReportStore interface {
	CountStudents(ctx context.Context, schoolFilter *int64) (int, error)
	CountBooks(ctx context.Context, schoolFilter *int64) (int, error)
	CountClasses(ctx context.Context, schoolFilter *int64) (int, error)
	CountLowStock(ctx context.Context, schoolFilter *int64, threshold int) (int, error)
	ClassStudentCounts(ctx context.Context, schoolFilter *int64) ([]dto.ClassStudentCount, error)
	LedgerCounts(ctx context.Context, schoolFilter *int64, today time.Time) (repositories.LedgerCounts, error)
	WeeklyIssueCounts(ctx context.Context, schoolFilter *int64, weekStart time.Time) ([7]int, error)
	ReturnPunctuality(ctx context.Context, schoolFilter *int64) (returned, onTime int, err error)
	StudentBorrowStats(ctx context.Context, schoolFilter, classGroupID *int64, today time.Time) ([]dto.StudentBorrowStats, error)
	ClassBorrowStats(ctx context.Context, schoolFilter *int64, today time.Time) ([]dto.ClassBorrowStats, error)
	StockTotals(ctx context.Context, schoolFilter *int64) (repositories.StockTotals, error)
}
