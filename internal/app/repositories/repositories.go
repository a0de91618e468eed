package repositories

import (
	"github.com/Masterminds/squirrel"
	"github.com/schoollib/library/internal/db"
)

// psql is the statement builder every repository starts from.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repositories holds all the repository instances
type Repositories struct {
	SchoolRepository      *SchoolRepository
	UserRepository        *UserRepository
	CategoryRepository    *CategoryRepository
	BookRepository        *BookRepository
	ClassGroupRepository  *ClassGroupRepository
	StudentRepository     *StudentRepository
	TransactionRepository *TransactionRepository
	ReportRepository      *ReportRepository
}

// NewRepositories initializes all repositories
func NewRepositories(database *db.PostgresDB) *Repositories {
	return &Repositories{
		SchoolRepository:      NewSchoolRepository(database),
		UserRepository:        NewUserRepository(database),
		CategoryRepository:    NewCategoryRepository(database),
		BookRepository:        NewBookRepository(database),
		ClassGroupRepository:  NewClassGroupRepository(database),
		StudentRepository:     NewStudentRepository(database),
		TransactionRepository: NewTransactionRepository(database),
		ReportRepository:      NewReportRepository(database),
	}
}

// inSchool restricts a select to one school when filter is set.
func inSchool(q squirrel.SelectBuilder, column string, filter *int64) squirrel.SelectBuilder {
	if filter == nil {
		return q
	}
	return q.Where(squirrel.Eq{column: *filter})
}
