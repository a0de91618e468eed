package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
	"github.com/schoollib/library/internal/pkg/helpers"
	"github.com/schoollib/library/internal/pkg/tabular"
	"github.com/schoollib/library/internal/pkg/validation"
)

// DefaultImportMessageLimit caps the per-row messages returned by an import
const DefaultImportMessageLimit = 10

var (
	studentColumns = []string{
		"student_id", "name", "gender", "class_group", "school", "roll_number",
		"email", "phone", "admission_date", "is_active",
	}
	bookColumns = []string{
		"title", "author", "isbn", "category__name", "school__name", "total_copies",
		"available", "publication_year", "description",
	}
)

// ImportService moves students and books in and out of spreadsheets
type ImportService interface {
	BatchImportStudents(ctx context.Context, scope models.Scope, schoolID, classGroupID int64, file io.Reader) (*dto.BatchImportResult, dto.Messages, error)
	SelfImportStudents(ctx context.Context, scope models.Scope, file io.Reader) (*dto.SelfImportResult, dto.Messages, error)
	ExportStudents(ctx context.Context, scope models.Scope, format dto.ExportFormat, w io.Writer) error
	ImportStudents(ctx context.Context, scope models.Scope, format dto.ExportFormat, r io.Reader) (*dto.TabularImportResult, error)
	ExportBooks(ctx context.Context, scope models.Scope, format dto.ExportFormat, w io.Writer) error
	ImportBooks(ctx context.Context, scope models.Scope, format dto.ExportFormat, r io.Reader) (*dto.TabularImportResult, error)
}

type importServiceImpl struct {
	schoolRepo     SchoolStore
	classGroupRepo ClassGroupStore
	studentRepo    StudentStore
	categoryRepo   CategoryStore
	bookRepo       BookStore
	messageLimit   int
	logger         zerolog.Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	schoolRepo SchoolStore,
	classGroupRepo ClassGroupStore,
	studentRepo StudentStore,
	categoryRepo CategoryStore,
	bookRepo BookStore,
	messageLimit int,
	logger zerolog.Logger,
) ImportService {
	if messageLimit <= 0 {
		messageLimit = DefaultImportMessageLimit
	}
	return &importServiceImpl{
		schoolRepo:     schoolRepo,
		classGroupRepo: classGroupRepo,
		studentRepo:    studentRepo,
		categoryRepo:   categoryRepo,
		bookRepo:       bookRepo,
		messageLimit:   messageLimit,
		logger:         logger,
	}
}

// studentRow holds the free-form student columns checked by the validator.
type studentRow struct {
	StudentID  string `column:"student_id" validate:"required,max=20"`
	Name       string `column:"name" validate:"required,max=100"`
	RollNumber string `column:"roll_number" validate:"max=20"`
	Email      string `column:"email" validate:"omitempty,email"`
	Phone      string `column:"phone" validate:"max=20"`
}

// bookRow holds the numeric and text book columns checked by the validator.
type bookRow struct {
	Title           string `column:"title" validate:"required,max=200"`
	Author          string `column:"author" validate:"required,max=100"`
	ISBN            string `column:"isbn" validate:"max=13"`
	TotalCopies     int    `column:"total_copies" validate:"gte=1"`
	Available       int    `column:"available" validate:"gte=0,ltefield=TotalCopies"`
	PublicationYear int    `column:"publication_year" validate:"omitempty,gte=1000,lte=9999"`
}

// applyStudentColumns copies the optional student columns onto st and returns
// every problem found. Columns missing from the file leave st unchanged.
func applyStudentColumns(row tabular.Row, st *models.Student) []string {
	var problems []string
	present := func(col string) bool {
		_, ok := row.Values[col]
		return ok
	}

	st.StudentID = row.Get("student_id")
	st.Name = row.Get("name")
	problems = append(problems, validation.Struct(studentRow{
		StudentID:  st.StudentID,
		Name:       st.Name,
		RollNumber: row.Get("roll_number"),
		Email:      row.Get("email"),
		Phone:      row.Get("phone"),
	})...)

	if present("gender") {
		st.Gender = nil
		if raw := row.Get("gender"); raw != "" {
			g, ok := models.ParseGender(raw)
			if !ok {
				problems = append(problems, fmt.Sprintf("invalid gender '%s'", raw))
			} else {
				st.Gender = &g
			}
		}
	}
	if present("admission_date") {
		st.AdmissionDate = nil
		if raw := row.Get("admission_date"); raw != "" {
			d, err := dates.Parse(raw)
			if err != nil {
				problems = append(problems, fmt.Sprintf("invalid admission_date '%s'", raw))
			} else {
				st.AdmissionDate = &d
			}
		}
	}
	if present("roll_number") {
		st.RollNumber = helpers.NullIfBlank(row.Get("roll_number"))
	}
	if present("email") {
		st.Email = helpers.NullIfBlank(row.Get("email"))
	}
	if present("phone") {
		st.Phone = helpers.NullIfBlank(row.Get("phone"))
	}
	if present("is_active") && row.Get("is_active") != "" {
		st.IsActive = helpers.IsTruthy(row.Get("is_active"))
	}
	return problems
}

// BatchImportStudents validates every row before writing any of them, then
// creates all students in one database transaction; superusers only
func (s *importServiceImpl) BatchImportStudents(ctx context.Context, scope models.Scope, schoolID, classGroupID int64, file io.Reader) (*dto.BatchImportResult, dto.Messages, error) {
	if err := requireSuperuser(scope); err != nil {
		return nil, nil, err
	}
	if schoolID <= 0 || classGroupID <= 0 || file == nil {
		return nil, nil, apperrors.NewValidationError("Please select school, class group, and upload a CSV file.")
	}
	if _, err := s.schoolRepo.GetByID(ctx, schoolID); err != nil {
		return nil, nil, s.invalidSelection(err)
	}
	if _, err := s.classGroupRepo.GetByID(ctx, classGroupID, &schoolID); err != nil {
		return nil, nil, s.invalidSelection(err)
	}

	rows, err := tabular.ReadCSV(file)
	if err != nil {
		return nil, nil, err
	}
	taken, err := s.existingIDs(ctx, rows)
	if err != nil {
		return nil, nil, err
	}

	var rowErrors []string
	seen := make(map[string]bool)
	students := make([]*models.Student, 0, len(rows))
	for _, row := range rows {
		sid, name := row.Get("student_id"), row.Get("name")
		if sid == "" || name == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Missing student_id or name", row.Line))
			continue
		}
		if taken[sid] || seen[sid] {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: student_id %s already exists", row.Line, sid))
			continue
		}
		seen[sid] = true

		cg := classGroupID
		st := &models.Student{SchoolID: schoolID, ClassGroupID: &cg, IsActive: true}
		if problems := applyStudentColumns(row, st); len(problems) > 0 {
			for _, p := range problems {
				rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %s", row.Line, p))
			}
			continue
		}
		students = append(students, st)
	}

	if len(rowErrors) > 0 {
		capped := tabular.Cap(rowErrors, s.messageLimit, func(n int) string {
			return fmt.Sprintf("...and %d more errors.", n)
		})
		return nil, nil, apperrors.NewCustomError(apperrors.ErrValidationFailed,
			fmt.Sprintf("Validation failed (%d errors)", len(rowErrors))).WithDetails(capped)
	}

	if err := s.studentRepo.CreateMany(ctx, students); err != nil {
		return nil, nil, err
	}
	s.logger.Info().Int64("schoolId", schoolID).Int("created", len(students)).Msg("Batch student import finished")

	var msgs dto.Messages
	msgs.Success(fmt.Sprintf("Successfully imported %d students.", len(students)))
	return &dto.BatchImportResult{Created: len(students), Errors: []string{}}, msgs, nil
}

func (s *importServiceImpl) invalidSelection(err error) error {
	if apperrors.KindOf(err) == apperrors.ErrResourceNotFound {
		return apperrors.NewValidationError("Invalid school or class group selected.")
	}
	return err
}

func (s *importServiceImpl) existingIDs(ctx context.Context, rows []tabular.Row) (map[string]bool, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if sid := row.Get("student_id"); sid != "" {
			ids = append(ids, sid)
		}
	}
	return s.studentRepo.ExistingStudentIDs(ctx, ids)
}

// SelfImportStudents creates every valid row in the caller's school and skips
// the rest with a warning
func (s *importServiceImpl) SelfImportStudents(ctx context.Context, scope models.Scope, file io.Reader) (*dto.SelfImportResult, dto.Messages, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, nil, err
	}
	schoolID, err := owningSchool(scope, nil)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return nil, nil, apperrors.NewValidationError("No file uploaded.")
	}

	rows, err := tabular.ReadCSV(file)
	if err != nil {
		return nil, nil, err
	}
	taken, err := s.existingIDs(ctx, rows)
	if err != nil {
		return nil, nil, err
	}

	result := &dto.SelfImportResult{}
	var warnings []string
	skip := func(msg string) {
		result.Skipped++
		warnings = append(warnings, msg)
	}

	for _, row := range rows {
		sid, name, className := row.Get("student_id"), row.Get("name"), row.Get("class_group")
		if sid == "" || name == "" || className == "" {
			skip("Skipped row (missing required field): " + row.String())
			continue
		}

		cg, err := s.classGroupRepo.FindByName(ctx, schoolID, className)
		if err != nil {
			if errors.Is(err, apperrors.ErrClassGroupNotFound) {
				skip(fmt.Sprintf("Class not found: '%s' for student %s", className, sid))
				continue
			}
			return nil, nil, err
		}
		if taken[sid] {
			skip("Student already exists: " + sid)
			continue
		}

		st := &models.Student{SchoolID: schoolID, ClassGroupID: &cg.ID, IsActive: true}
		if problems := applyStudentColumns(row, st); len(problems) > 0 {
			skip(fmt.Sprintf("Skipped row %d: %s", row.Line, strings.Join(problems, "; ")))
			continue
		}
		if err := s.studentRepo.Create(ctx, st); err != nil {
			if errors.Is(err, apperrors.ErrStudentIDAlreadyExists) {
				skip("Student already exists: " + sid)
				continue
			}
			return nil, nil, err
		}
		taken[sid] = true
		result.Created++
	}

	result.Warnings = tabular.Cap(warnings, s.messageLimit, func(n int) string {
		return fmt.Sprintf("...and %d more skipped rows.", n)
	})

	var msgs dto.Messages
	msgs.Success(fmt.Sprintf("Successfully imported %d students.", result.Created))
	if result.Skipped > 0 {
		msgs.Warning(fmt.Sprintf("%d rows were skipped.", result.Skipped))
		for _, w := range result.Warnings {
			msgs.Warning(w)
		}
	}
	s.logger.Info().Int64("schoolId", schoolID).Int("created", result.Created).Int("skipped", result.Skipped).
		Msg("Student self-import finished")
	return result, msgs, nil
}

// ExportStudents writes every student in scope
func (s *importServiceImpl) ExportStudents(ctx context.Context, scope models.Scope, format dto.ExportFormat, w io.Writer) error {
	if err := requireLibrarian(scope); err != nil {
		return err
	}
	students, err := s.studentRepo.ListAll(ctx, scope.SchoolFilter(), nil)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(students))
	for _, st := range students {
		gender, admitted := "", ""
		if st.Gender != nil {
			gender = string(*st.Gender)
		}
		if st.AdmissionDate != nil {
			admitted = st.AdmissionDate.Format(dates.Layout)
		}
		rows = append(rows, []string{
			st.StudentID, st.Name, gender, st.ClassGroupName, st.SchoolName,
			helpers.Deref(st.RollNumber), helpers.Deref(st.Email), helpers.Deref(st.Phone),
			admitted, strconv.FormatBool(st.IsActive),
		})
	}
	return tabular.Write(w, format, "Students", studentColumns, rows)
}

// rowSchool resolves the school a spreadsheet row belongs to. Librarians are
// always pinned to their own school.
func (s *importServiceImpl) rowSchool(ctx context.Context, scope models.Scope, name string, cache map[string]*models.School) (int64, error) {
	if !scope.IsSuperuser || name == "" {
		return owningSchool(scope, nil)
	}
	key := strings.ToLower(name)
	school, ok := cache[key]
	if !ok {
		found, err := s.schoolRepo.FindByName(ctx, name)
		if err != nil && !errors.Is(err, apperrors.ErrSchoolNotFound) {
			return 0, err
		}
		school = found
		cache[key] = found
	}
	if school == nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("school '%s' not found", name))
	}
	return school.ID, nil
}

// ImportStudents creates or updates students keyed on student_id
func (s *importServiceImpl) ImportStudents(ctx context.Context, scope models.Scope, format dto.ExportFormat, r io.Reader) (*dto.TabularImportResult, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	rows, err := tabular.Read(r, format)
	if err != nil {
		return nil, err
	}

	result := &dto.TabularImportResult{}
	var rowErrors []string
	fail := func(line int, msg string) {
		result.Skipped++
		rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %s", line, msg))
	}
	schools := make(map[string]*models.School)

	for _, row := range rows {
		sid := row.Get("student_id")
		existing, err := s.studentRepo.GetByStudentID(ctx, sid)
		if err != nil && !errors.Is(err, apperrors.ErrStudentNotFound) {
			return nil, err
		}
		if existing != nil && !scope.CanAccessSchool(existing.SchoolID) {
			fail(row.Line, fmt.Sprintf("student_id %s belongs to another school", sid))
			continue
		}

		st := existing
		if st == nil {
			schoolID, err := s.rowSchool(ctx, scope, row.Get("school"), schools)
			if err != nil {
				if apperrors.KindOf(err) == nil {
					return nil, err
				}
				fail(row.Line, err.Error())
				continue
			}
			st = &models.Student{SchoolID: schoolID, IsActive: true}
		}

		if problems := applyStudentColumns(row, st); len(problems) > 0 {
			fail(row.Line, strings.Join(problems, "; "))
			continue
		}
		if className := row.Get("class_group"); className != "" {
			cg, err := s.classGroupRepo.FindByName(ctx, st.SchoolID, className)
			if err != nil {
				if !errors.Is(err, apperrors.ErrClassGroupNotFound) {
					return nil, err
				}
				fail(row.Line, fmt.Sprintf("class group '%s' not found", className))
				continue
			}
			st.ClassGroupID = &cg.ID
		}

		if existing != nil {
			err = s.studentRepo.Update(ctx, st)
		} else {
			err = s.studentRepo.Create(ctx, st)
		}
		if err != nil {
			if apperrors.KindOf(err) == nil {
				return nil, err
			}
			fail(row.Line, err.Error())
			continue
		}
		if existing != nil {
			result.Updated++
		} else {
			result.Created++
		}
	}

	result.Errors = tabular.Cap(rowErrors, s.messageLimit, func(n int) string {
		return fmt.Sprintf("...and %d more errors.", n)
	})
	return result, nil
}

// ExportBooks writes every book in scope
func (s *importServiceImpl) ExportBooks(ctx context.Context, scope models.Scope, format dto.ExportFormat, w io.Writer) error {
	if err := requireLibrarian(scope); err != nil {
		return err
	}
	books, err := s.bookRepo.ListAll(ctx, scope.SchoolFilter())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(books))
	for _, b := range books {
		year := ""
		if b.PublicationYear != nil {
			year = strconv.Itoa(*b.PublicationYear)
		}
		rows = append(rows, []string{
			b.Title, b.Author, helpers.Deref(b.ISBN), b.CategoryName, b.SchoolName,
			strconv.Itoa(b.TotalCopies), strconv.Itoa(b.Available), year, b.Description,
		})
	}
	return tabular.Write(w, format, "Books", bookColumns, rows)
}

func parseCount(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	// Spreadsheets often store whole numbers as "3.0".
	raw = strings.TrimSuffix(raw, ".0")
	return strconv.Atoi(raw)
}

// ImportBooks creates one book per row. A blank available column means every
// copy is on the shelf.
func (s *importServiceImpl) ImportBooks(ctx context.Context, scope models.Scope, format dto.ExportFormat, r io.Reader) (*dto.TabularImportResult, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	rows, err := tabular.Read(r, format)
	if err != nil {
		return nil, err
	}

	result := &dto.TabularImportResult{}
	var rowErrors []string
	fail := func(line int, msg string) {
		result.Skipped++
		rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %s", line, msg))
	}
	schools := make(map[string]*models.School)

	for _, row := range rows {
		total, err := parseCount(row.Get("total_copies"), 1)
		if err != nil {
			fail(row.Line, fmt.Sprintf("invalid total_copies '%s'", row.Get("total_copies")))
			continue
		}
		available, err := parseCount(row.Get("available"), total)
		if err != nil {
			fail(row.Line, fmt.Sprintf("invalid available '%s'", row.Get("available")))
			continue
		}
		year, err := parseCount(row.Get("publication_year"), 0)
		if err != nil {
			fail(row.Line, fmt.Sprintf("invalid publication_year '%s'", row.Get("publication_year")))
			continue
		}

		fields := bookRow{
			Title:           row.Get("title"),
			Author:          row.Get("author"),
			ISBN:            row.Get("isbn"),
			TotalCopies:     total,
			Available:       available,
			PublicationYear: year,
		}
		if problems := validation.Struct(fields); len(problems) > 0 {
			fail(row.Line, strings.Join(problems, "; "))
			continue
		}

		schoolID, err := s.rowSchool(ctx, scope, row.Get("school__name"), schools)
		if err != nil {
			if apperrors.KindOf(err) == nil {
				return nil, err
			}
			fail(row.Line, err.Error())
			continue
		}

		book := &models.Book{
			Title:       fields.Title,
			Author:      fields.Author,
			ISBN:        helpers.NullIfBlank(fields.ISBN),
			SchoolID:    schoolID,
			TotalCopies: total,
			Available:   available,
			Description: row.Get("description"),
		}
		if year != 0 {
			book.PublicationYear = &year
		}
		if categoryName := row.Get("category__name"); categoryName != "" {
			category, err := s.categoryRepo.GetOrCreate(ctx, categoryName)
			if err != nil {
				return nil, err
			}
			book.CategoryID = &category.ID
		}

		if err := s.bookRepo.Create(ctx, book); err != nil {
			if apperrors.KindOf(err) == nil {
				return nil, err
			}
			fail(row.Line, err.Error())
			continue
		}
		result.Created++
	}

	result.Errors = tabular.Cap(rowErrors, s.messageLimit, func(n int) string {
		return fmt.Sprintf("...and %d more errors.", n)
	})
	s.logger.Info().Int("created", result.Created).Int("skipped", result.Skipped).Msg("Book import finished")
	return result, nil
}
