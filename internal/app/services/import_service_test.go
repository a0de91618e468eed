package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type importFixture struct {
	store  *memStore
	svc    ImportService
	school *models.School
	class  *models.ClassGroup
}

func newImportFixture(messageLimit int) *importFixture {
	m := newMemStore()
	school := m.addSchool("Hillside")
	return &importFixture{
		store: m,
		svc: NewImportService(fakeSchools{m}, fakeClassGroups{m}, fakeStudents{m}, fakeCategories{m}, fakeBooks{m},
			messageLimit, silentLogger()),
		school: school,
		class:  m.addClass(school.ID, "S1"),
	}
}

func (f *importFixture) studentNames() []string {
	var names []string
	for _, id := range sortedIDs(f.store.students) {
		names = append(names, f.store.students[id].Name)
	}
	return names
}

func TestSelfImportSkipsBadRows(t *testing.T) {
	f := newImportFixture(0)
	csv := "student_id,name,class_group\n" +
		"S100,Ann,s1\n" +
		"S101,Ben,S9\n" +
		"S102,,S1\n"

	result, msgs, err := f.svc.SelfImportStudents(context.Background(), librarianOf(f.school.ID), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []string{
		"Class not found: 'S9' for student S101",
		"Skipped row (missing required field): {class_group=S1, name=, student_id=S102}",
	}, result.Warnings)
	assert.Equal(t, []string{"Successfully imported 1 students."}, msgs.Texts(dto.MessageSuccess))
	assert.Equal(t, "2 rows were skipped.", msgs.Texts(dto.MessageWarning)[0])

	require.Len(t, f.store.students, 1)
	for _, st := range f.store.students {
		assert.Equal(t, "S100", st.StudentID)
		assert.Equal(t, f.class.ID, *st.ClassGroupID)
		assert.Equal(t, f.school.ID, st.SchoolID)
	}
}

func TestSelfImportSkipsExistingStudent(t *testing.T) {
	f := newImportFixture(0)
	f.store.addStudent(f.school.ID, &f.class.ID, "S100", "Ann")
	csv := "student_id,name,class_group\nS100,Ann Again,S1\n"

	result, _, err := f.svc.SelfImportStudents(context.Background(), librarianOf(f.school.ID), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, []string{"Student already exists: S100"}, result.Warnings)
	assert.Equal(t, []string{"Ann"}, f.studentNames())
}

func TestSelfImportCapsWarnings(t *testing.T) {
	f := newImportFixture(2)
	var b strings.Builder
	b.WriteString("student_id,name,class_group\n")
	for _, sid := range []string{"A1", "A2", "A3", "A4", "A5"} {
		b.WriteString(sid + ",Name,Nowhere\n")
	}

	result, _, err := f.svc.SelfImportStudents(context.Background(), librarianOf(f.school.ID), strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Skipped)
	require.Len(t, result.Warnings, 3)
	assert.Equal(t, "...and 3 more skipped rows.", result.Warnings[2])
}

func TestBatchImportIsAllOrNothing(t *testing.T) {
	f := newImportFixture(0)
	f.store.addStudent(f.school.ID, &f.class.ID, "S001", "Existing")
	csv := "student_id,name,gender\n" +
		"S100,Ann,F\n" +
		"S101,,M\n" +
		"S001,Dup,M\n"

	_, _, err := f.svc.BatchImportStudents(context.Background(), superuser(), f.school.ID, f.class.ID, strings.NewReader(csv))
	require.Error(t, err)

	var custom *apperrors.CustomError
	require.True(t, errors.As(err, &custom))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Equal(t, "Validation failed (2 errors)", custom.Message)
	assert.Equal(t, []string{
		"Row 3: Missing student_id or name",
		"Row 4: student_id S001 already exists",
	}, custom.Details)
	assert.Equal(t, []string{"Existing"}, f.studentNames())
}

func TestBatchImportCreatesEveryRow(t *testing.T) {
	f := newImportFixture(0)
	csv := "\ufeffStudent_ID, Name ,gender,admission_date\n" +
		"S100,Ann,F,2026-01-10\n" +
		"S101,Ben,M,\n"

	result, msgs, err := f.svc.BatchImportStudents(context.Background(), superuser(), f.school.ID, f.class.ID, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, []string{"Successfully imported 2 students."}, msgs.Texts(dto.MessageSuccess))
	assert.Equal(t, []string{"Ann", "Ben"}, f.studentNames())
}

func TestBatchImportChecksSelection(t *testing.T) {
	f := newImportFixture(0)
	ctx := context.Background()
	other := f.store.addSchool("Riverside")

	_, _, err := f.svc.BatchImportStudents(ctx, librarianOf(f.school.ID), f.school.ID, f.class.ID, strings.NewReader(""))
	assert.Equal(t, apperrors.ErrPermissionDenied, apperrors.KindOf(err))

	_, _, err = f.svc.BatchImportStudents(ctx, superuser(), other.ID, f.class.ID, strings.NewReader("student_id,name\n"))
	assert.Equal(t, "Invalid school or class group selected.", err.Error())

	_, _, err = f.svc.BatchImportStudents(ctx, superuser(), f.school.ID, f.class.ID, strings.NewReader(""))
	assert.ErrorIs(t, err, apperrors.ErrImportFormat)
}

func TestImportBooksAppliesAvailabilityRules(t *testing.T) {
	f := newImportFixture(0)
	csv := "title,author,isbn,category__name,school__name,total_copies,available\n" +
		"Physics,Newton,,Science,Riverside,3,\n" +
		"Maths,Euler,,Science,,2,5\n" +
		",Nobody,,,,1,1\n" +
		"Algebra,Khwarizmi,,Science,,4.0,1\n" +
		"Poems,Anon,,,,many,\n"

	result, err := f.svc.ImportBooks(context.Background(), librarianOf(f.school.ID), dto.FormatCSV, strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.Errors, 3)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Row 3: "))
	assert.True(t, strings.HasPrefix(result.Errors[1], "Row 4: "))
	assert.Equal(t, "Row 6: invalid total_copies 'many'", result.Errors[2])

	assert.Len(t, f.store.categories, 1)
	books, _ := fakeBooks{f.store}.ListAll(context.Background(), nil)
	require.Len(t, books, 2)
	assert.Equal(t, "Physics", books[0].Title)
	assert.Equal(t, 3, books[0].Available)
	assert.Equal(t, f.school.ID, books[0].SchoolID)
	assert.Equal(t, 4, books[1].TotalCopies)
	assert.Equal(t, 1, books[1].Available)
}

func TestImportBooksResolvesSchoolForSuperuser(t *testing.T) {
	f := newImportFixture(0)
	other := f.store.addSchool("Riverside")
	csv := "title,author,school__name,total_copies\n" +
		"Physics,Newton,riverside,2\n" +
		"Maths,Euler,Atlantis,1\n"

	result, err := f.svc.ImportBooks(context.Background(), superuser(), dto.FormatCSV, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, []string{"Row 3: school 'Atlantis' not found"}, result.Errors)

	books, _ := fakeBooks{f.store}.ListAll(context.Background(), &other.ID)
	require.Len(t, books, 1)
	assert.Equal(t, "Physics", books[0].Title)
}

func TestImportStudentsUpserts(t *testing.T) {
	f := newImportFixture(0)
	existing := f.store.addStudent(f.school.ID, &f.class.ID, "S001", "Old Name")
	s2 := f.store.addClass(f.school.ID, "S2")
	csv := "student_id,name,class_group,email\n" +
		"S001,New Name,S2,new@example.com\n" +
		"S002,Fresh,S1,\n" +
		"S003,Lost,S7,\n"

	result, err := f.svc.ImportStudents(context.Background(), librarianOf(f.school.ID), dto.FormatCSV, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, []string{"Row 4: class group 'S7' not found"}, result.Errors)

	updated := f.store.students[existing.ID]
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, s2.ID, *updated.ClassGroupID)
	assert.Equal(t, "new@example.com", *updated.Email)
}

func TestExportThenImportBooks(t *testing.T) {
	f := newImportFixture(0)
	f.store.addBook(f.school.ID, "Physics", 2)
	scope := librarianOf(f.school.ID)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportBooks(ctx, scope, dto.FormatXLSX, &buf))

	rows, err := tabular.ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Physics", rows[0].Get("title"))
	assert.Equal(t, "Hillside", rows[0].Get("school__name"))

	result, err := f.svc.ImportBooks(ctx, scope, dto.FormatXLSX, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, f.store.books, 2)
}
