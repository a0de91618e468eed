package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/repositories"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
)

// memStore is an in-memory stand-in for the database. Its ledger methods apply
// the same guards as the SQL repositories: counters never leave
// 0 <= available <= total_copies and finished borrows never change state.
type memStore struct {
	schools    map[int64]*models.School
	users      map[int64]*models.User
	categories map[int64]*models.Category
	books      map[int64]*models.Book
	classes    map[int64]*models.ClassGroup
	students   map[int64]*models.Student
	txs        map[int64]*models.BorrowTransaction
	nextID     int64
}

func newMemStore() *memStore {
	return &memStore{
		schools:    make(map[int64]*models.School),
		users:      make(map[int64]*models.User),
		categories: make(map[int64]*models.Category),
		books:      make(map[int64]*models.Book),
		classes:    make(map[int64]*models.ClassGroup),
		students:   make(map[int64]*models.Student),
		txs:        make(map[int64]*models.BorrowTransaction),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func visible(filter *int64, schoolID int64) bool {
	return filter == nil || *filter == schoolID
}

func (m *memStore) addSchool(name string) *models.School {
	s := &models.School{ID: m.id(), Name: name, ShortName: strings.ToUpper(name[:3]), IsActive: true}
	m.schools[s.ID] = s
	return s
}

func (m *memStore) addClass(schoolID int64, name string) *models.ClassGroup {
	cg := &models.ClassGroup{ID: m.id(), Name: name, SchoolID: schoolID}
	m.classes[cg.ID] = cg
	return cg
}

func (m *memStore) addStudent(schoolID int64, classID *int64, studentID, name string) *models.Student {
	st := &models.Student{ID: m.id(), StudentID: studentID, Name: name, SchoolID: schoolID, ClassGroupID: classID, IsActive: true}
	m.students[st.ID] = st
	return st
}

func (m *memStore) addBook(schoolID int64, title string, copies int) *models.Book {
	b := &models.Book{ID: m.id(), Title: title, Author: "Author", SchoolID: schoolID, TotalCopies: copies, Available: copies}
	m.books[b.ID] = b
	return b
}

func sortedIDs[T any](items map[int64]T) []int64 {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// schools

type fakeSchools struct{ *memStore }

func (f fakeSchools) Create(_ context.Context, school *models.School) error {
	school.ID = f.id()
	f.schools[school.ID] = school
	return nil
}

func (f fakeSchools) GetByID(_ context.Context, id int64) (*models.School, error) {
	s, ok := f.schools[id]
	if !ok {
		return nil, apperrors.ErrSchoolNotFound
	}
	cp := *s
	return &cp, nil
}

func (f fakeSchools) FindByName(_ context.Context, name string) (*models.School, error) {
	for _, id := range sortedIDs(f.schools) {
		if strings.EqualFold(f.schools[id].Name, name) {
			cp := *f.schools[id]
			return &cp, nil
		}
	}
	return nil, apperrors.ErrSchoolNotFound
}

func (f fakeSchools) List(_ context.Context) ([]*models.School, error) {
	var out []*models.School
	for _, id := range sortedIDs(f.schools) {
		out = append(out, f.schools[id])
	}
	return out, nil
}

func (f fakeSchools) ListSummaries(_ context.Context) ([]dto.SchoolSummary, error) {
	return nil, nil
}

func (f fakeSchools) Update(_ context.Context, school *models.School) error {
	if _, ok := f.schools[school.ID]; !ok {
		return apperrors.ErrSchoolNotFound
	}
	f.schools[school.ID] = school
	return nil
}

func (f fakeSchools) Delete(_ context.Context, id int64) error {
	delete(f.schools, id)
	return nil
}

// users

type fakeUsers struct{ *memStore }

func (f fakeUsers) Create(_ context.Context, user *models.User) error {
	user.ID = f.id()
	f.users[user.ID] = user
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f fakeUsers) List(_ context.Context, _ *int64) ([]*models.User, error) {
	var out []*models.User
	for _, id := range sortedIDs(f.users) {
		out = append(out, f.users[id])
	}
	return out, nil
}

func (f fakeUsers) UpsertProfile(_ context.Context, profile *models.UserProfile) error {
	u, ok := f.users[profile.UserID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Profile = profile
	return nil
}

func (f fakeUsers) UpdatePassword(_ context.Context, userID int64, hash string) error {
	u, ok := f.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Password = hash
	return nil
}

func (f fakeUsers) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	u, ok := f.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (f fakeUsers) SetActive(_ context.Context, userID int64, active bool) error {
	u, ok := f.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

// categories

type fakeCategories struct{ *memStore }

func (f fakeCategories) Create(_ context.Context, c *models.Category) error {
	c.ID = f.id()
	f.categories[c.ID] = c
	return nil
}

func (f fakeCategories) GetOrCreate(ctx context.Context, name string) (*models.Category, error) {
	for _, c := range f.categories {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	c := &models.Category{Name: name}
	return c, f.Create(ctx, c)
}

func (f fakeCategories) GetByID(_ context.Context, id int64) (*models.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, apperrors.ErrCategoryNotFound
	}
	return c, nil
}

func (f fakeCategories) List(_ context.Context) ([]*models.Category, error) {
	var out []*models.Category
	for _, id := range sortedIDs(f.categories) {
		out = append(out, f.categories[id])
	}
	return out, nil
}

func (f fakeCategories) Update(_ context.Context, c *models.Category) error {
	f.categories[c.ID] = c
	return nil
}

func (f fakeCategories) Delete(_ context.Context, id int64) error {
	delete(f.categories, id)
	return nil
}

// books

type fakeBooks struct{ *memStore }

func (f fakeBooks) Create(_ context.Context, b *models.Book) error {
	if !b.CountsValid() {
		return apperrors.NewValidationError("available copies out of range")
	}
	b.ID = f.id()
	cp := *b
	f.books[b.ID] = &cp
	return nil
}

func (f fakeBooks) GetByID(_ context.Context, id int64, schoolFilter *int64) (*models.Book, error) {
	b, ok := f.books[id]
	if !ok || !visible(schoolFilter, b.SchoolID) {
		return nil, apperrors.ErrBookNotFound
	}
	cp := *b
	return &cp, nil
}

func (f fakeBooks) List(ctx context.Context, filter dto.BookFilter) ([]*models.Book, int64, error) {
	all, _ := f.ListAll(ctx, filter.SchoolID)
	return all, int64(len(all)), nil
}

func (f fakeBooks) ListAll(_ context.Context, schoolFilter *int64) ([]*models.Book, error) {
	var out []*models.Book
	for _, id := range sortedIDs(f.books) {
		if b := f.books[id]; visible(schoolFilter, b.SchoolID) {
			cp := *b
			if s, ok := f.schools[cp.SchoolID]; ok {
				cp.SchoolName = s.Name
			}
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeBooks) ListMostAvailable(ctx context.Context, schoolFilter *int64, limit uint64) ([]*models.Book, error) {
	all, _ := f.ListAll(ctx, schoolFilter)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Available > all[j].Available })
	if limit > 0 && uint64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f fakeBooks) ListLowStock(ctx context.Context, schoolFilter *int64, threshold int, limit uint64) ([]*models.Book, error) {
	all, _ := f.ListAll(ctx, schoolFilter)
	var out []*models.Book
	for _, b := range all {
		if b.Available <= threshold {
			out = append(out, b)
		}
	}
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeBooks) Update(_ context.Context, b *models.Book) error {
	if _, ok := f.books[b.ID]; !ok {
		return apperrors.ErrBookNotFound
	}
	cp := *b
	f.books[b.ID] = &cp
	return nil
}

func (f fakeBooks) Delete(_ context.Context, id int64) error {
	delete(f.books, id)
	return nil
}

// class groups

type fakeClassGroups struct{ *memStore }

func (f fakeClassGroups) Create(_ context.Context, cg *models.ClassGroup) error {
	for _, other := range f.classes {
		if other.SchoolID == cg.SchoolID && strings.EqualFold(other.Name, cg.Name) {
			return apperrors.ErrClassGroupAlreadyExists
		}
	}
	cg.ID = f.id()
	f.classes[cg.ID] = cg
	return nil
}

func (f fakeClassGroups) GetByID(_ context.Context, id int64, schoolFilter *int64) (*models.ClassGroup, error) {
	cg, ok := f.classes[id]
	if !ok || !visible(schoolFilter, cg.SchoolID) {
		return nil, apperrors.ErrClassGroupNotFound
	}
	return cg, nil
}

func (f fakeClassGroups) FindByName(_ context.Context, schoolID int64, name string) (*models.ClassGroup, error) {
	for _, id := range sortedIDs(f.classes) {
		cg := f.classes[id]
		if cg.SchoolID == schoolID && strings.EqualFold(cg.Name, name) {
			return cg, nil
		}
	}
	return nil, apperrors.ErrClassGroupNotFound
}

func (f fakeClassGroups) List(_ context.Context, schoolFilter *int64) ([]*models.ClassGroup, error) {
	var out []*models.ClassGroup
	for _, id := range sortedIDs(f.classes) {
		if cg := f.classes[id]; visible(schoolFilter, cg.SchoolID) {
			out = append(out, cg)
		}
	}
	return out, nil
}

func (f fakeClassGroups) Update(_ context.Context, cg *models.ClassGroup) error {
	f.classes[cg.ID] = cg
	return nil
}

func (f fakeClassGroups) Delete(_ context.Context, id int64) error {
	delete(f.classes, id)
	return nil
}

// students

type fakeStudents struct{ *memStore }

func (f fakeStudents) decorated(st *models.Student) *models.Student {
	cp := *st
	if cp.ClassGroupID != nil {
		if cg, ok := f.classes[*cp.ClassGroupID]; ok {
			cp.ClassGroupName = cg.Name
		}
	}
	if s, ok := f.schools[cp.SchoolID]; ok {
		cp.SchoolName = s.Name
	}
	return &cp
}

func (f fakeStudents) taken(studentID string, exceptID int64) bool {
	for _, st := range f.students {
		if st.StudentID == studentID && st.ID != exceptID {
			return true
		}
	}
	return false
}

func (f fakeStudents) Create(_ context.Context, st *models.Student) error {
	if f.taken(st.StudentID, 0) {
		return apperrors.ErrStudentIDAlreadyExists
	}
	st.ID = f.id()
	cp := *st
	f.students[st.ID] = &cp
	return nil
}

func (f fakeStudents) CreateMany(ctx context.Context, students []*models.Student) error {
	seen := make(map[string]bool)
	for _, st := range students {
		if seen[st.StudentID] || f.taken(st.StudentID, 0) {
			return apperrors.ErrStudentIDAlreadyExists
		}
		seen[st.StudentID] = true
	}
	for _, st := range students {
		if err := f.Create(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (f fakeStudents) GetByID(_ context.Context, id int64, schoolFilter *int64) (*models.Student, error) {
	st, ok := f.students[id]
	if !ok || !visible(schoolFilter, st.SchoolID) {
		return nil, apperrors.ErrStudentNotFound
	}
	return f.decorated(st), nil
}

func (f fakeStudents) GetByStudentID(_ context.Context, studentID string) (*models.Student, error) {
	for _, st := range f.students {
		if st.StudentID == studentID {
			return f.decorated(st), nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

func (f fakeStudents) GetByUserID(_ context.Context, userID int64) (*models.Student, error) {
	for _, st := range f.students {
		if st.UserID != nil && *st.UserID == userID {
			return f.decorated(st), nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

func (f fakeStudents) ExistingStudentIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, sid := range ids {
		if f.taken(sid, 0) {
			out[sid] = true
		}
	}
	return out, nil
}

func (f fakeStudents) List(ctx context.Context, filter dto.StudentFilter) ([]*models.Student, int64, error) {
	all, _ := f.ListAll(ctx, filter.SchoolID, nil)
	return all, int64(len(all)), nil
}

func (f fakeStudents) ListAll(_ context.Context, schoolFilter *int64, classGroupID *int64) ([]*models.Student, error) {
	var out []*models.Student
	for _, id := range sortedIDs(f.students) {
		st := f.students[id]
		if !visible(schoolFilter, st.SchoolID) {
			continue
		}
		if classGroupID != nil && (st.ClassGroupID == nil || *st.ClassGroupID != *classGroupID) {
			continue
		}
		out = append(out, f.decorated(st))
	}
	return out, nil
}

func (f fakeStudents) Update(_ context.Context, st *models.Student) error {
	if f.taken(st.StudentID, st.ID) {
		return apperrors.ErrStudentIDAlreadyExists
	}
	cp := *st
	f.students[st.ID] = &cp
	return nil
}

func (f fakeStudents) Delete(_ context.Context, id int64) error {
	for _, t := range f.txs {
		if t.StudentID == id {
			return apperrors.ErrStudentHasBorrows
		}
	}
	delete(f.students, id)
	return nil
}

// transactions

type fakeTransactions struct{ *memStore }

// adjust applies adj to a book only if the counters stay in range.
func (f fakeTransactions) adjust(bookID int64, adj models.CopyAdjustment) error {
	b, ok := f.books[bookID]
	if !ok {
		return apperrors.ErrBookNotFound
	}
	available, total := b.Available+adj.Available, b.TotalCopies+adj.Total
	if available < 0 {
		return apperrors.ErrNoCopiesAvailable
	}
	if available > total {
		return apperrors.NewValidationError("available copies would exceed total copies")
	}
	b.Available, b.TotalCopies = available, total
	return nil
}

func (f fakeTransactions) decorated(t *models.BorrowTransaction) *models.BorrowTransaction {
	cp := *t
	if st, ok := f.students[cp.StudentID]; ok {
		cp.StudentName = st.Name
		cp.StudentNumber = st.StudentID
	}
	if b, ok := f.books[cp.BookID]; ok {
		cp.BookTitle = b.Title
		cp.SchoolID = b.SchoolID
	}
	return &cp
}

func (f fakeTransactions) Issue(ctx context.Context, t *models.BorrowTransaction) error {
	return f.IssueBatch(ctx, []*models.BorrowTransaction{t})
}

func (f fakeTransactions) IssueBatch(_ context.Context, list []*models.BorrowTransaction) error {
	need := make(map[int64]int)
	for _, t := range list {
		need[t.BookID]++
	}
	for bookID, n := range need {
		b, ok := f.books[bookID]
		if !ok {
			return apperrors.ErrBookNotFound
		}
		if b.Available < n {
			return apperrors.ErrNoCopiesAvailable
		}
	}
	for _, t := range list {
		if err := f.adjust(t.BookID, models.IssueAdjustment); err != nil {
			return err
		}
		t.ID = f.id()
		cp := *t
		f.txs[t.ID] = &cp
	}
	return nil
}

func (f fakeTransactions) Finish(_ context.Context, t *models.BorrowTransaction, adj models.CopyAdjustment) error {
	stored, ok := f.txs[t.ID]
	if !ok {
		return apperrors.ErrTransactionNotFound
	}
	if !stored.IsActive() {
		return apperrors.ErrTransactionFinal
	}
	if err := f.adjust(t.BookID, adj); err != nil {
		return err
	}
	stored.Status = t.Status
	stored.ReturnedDate = t.ReturnedDate
	stored.FineAmount = t.FineAmount
	stored.FinePaid = t.FinePaid
	return nil
}

func (f fakeTransactions) Renew(_ context.Context, id int64, days int) (time.Time, int, error) {
	stored, ok := f.txs[id]
	if !ok || !stored.CanRenew() {
		return time.Time{}, 0, apperrors.ErrCannotRenew
	}
	stored.DueDate = dates.AddDays(stored.DueDate, days)
	stored.RenewalCount++
	return stored.DueDate, stored.RenewalCount, nil
}

func (f fakeTransactions) PayFine(_ context.Context, id int64) error {
	stored, ok := f.txs[id]
	if !ok || stored.FinePaid || stored.FineAmount <= 0 {
		return apperrors.ErrNoFineDue
	}
	stored.FinePaid = true
	return nil
}

func (f fakeTransactions) MarkOverdue(_ context.Context, today time.Time, schoolFilter *int64) (int64, error) {
	var n int64
	for _, t := range f.txs {
		if t.Status == models.StatusIssued && t.DueDate.Before(today) && visible(schoolFilter, f.books[t.BookID].SchoolID) {
			t.Status = models.StatusOverdue
			n++
		}
	}
	return n, nil
}

func (f fakeTransactions) GetByID(_ context.Context, id int64, schoolFilter *int64) (*models.BorrowTransaction, error) {
	t, ok := f.txs[id]
	if !ok || !visible(schoolFilter, f.books[t.BookID].SchoolID) {
		return nil, apperrors.ErrTransactionNotFound
	}
	return f.decorated(t), nil
}

func (f fakeTransactions) matching(schoolFilter *int64, keep func(*models.BorrowTransaction) bool) []*models.BorrowTransaction {
	var out []*models.BorrowTransaction
	for _, id := range sortedIDs(f.txs) {
		t := f.txs[id]
		if visible(schoolFilter, f.books[t.BookID].SchoolID) && keep(t) {
			out = append(out, f.decorated(t))
		}
	}
	return out
}

func (f fakeTransactions) List(_ context.Context, filter dto.TransactionFilter, today time.Time) ([]*models.BorrowTransaction, int64, error) {
	out := f.matching(filter.SchoolID, func(t *models.BorrowTransaction) bool {
		if filter.OverdueOnly && !t.IsOverdue(today) {
			return false
		}
		return filter.Status == nil || t.DisplayStatus(today) == *filter.Status
	})
	return out, int64(len(out)), nil
}

func (f fakeTransactions) ListActive(_ context.Context, schoolFilter *int64, limit uint64) ([]*models.BorrowTransaction, error) {
	out := f.matching(schoolFilter, (*models.BorrowTransaction).IsActive)
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeTransactions) ListOverdue(_ context.Context, schoolFilter *int64, today time.Time) ([]*models.BorrowTransaction, error) {
	return f.matching(schoolFilter, func(t *models.BorrowTransaction) bool { return t.IsOverdue(today) }), nil
}

func (f fakeTransactions) ListByStudent(_ context.Context, studentID int64) ([]*models.BorrowTransaction, error) {
	return f.matching(nil, func(t *models.BorrowTransaction) bool { return t.StudentID == studentID }), nil
}

// reports

type fakeReports struct {
	weekly     [7]int
	returned   int
	onTime     int
	classStats []dto.ClassBorrowStats
	stock      repositories.StockTotals
}

func (f *fakeReports) CountStudents(context.Context, *int64) (int, error) { return 25, nil }
func (f *fakeReports) CountBooks(context.Context, *int64) (int, error)    { return 7, nil }
func (f *fakeReports) CountClasses(context.Context, *int64) (int, error)  { return 3, nil }

func (f *fakeReports) CountLowStock(context.Context, *int64, int) (int, error) { return 1, nil }

func (f *fakeReports) ClassStudentCounts(context.Context, *int64) ([]dto.ClassStudentCount, error) {
	return []dto.ClassStudentCount{{ClassName: "S1", StudentCount: 25}}, nil
}

func (f *fakeReports) LedgerCounts(context.Context, *int64, time.Time) (repositories.LedgerCounts, error) {
	return repositories.LedgerCounts{Active: 4, IssuedToday: 1, Overdue: 2}, nil
}

func (f *fakeReports) WeeklyIssueCounts(context.Context, *int64, time.Time) ([7]int, error) {
	return f.weekly, nil
}

func (f *fakeReports) ReturnPunctuality(context.Context, *int64) (int, int, error) {
	return f.returned, f.onTime, nil
}

func (f *fakeReports) StudentBorrowStats(_ context.Context, _ *int64, _ *int64, _ time.Time) ([]dto.StudentBorrowStats, error) {
	return nil, nil
}

func (f *fakeReports) ClassBorrowStats(context.Context, *int64, time.Time) ([]dto.ClassBorrowStats, error) {
	return f.classStats, nil
}

func (f *fakeReports) StockTotals(context.Context, *int64) (repositories.StockTotals, error) {
	return f.stock, nil
}

// shared fixtures

var testToday = time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func librarianOf(schoolID int64) models.Scope {
	return models.Scope{UserID: 900, SchoolID: &schoolID, IsLibrarian: true}
}

func superuser() models.Scope {
	return models.Scope{UserID: 901, IsSuperuser: true}
}

func silentLogger() zerolog.Logger {
	return zerolog.Nop()
}
