package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
)

const (
	// DefaultLowStockThreshold is the shelf count at or below which a title is low on stock
	DefaultLowStockThreshold = 2

	dashboardAvailableLimit = 10
	dashboardLowStockLimit  = 5
	dashboardBorrowedLimit  = 20
)

// ReportService builds the dashboards and report views
type ReportService interface {
	LibrarianDashboard(ctx context.Context, scope models.Scope) (*dto.LibrarianDashboard, error)
	StudentDashboard(ctx context.Context, scope models.Scope) (*dto.StudentDashboard, error)
	ReportsOverview(ctx context.Context, scope models.Scope) (*dto.ReportsOverview, error)
	ClassLists(ctx context.Context, scope models.Scope) (*dto.ClassListsOverview, error)
	ClassDetail(ctx context.Context, scope models.Scope, classGroupID int64) (*dto.ClassDetail, error)
	LibraryStock(ctx context.Context, scope models.Scope) (*dto.LibraryStock, error)
	ReturnsList(ctx context.Context, scope models.Scope) (*dto.ReturnsList, error)
	OverdueReport(ctx context.Context, scope models.Scope) (*dto.OverdueReport, error)
}

type reportServiceImpl struct {
	reportRepo        ReportStore
	schoolRepo        SchoolStore
	bookRepo          BookStore
	classGroupRepo    ClassGroupStore
	studentRepo       StudentStore
	txRepo            TransactionStore
	policy            models.LendingPolicy
	lowStockThreshold int
	logger            zerolog.Logger
	now               func() time.Time
}

// ReportDeps groups the stores the report service reads from
type ReportDeps struct {
	Reports      ReportStore
	Schools      SchoolStore
	Books        BookStore
	ClassGroups  ClassGroupStore
	Students     StudentStore
	Transactions TransactionStore
}

// NewReportService creates a new ReportService
func NewReportService(deps ReportDeps, policy models.LendingPolicy, lowStockThreshold int, logger zerolog.Logger) ReportService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &reportServiceImpl{
		reportRepo:        deps.Reports,
		schoolRepo:        deps.Schools,
		bookRepo:          deps.Books,
		classGroupRepo:    deps.ClassGroups,
		studentRepo:       deps.Students,
		txRepo:            deps.Transactions,
		policy:            policy,
		lowStockThreshold: lowStockThreshold,
		logger:            logger,
		now:               time.Now,
	}
}

func (s *reportServiceImpl) today() time.Time {
	return dates.Of(s.now())
}

// ScaleHeights maps counts onto 0..100 relative to the largest one. All-zero
// counts stay zero.
func ScaleHeights(counts [7]int) [7]float64 {
	var heights [7]float64
	peak := 0
	for _, c := range counts {
		if c > peak {
			peak = c
		}
	}
	if peak == 0 {
		return heights
	}
	for i, c := range counts {
		heights[i] = float64(c) / float64(peak) * 100
	}
	return heights
}

// Percentage returns part/whole*100, or 0 for an empty whole.
func Percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// LibrarianDashboard gathers the librarian landing view
func (s *reportServiceImpl) LibrarianDashboard(ctx context.Context, scope models.Scope) (*dto.LibrarianDashboard, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	filter := scope.SchoolFilter()
	today := s.today()
	d := &dto.LibrarianDashboard{}

	if scope.SchoolID != nil {
		school, err := s.schoolRepo.GetByID(ctx, *scope.SchoolID)
		if err != nil && !errors.Is(err, apperrors.ErrSchoolNotFound) {
			return nil, err
		}
		d.School = school
	}

	var err error
	if d.ClassStats, err = s.reportRepo.ClassStudentCounts(ctx, filter); err != nil {
		return nil, err
	}
	if d.TotalStudents, err = s.reportRepo.CountStudents(ctx, filter); err != nil {
		return nil, err
	}
	d.MonthlyStudentGrowth = d.TotalStudents / 10
	if d.TotalClasses, err = s.reportRepo.CountClasses(ctx, filter); err != nil {
		return nil, err
	}
	if d.TotalBooks, err = s.reportRepo.CountBooks(ctx, filter); err != nil {
		return nil, err
	}
	if d.LowStockCount, err = s.reportRepo.CountLowStock(ctx, filter, s.lowStockThreshold); err != nil {
		return nil, err
	}

	available, err := s.bookRepo.ListMostAvailable(ctx, filter, dashboardAvailableLimit)
	if err != nil {
		return nil, err
	}
	d.AvailableBooks = dto.NewBookResponses(available)

	lowStock, err := s.bookRepo.ListLowStock(ctx, filter, s.lowStockThreshold, dashboardLowStockLimit)
	if err != nil {
		return nil, err
	}
	d.LowStockBooks = dto.NewBookResponses(lowStock)

	borrowed, err := s.txRepo.ListActive(ctx, filter, dashboardBorrowedLimit)
	if err != nil {
		return nil, err
	}
	d.BorrowedBooks = dto.NewTransactionViews(borrowed, today, s.policy.DailyFineRate)

	counts, err := s.reportRepo.LedgerCounts(ctx, filter, today)
	if err != nil {
		return nil, err
	}
	d.TotalBorrowed = counts.Active
	d.TodayIssued = counts.IssuedToday
	d.OverdueCount = counts.Overdue

	if d.WeeklyBorrowCounts, err = s.reportRepo.WeeklyIssueCounts(ctx, filter, dates.WeekStart(today)); err != nil {
		return nil, err
	}
	d.WeeklyScaledHeights = ScaleHeights(d.WeeklyBorrowCounts)
	return d, nil
}

// StudentDashboard shows the caller's own borrows; it needs a linked student record
func (s *reportServiceImpl) StudentDashboard(ctx context.Context, scope models.Scope) (*dto.StudentDashboard, error) {
	student, err := s.studentRepo.GetByUserID(ctx, scope.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStudentNotFound) {
			return &dto.StudentDashboard{
				Borrows:      []dto.TransactionView{},
				ErrorMessage: "No student profile found. Contact the librarian.",
			}, nil
		}
		return nil, err
	}

	borrows, err := s.txRepo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	d := &dto.StudentDashboard{
		Student: student,
		Borrows: dto.NewTransactionViews(borrows, today, s.policy.DailyFineRate),
	}
	for _, t := range borrows {
		if t.DisplayStatus(today) == models.StatusIssued {
			d.BorrowedCount++
		}
		if t.IsOverdue(today) {
			d.OverdueCount++
		}
		d.TotalFine += t.UnpaidFine()
	}
	return d, nil
}

// ReportsOverview gathers library-wide borrowing statistics
func (s *reportServiceImpl) ReportsOverview(ctx context.Context, scope models.Scope) (*dto.ReportsOverview, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	filter := scope.SchoolFilter()
	today := s.today()
	r := &dto.ReportsOverview{}

	var err error
	if r.TotalStudents, err = s.reportRepo.CountStudents(ctx, filter); err != nil {
		return nil, err
	}
	if r.TotalBooks, err = s.reportRepo.CountBooks(ctx, filter); err != nil {
		return nil, err
	}
	counts, err := s.reportRepo.LedgerCounts(ctx, filter, today)
	if err != nil {
		return nil, err
	}
	r.TotalBorrowed = counts.Active
	r.OverdueCount = counts.Overdue

	returned, onTime, err := s.reportRepo.ReturnPunctuality(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.OnTimePercentage = math.Round(Percentage(onTime, returned)*10) / 10

	if r.StudentsWithBorrows, err = s.reportRepo.StudentBorrowStats(ctx, filter, nil, today); err != nil {
		return nil, err
	}

	classes, err := s.reportRepo.ClassBorrowStats(ctx, filter, today)
	if err != nil {
		return nil, err
	}
	r.ClassBorrowStats = make([]dto.ClassBorrowStats, 0, len(classes))
	for _, c := range classes {
		if c.BorrowerCount > 0 {
			r.ClassBorrowStats = append(r.ClassBorrowStats, c)
		}
	}
	return r, nil
}

// ClassLists summarises borrowing for every class in scope
func (s *reportServiceImpl) ClassLists(ctx context.Context, scope models.Scope) (*dto.ClassListsOverview, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	stats, err := s.reportRepo.ClassBorrowStats(ctx, scope.SchoolFilter(), s.today())
	if err != nil {
		return nil, err
	}
	return &dto.ClassListsOverview{ClassSummaries: stats}, nil
}

// ClassDetail lists one class's students with their borrowing state
func (s *reportServiceImpl) ClassDetail(ctx context.Context, scope models.Scope, classGroupID int64) (*dto.ClassDetail, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	filter := scope.SchoolFilter()
	cg, err := s.classGroupRepo.GetByID(ctx, classGroupID, filter)
	if err != nil {
		return nil, err
	}
	students, err := s.studentRepo.ListAll(ctx, filter, &cg.ID)
	if err != nil {
		return nil, err
	}
	stats, err := s.reportRepo.StudentBorrowStats(ctx, filter, &cg.ID, s.today())
	if err != nil {
		return nil, err
	}

	byStudent := make(map[int64]dto.StudentBorrowStats, len(stats))
	for _, st := range stats {
		byStudent[st.ID] = st
	}
	rows := make([]dto.ClassStudentRow, 0, len(students))
	for _, st := range students {
		stat := byStudent[st.ID]
		rows = append(rows, dto.ClassStudentRow{
			Student:       st,
			HasBorrowed:   stat.HasBorrowed(),
			ActiveBorrows: stat.ActiveBorrows,
			OverdueCount:  stat.OverdueCount,
		})
	}
	return &dto.ClassDetail{
		Title:      cg.Name + " - Student List",
		ClassGroup: cg,
		Students:   rows,
	}, nil
}

// LibraryStock summarises copies on and off the shelf
func (s *reportServiceImpl) LibraryStock(ctx context.Context, scope models.Scope) (*dto.LibraryStock, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	filter := scope.SchoolFilter()
	totals, err := s.reportRepo.StockTotals(ctx, filter)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.bookRepo.ListLowStock(ctx, filter, s.lowStockThreshold, 0)
	if err != nil {
		return nil, err
	}
	all, err := s.bookRepo.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	borrowed := totals.Total - totals.Available
	return &dto.LibraryStock{
		TotalCopies:         totals.Total,
		AvailableCopies:     totals.Available,
		BorrowedCopies:      borrowed,
		AvailablePercentage: Percentage(totals.Available, totals.Total),
		BorrowedPercentage:  Percentage(borrowed, totals.Total),
		LowStockBooks:       dto.NewBookResponses(lowStock),
		AllBooks:            dto.NewBookResponses(all),
	}, nil
}

// ReturnsList lists every borrow still out
func (s *reportServiceImpl) ReturnsList(ctx context.Context, scope models.Scope) (*dto.ReturnsList, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	list, err := s.txRepo.ListActive(ctx, scope.SchoolFilter(), 0)
	if err != nil {
		return nil, err
	}
	return &dto.ReturnsList{BorrowedBooks: dto.NewTransactionViews(list, s.today(), s.policy.DailyFineRate)}, nil
}

// OverdueReport lists borrows past due with the fines accrued so far
func (s *reportServiceImpl) OverdueReport(ctx context.Context, scope models.Scope) (*dto.OverdueReport, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	today := s.today()
	list, err := s.txRepo.ListOverdue(ctx, scope.SchoolFilter(), today)
	if err != nil {
		return nil, err
	}
	report := &dto.OverdueReport{
		Overdue:      dto.NewTransactionViews(list, today, s.policy.DailyFineRate),
		TotalOverdue: len(list),
	}
	for _, t := range list {
		report.TotalFine += t.CalculateFine(today, s.policy.DailyFineRate)
	}
	return report, nil
}
