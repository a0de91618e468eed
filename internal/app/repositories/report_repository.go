package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/db"
	"github.com/schoollib/library/internal/pkg/dates"
)

// ReportRepository runs the aggregate queries behind dashboards and reports
type ReportRepository struct {
	db *db.PostgresDB
}

// NewReportRepository creates a new report repository
func NewReportRepository(database *db.PostgresDB) *ReportRepository {
	return &ReportRepository{db: database}
}

// LedgerCounts are the headline borrow numbers
type LedgerCounts struct {
	Active      int
	IssuedToday int
	Overdue     int
}

// StockTotals sums copies across the catalog
type StockTotals struct {
	Total     int
	Available int
}

// overdueColumn counts active borrows due before today.
func overdueColumn(count string, today time.Time) squirrel.Sqlizer {
	return squirrel.Expr(count+" FILTER (WHERE "+activeCondition+" AND t.due_date < ?)", dates.Of(today))
}

func (r *ReportRepository) count(ctx context.Context, q squirrel.SelectBuilder) (int, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("error building count SQL: %w", err)
	}
	var n int
	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting: %w", err)
	}
	return n, nil
}

// CountStudents counts students in scope
func (r *ReportRepository) CountStudents(ctx context.Context, schoolFilter *int64) (int, error) {
	return r.count(ctx, inSchool(psql.Select("COUNT(*)").From("students st"), "st.school_id", schoolFilter))
}

// CountBooks counts catalog titles in scope
func (r *ReportRepository) CountBooks(ctx context.Context, schoolFilter *int64) (int, error) {
	return r.count(ctx, inSchool(psql.Select("COUNT(*)").From("books b"), "b.school_id", schoolFilter))
}

// CountClasses counts class groups in scope
func (r *ReportRepository) CountClasses(ctx context.Context, schoolFilter *int64) (int, error) {
	return r.count(ctx, inSchool(psql.Select("COUNT(*)").From("class_groups cg"), "cg.school_id", schoolFilter))
}

// CountLowStock counts titles with at most threshold copies on the shelf
func (r *ReportRepository) CountLowStock(ctx context.Context, schoolFilter *int64, threshold int) (int, error) {
	return r.count(ctx, inSchool(psql.Select("COUNT(*)").From("books b").Where(squirrel.LtOrEq{"b.available": threshold}), "b.school_id", schoolFilter))
}

// ClassStudentCounts returns the headcount of every class group in scope
func (r *ReportRepository) ClassStudentCounts(ctx context.Context, schoolFilter *int64) ([]dto.ClassStudentCount, error) {
	q := inSchool(psql.Select("cg.name", "COUNT(st.id)").
		From("class_groups cg").
		LeftJoin("students st ON st.class_group_id = cg.id"), "cg.school_id", schoolFilter).
		GroupBy("cg.id", "cg.name").
		OrderBy("cg.name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building class counts SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying class counts: %w", err)
	}
	defer rows.Close()

	counts := make([]dto.ClassStudentCount, 0)
	for rows.Next() {
		var c dto.ClassStudentCount
		if err := rows.Scan(&c.ClassName, &c.StudentCount); err != nil {
			return nil, fmt.Errorf("error scanning class count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func ledgerCountsQuery(schoolFilter *int64, today time.Time) squirrel.SelectBuilder {
	return inSchool(psql.Select("COUNT(*) FILTER (WHERE "+activeCondition+")").
		Column(squirrel.Expr("COUNT(*) FILTER (WHERE t.issued_date = ?)", dates.Of(today))).
		Column(overdueColumn("COUNT(*)", today)).
		From("borrow_transactions t").Join("books b ON b.id = t.book_id"), "b.school_id", schoolFilter)
}

// LedgerCounts returns active, issued-today and overdue borrow counts
func (r *ReportRepository) LedgerCounts(ctx context.Context, schoolFilter *int64, today time.Time) (LedgerCounts, error) {
	var c LedgerCounts
	sql, args, err := ledgerCountsQuery(schoolFilter, today).ToSql()
	if err != nil {
		return c, fmt.Errorf("error building ledger counts SQL: %w", err)
	}
	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&c.Active, &c.IssuedToday, &c.Overdue); err != nil {
		return c, fmt.Errorf("error querying ledger counts: %w", err)
	}
	return c, nil
}

// WeeklyIssueCounts counts borrows issued on each day of the week starting at
// weekStart, Monday first
func (r *ReportRepository) WeeklyIssueCounts(ctx context.Context, schoolFilter *int64, weekStart time.Time) ([7]int, error) {
	var counts [7]int
	start := dates.Of(weekStart)
	q := inSchool(psql.Select("t.issued_date", "COUNT(*)").
		From("borrow_transactions t").
		Join("books b ON b.id = t.book_id").
		Where(squirrel.GtOrEq{"t.issued_date": start}).
		Where(squirrel.Lt{"t.issued_date": dates.AddDays(start, 7)}), "b.school_id", schoolFilter).
		GroupBy("t.issued_date")

	sql, args, err := q.ToSql()
	if err != nil {
		return counts, fmt.Errorf("error building weekly counts SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return counts, fmt.Errorf("error querying weekly counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day time.Time
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return counts, fmt.Errorf("error scanning weekly count: %w", err)
		}
		if idx := dates.DaysBetween(start, day); idx >= 0 && idx < 7 {
			counts[idx] = n
		}
	}
	return counts, rows.Err()
}

// ReturnPunctuality counts returned borrows and how many came back by the due date
func (r *ReportRepository) ReturnPunctuality(ctx context.Context, schoolFilter *int64) (returned, onTime int, err error) {
	q := inSchool(psql.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE t.returned_date <= t.due_date)",
	).From("borrow_transactions t").
		Join("books b ON b.id = t.book_id").
		Where(squirrel.Eq{"t.status": "RETURNED"}).
		Where("t.returned_date IS NOT NULL"), "b.school_id", schoolFilter)

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("error building punctuality SQL: %w", err)
	}
	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&returned, &onTime); err != nil {
		return 0, 0, fmt.Errorf("error querying punctuality: %w", err)
	}
	return returned, onTime, nil
}

func studentBorrowStatsQuery(schoolFilter, classGroupID *int64, today time.Time) squirrel.SelectBuilder {
	q := inSchool(psql.Select(
		"st.id", "st.student_id", "st.name", "COALESCE(cg.name, '')",
		"COUNT(t.id)",
		"COUNT(t.id) FILTER (WHERE "+activeCondition+")",
	).Column(overdueColumn("COUNT(t.id)", today)).
		From("students st").
		Join("borrow_transactions t ON t.student_id = st.id").
		LeftJoin("class_groups cg ON cg.id = st.class_group_id"), "st.school_id", schoolFilter)
	if classGroupID != nil {
		q = q.Where(squirrel.Eq{"st.class_group_id": *classGroupID})
	}
	return q.GroupBy("st.id", "st.student_id", "st.name", "cg.name").OrderBy("cg.name", "st.name", "st.id")
}

// StudentBorrowStats returns borrow totals for every student with at least one borrow
func (r *ReportRepository) StudentBorrowStats(ctx context.Context, schoolFilter, classGroupID *int64, today time.Time) ([]dto.StudentBorrowStats, error) {
	sql, args, err := studentBorrowStatsQuery(schoolFilter, classGroupID, today).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building student stats SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying student stats: %w", err)
	}
	defer rows.Close()

	stats := make([]dto.StudentBorrowStats, 0)
	for rows.Next() {
		var s dto.StudentBorrowStats
		if err := rows.Scan(&s.ID, &s.StudentID, &s.Name, &s.ClassName, &s.TotalBorrows, &s.ActiveBorrows, &s.OverdueCount); err != nil {
			return nil, fmt.Errorf("error scanning student stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func classBorrowStatsQuery(schoolFilter *int64, today time.Time) squirrel.SelectBuilder {
	return inSchool(psql.Select(
		"cg.id", "cg.name",
		"COUNT(DISTINCT st.id)",
		"COUNT(DISTINCT t.student_id)",
		"COUNT(t.id) FILTER (WHERE "+activeCondition+")",
	).Column(overdueColumn("COUNT(t.id)", today)).
		From("class_groups cg").
		LeftJoin("students st ON st.class_group_id = cg.id").
		LeftJoin("borrow_transactions t ON t.student_id = st.id"), "cg.school_id", schoolFilter).
		GroupBy("cg.id", "cg.name").
		OrderBy("cg.name", "cg.id")
}

// ClassBorrowStats returns borrowing totals for every class group in scope
func (r *ReportRepository) ClassBorrowStats(ctx context.Context, schoolFilter *int64, today time.Time) ([]dto.ClassBorrowStats, error) {
	sql, args, err := classBorrowStatsQuery(schoolFilter, today).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building class stats SQL: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying class stats: %w", err)
	}
	defer rows.Close()

	stats := make([]dto.ClassBorrowStats, 0)
	for rows.Next() {
		var s dto.ClassBorrowStats
		if err := rows.Scan(&s.ClassGroupID, &s.Name, &s.TotalStudents, &s.BorrowerCount, &s.ActiveBorrows, &s.OverdueCount); err != nil {
			return nil, fmt.Errorf("error scanning class stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// StockTotals sums total and available copies in scope
func (r *ReportRepository) StockTotals(ctx context.Context, schoolFilter *int64) (StockTotals, error) {
	var s StockTotals
	sql, args, err := inSchool(psql.Select("COALESCE(SUM(b.total_copies), 0)", "COALESCE(SUM(b.available), 0)").From("books b"), "b.school_id", schoolFilter).ToSql()
	if err != nil {
		return s, fmt.Errorf("error building stock totals SQL: %w", err)
	}
	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&s.Total, &s.Available); err != nil {
		return s, fmt.Errorf("error querying stock totals: %w", err)
	}
	return s, nil
}
