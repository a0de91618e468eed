package repositories

import (
	"testing"
	"time"

	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

var today = time.Date(2026, 3, 18, 15, 30, 0, 0, time.UTC)

func TestCopyAdjustmentSQLGuardsCounters(t *testing.T) {
	sql, args, err := copyAdjustmentSQL(7, models.IssueAdjustment)
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE books SET available = available + $1, total_copies = total_copies + $2, updated_at = NOW() "+
			"WHERE id = $3 AND available + $4 >= 0 AND available + $5 <= total_copies + $6",
		sql)
	assert.Equal(t, []interface{}{-1, 0, int64(7), -1, -1, 0}, args)

	_, args, err = copyAdjustmentSQL(7, models.AdjustmentFor(models.StatusLost))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{0, -1, int64(7), 0, 0, -1}, args)
}

func TestOverdueSweepSQL(t *testing.T) {
	sql, args, err := overdueSweepSQL(today, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE borrow_transactions SET status = $1, updated_at = NOW() WHERE status = $2 AND due_date < $3",
		sql)
	assert.Equal(t, []interface{}{"OVERDUE", "ISSUED", time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)}, args)

	sql, args, err = overdueSweepSQL(today, int64Ptr(4))
	require.NoError(t, err)
	assert.Contains(t, sql, "book_id IN (SELECT id FROM books WHERE school_id = $4)")
	assert.Equal(t, int64(4), args[3])
}

func TestTransactionFilterQueryDerivesOverdue(t *testing.T) {
	overdue := models.StatusOverdue
	sql, args, err := transactionFilterQuery(selectTransactions(), dto.TransactionFilter{
		Status:   &overdue,
		SchoolID: int64Ptr(2),
		Query:    "50%",
	}, today).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "b.school_id = $1")
	assert.Contains(t, sql, activeCondition)
	assert.Contains(t, sql, "t.due_date < $2")
	assert.Contains(t, sql, "st.name ILIKE $3")
	assert.Contains(t, sql, "b.isbn ILIKE $6")
	assert.Equal(t, `%50\%%`, args[2])
	assert.NotContains(t, sql, "t.status = ")
}

func TestTransactionFilterQueryIssuedExcludesPastDue(t *testing.T) {
	issued := models.StatusIssued
	sql, args, err := transactionFilterQuery(selectTransactions(), dto.TransactionFilter{Status: &issued}, today).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "t.status = $1")
	assert.Contains(t, sql, "t.due_date >= $2")
	assert.Equal(t, "ISSUED", args[0])
}

func TestStudentFilterQueryExtendedSearch(t *testing.T) {
	sql, _, err := studentFilterQuery(selectStudents(), dto.StudentFilter{Query: "ann"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "cg.name ILIKE")
	assert.NotContains(t, sql, "st.email ILIKE")

	sql, _, err = studentFilterQuery(selectStudents(), dto.StudentFilter{Query: "ann", Extended: true, ClassGroupID: int64Ptr(3)}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "st.class_group_id = $1")
	assert.Contains(t, sql, "st.email ILIKE")
	assert.Contains(t, sql, "st.roll_number ILIKE")
}

func TestBookFilterQuery(t *testing.T) {
	sql, args, err := bookFilterQuery(selectBooks(), dto.BookFilter{AvailableOnly: true, CategoryID: int64Ptr(9)}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "b.category_id = $1")
	assert.Contains(t, sql, "b.available > $2")
	assert.Equal(t, []interface{}{int64(9), 0}, args)
}

func TestInSchoolLeavesSuperuserUnfiltered(t *testing.T) {
	sql, _, err := inSchool(psql.Select("1").From("books b"), "b.school_id", nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM books b", sql)
}

func TestLedgerCountsQueryBindsToday(t *testing.T) {
	sql, args, err := ledgerCountsQuery(int64Ptr(1), today).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "COUNT(*) FILTER (WHERE t.issued_date = $1)")
	assert.Contains(t, sql, "t.due_date < $2")
	assert.Contains(t, sql, "b.school_id = $3")
	day := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []interface{}{day, day, int64(1)}, args)
}

func TestClassBorrowStatsCountsDistinctBorrowers(t *testing.T) {
	sql, _, err := classBorrowStatsQuery(nil, today).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "COUNT(DISTINCT t.student_id)")
	assert.Contains(t, sql, "GROUP BY cg.id, cg.name")
}
