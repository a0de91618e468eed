package dberrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories care about.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

func pgCode(err error) (string, string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

// IsDuplicateKeyError reports a unique_violation on any constraint.
func IsDuplicateKeyError(err error) bool {
	code, _, ok := pgCode(err)
	return ok && code == uniqueViolation
}

// IsDuplicateConstraintError checks if the error is a PostgreSQL unique violation error
// for a specific constraint.
func IsDuplicateConstraintError(err error, constraintName string) bool {
	code, name, ok := pgCode(err)
	return ok && code == uniqueViolation && name == constraintName
}

// IsForeignKeyError reports a foreign_key_violation.
func IsForeignKeyError(err error) bool {
	code, _, ok := pgCode(err)
	return ok && code == foreignKeyViolation
}

// IsCheckConstraintError reports a check_violation, e.g. the books copy-count check.
func IsCheckConstraintError(err error) bool {
	code, _, ok := pgCode(err)
	return ok && code == checkViolation
}
