package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPostgresErrorClassification(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "students_student_id_key"}
	wrapped := fmt.Errorf("insert student: %w", dup)

	assert.True(t, IsDuplicateKeyError(wrapped))
	assert.True(t, IsDuplicateConstraintError(wrapped, "students_student_id_key"))
	assert.False(t, IsDuplicateConstraintError(wrapped, "schools_name_key"))
	assert.False(t, IsForeignKeyError(wrapped))

	assert.True(t, IsForeignKeyError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsCheckConstraintError(&pgconn.PgError{Code: "23514"}))
	assert.False(t, IsDuplicateKeyError(errors.New("plain")))
}
