package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateOffsetLimit(t *testing.T) {
	offset, limit := CalculateOffsetLimit(3, 10)
	assert.Equal(t, uint64(20), offset)
	assert.Equal(t, uint64(10), limit)

	offset, limit = CalculateOffsetLimit(0, 5000)
	assert.Equal(t, uint64(0), offset)
	assert.Equal(t, uint64(DefaultPageSize), limit)
}

func TestNewPaginationInfo(t *testing.T) {
	info := NewPaginationInfo(45, 2, 20)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, 2, info.CurrentPage)

	empty := NewPaginationInfo(0, 4, 20)
	assert.Equal(t, 1, empty.TotalPages)
	assert.Equal(t, 1, empty.CurrentPage)
}

func TestParseDurationFallsBack(t *testing.T) {
	assert.Equal(t, 2*time.Hour, ParseDuration("2h", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", "t", " y "} {
		assert.True(t, IsTruthy(v), v)
	}
	for _, v := range []string{"false", "0", "no", "", "active"} {
		assert.False(t, IsTruthy(v), v)
	}
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\% off%`, ContainsPattern("50% off"))
	assert.Equal(t, `%S4\_A%`, ContainsPattern(" S4_A "))
}
