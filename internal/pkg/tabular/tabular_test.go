package tabular

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVNormalizesHeadersAndValues(t *testing.T) {
	input := "\ufeff Student_ID ,Name,CLASS_GROUP\n S1 , Ann ,P5\n\nS2,Bob\n"
	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "S1", rows[0].Get("student_id"))
	assert.Equal(t, "Ann", rows[0].Get("name"))
	assert.Equal(t, "P5", rows[0].Get("class_group"))

	assert.Equal(t, "S2", rows[1].Get("student_id"))
	assert.Equal(t, "", rows[1].Get("class_group"))
}

func TestRowString(t *testing.T) {
	row := Row{Values: map[string]string{"name": "Ann", "class_group": ""}}
	assert.Equal(t, "{class_group=, name=Ann}", row.String())
}

func TestReadCSVSkipsBlankRows(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("a,b\n,\nx,y\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Line)
}

func TestReadCSVFormatErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, apperrors.ErrImportFormat)

	_, err = ReadCSV(strings.NewReader("a,\"b\nc"))
	assert.ErrorIs(t, err, apperrors.ErrImportFormat)
	assert.Contains(t, err.Error(), "Error processing file:")
}

func TestXLSXWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, dto.FormatXLSX, "Books", []string{"title", "total_copies"}, [][]string{
		{"Atlas", "3"},
		{"Primer", "1"},
	}))

	rows, err := Read(bytes.NewReader(buf.Bytes()), dto.FormatXLSX)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Atlas", rows[0].Get("title"))
	assert.Equal(t, "1", rows[1].Get("total_copies"))
}

func TestReadXLSXRejectsGarbage(t *testing.T) {
	_, err := ReadXLSX(strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, apperrors.ErrImportFormat)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"a", "b"}, [][]string{{"1", "x,y"}}))
	assert.Equal(t, "a,b\n1,\"x,y\"\n", buf.String())
}

func TestCap(t *testing.T) {
	msgs := make([]string, 12)
	for i := range msgs {
		msgs[i] = fmt.Sprintf("m%d", i)
	}
	capped := Cap(msgs, 10, func(n int) string { return fmt.Sprintf("...and %d more errors.", n) })
	require.Len(t, capped, 11)
	assert.Equal(t, "m9", capped[9])
	assert.Equal(t, "...and 2 more errors.", capped[10])

	assert.Equal(t, msgs[:3], Cap(msgs[:3], 10, nil))
}
