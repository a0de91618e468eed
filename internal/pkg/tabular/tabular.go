// Package tabular reads and writes the header-driven spreadsheets used by the
// student and book import/export flows, in CSV or XLSX form.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Row is one data row keyed by normalised header name. Line is the 1-based
// line in the source file, so the first data row is line 2.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed value of column, or "" when absent.
func (r Row) Get(column string) string {
	return r.Values[column]
}

// String renders the row for skip messages, columns sorted by name.
func (r Row) String() string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r.Values[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatError marks a file that could not be parsed at all.
func FormatError(err error) error {
	return apperrors.NewCustomError(apperrors.ErrImportFormat, "Error processing file: "+err.Error())
}

// NormalizeHeader trims and lower-cases a column name.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, FormatError(errors.New("file is empty"))
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = NormalizeHeader(h)
	}
	if strings.Join(header, "") == "" {
		return nil, FormatError(errors.New("missing header row"))
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		values := make(map[string]string, len(header))
		blank := true
		for j, col := range header {
			if col == "" || j >= len(record) {
				continue
			}
			v := strings.TrimSpace(record[j])
			values[col] = v
			if v != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Values: values})
	}
	return rows, nil
}

// ReadCSV parses a CSV file whose first line is the header.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, FormatError(err)
	}
	return toRows(records)
}

// ReadXLSX parses the first sheet of a workbook whose first row is the header.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, FormatError(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, FormatError(errors.New("workbook has no sheets"))
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, FormatError(err)
	}
	return toRows(records)
}

// Read parses r in the given format.
func Read(r io.Reader, format dto.ExportFormat) ([]Row, error) {
	if format == dto.FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// WriteCSV writes headers followed by rows.
func WriteCSV(w io.Writer, headers []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("error writing csv rows: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with headers in the first row.
func WriteXLSX(w io.Writer, sheet string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("error naming sheet: %w", err)
	}

	write := func(line int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := write(1, headers); err != nil {
		return fmt.Errorf("error writing xlsx header: %w", err)
	}
	for i, values := range rows {
		if err := write(i+2, values); err != nil {
			return fmt.Errorf("error writing xlsx row %d: %w", i+2, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing xlsx file: %w", err)
	}
	return nil
}

// Write encodes the table in the given format.
func Write(w io.Writer, format dto.ExportFormat, sheet string, headers []string, rows [][]string) error {
	if format == dto.FormatXLSX {
		return WriteXLSX(w, sheet, headers, rows)
	}
	return WriteCSV(w, headers, rows)
}

// Cap keeps the first limit messages and, when more were dropped, appends the
// line produced by more for the dropped count.
func Cap(messages []string, limit int, more func(n int) string) []string {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	capped := make([]string, 0, limit+1)
	capped = append(capped, messages[:limit]...)
	return append(capped, more(len(messages)-limit))
}
