package dto

// ExportFormat selects the tabular export encoding
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat defaults to CSV for anything but "xlsx".
func ParseExportFormat(s string) ExportFormat {
	if ExportFormat(s) == FormatXLSX {
		return FormatXLSX
	}
	return FormatCSV
}

// ContentType is the MIME type for the format
func (f ExportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// BatchImportResult reports an all-or-nothing student import
type BatchImportResult struct {
	Created    int      `json:"created"`
	ErrorCount int      `json:"errorCount"`
	Errors     []string `json:"errors,omitempty"`
}

// SelfImportResult reports a partial-success student import
type SelfImportResult struct {
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}

// TabularImportResult reports a book or student spreadsheet import
type TabularImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}
