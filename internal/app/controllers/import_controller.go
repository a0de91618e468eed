package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
	"github.com/schoollib/library/internal/pkg/apperrors"
)

// ImportController handles spreadsheet uploads and downloads
type ImportController struct {
	importService services.ImportService
	maxBytes      int64
}

// NewImportController creates a new ImportController. Uploads larger than
// maxBytes are rejected before parsing.
func NewImportController(importService services.ImportService, maxBytes int64) *ImportController {
	return &ImportController{importService: importService, maxBytes: maxBytes}
}

type uploadedFile struct {
	io.ReadCloser
	format dto.ExportFormat
}

// upload opens the multipart "file" field. The format follows the file
// extension unless the format query parameter says otherwise.
func (c *ImportController) upload(ctx *gin.Context) (*uploadedFile, bool) {
	if c.maxBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxBytes)
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.HandleAPIError(ctx, apperrors.NewCustomError(apperrors.ErrImportFormat,
				fmt.Sprintf("File is larger than %d bytes", c.maxBytes)))
			return nil, false
		}
		middleware.HandleAPIError(ctx, apperrors.NewCustomError(apperrors.ErrImportFormat, "Please choose a file to upload"))
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewCustomError(apperrors.ErrImportFormat, "Uploaded file could not be opened"))
		return nil, false
	}

	format := dto.FormatCSV
	if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		format = dto.FormatXLSX
	}
	if q := ctx.Query("format"); q != "" {
		format = dto.ParseExportFormat(strings.ToLower(q))
	}
	return &uploadedFile{ReadCloser: file, format: format}, true
}

// formID reads a positive integer form field.
func formID(ctx *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.PostForm(name), 10, 64)
	if err != nil || id <= 0 {
		detail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Please select a "+label).
			WithField(name)
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(detail))
		return 0, false
	}
	return id, true
}

// BatchImportStudents imports a CSV of students into one class, all or nothing
// @Summary Batch import students
// @Description Every row must be valid or nothing is created. Columns: student_id, name, gender, admission_date.
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param school_id formData int true "School ID"
// @Param class_group_id formData int true "Class group ID"
// @Param file formData file true "CSV file"
// @Success 201 {object} dto.APIResponse{data=dto.BatchImportResult} "Students imported"
// @Failure 400 {object} dto.APIResponse "Row errors; nothing imported"
// @Router /imports/students/batch [post]
func (c *ImportController) BatchImportStudents(ctx *gin.Context) {
	upload, ok := c.upload(ctx)
	if !ok {
		return
	}
	defer upload.Close()

	schoolID, ok := formID(ctx, "school_id", "school")
	if !ok {
		return
	}
	classGroupID, ok := formID(ctx, "class_group_id", "class")
	if !ok {
		return
	}

	result, msgs, err := c.importService.BatchImportStudents(ctx.Request.Context(), middleware.ScopeFrom(ctx), schoolID, classGroupID, upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(result, "").WithMessages(msgs))
}

// SelfImportStudents imports a CSV of students into the caller's school
// @Summary Import students into my school
// @Description Valid rows are created; invalid rows are skipped and reported.
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV file"
// @Success 200 {object} dto.APIResponse{data=dto.SelfImportResult} "Import outcome"
// @Failure 400 {object} dto.APIResponse "File could not be read"
// @Router /imports/students [post]
func (c *ImportController) SelfImportStudents(ctx *gin.Context) {
	upload, ok := c.upload(ctx)
	if !ok {
		return
	}
	defer upload.Close()

	result, msgs, err := c.importService.SelfImportStudents(ctx.Request.Context(), middleware.ScopeFrom(ctx), upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, "").WithMessages(msgs))
}

// ImportStudentSheet creates or updates students from a CSV or XLSX sheet
// @Summary Import a student sheet
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV or XLSX file"
// @Param format query string false "csv or xlsx"
// @Success 200 {object} dto.APIResponse{data=dto.TabularImportResult} "Import outcome"
// @Router /imports/students/sheet [post]
func (c *ImportController) ImportStudentSheet(ctx *gin.Context) {
	upload, ok := c.upload(ctx)
	if !ok {
		return
	}
	defer upload.Close()

	result, err := c.importService.ImportStudents(ctx.Request.Context(), middleware.ScopeFrom(ctx), upload.format, upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, importSummary(result)))
}

// ImportBookSheet creates books from a CSV or XLSX sheet
// @Summary Import a book sheet
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV or XLSX file"
// @Param format query string false "csv or xlsx"
// @Success 200 {object} dto.APIResponse{data=dto.TabularImportResult} "Import outcome"
// @Router /imports/books [post]
func (c *ImportController) ImportBookSheet(ctx *gin.Context) {
	upload, ok := c.upload(ctx)
	if !ok {
		return
	}
	defer upload.Close()

	result, err := c.importService.ImportBooks(ctx.Request.Context(), middleware.ScopeFrom(ctx), upload.format, upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, importSummary(result)))
}

// ExportStudents downloads the visible students
// @Summary Export students
// @Tags imports
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file "Student sheet"
// @Router /exports/students [get]
func (c *ImportController) ExportStudents(ctx *gin.Context) {
	c.export(ctx, "students", c.importService.ExportStudents)
}

// ExportBooks downloads the visible books
// @Summary Export books
// @Tags imports
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file "Book sheet"
// @Router /exports/books [get]
func (c *ImportController) ExportBooks(ctx *gin.Context) {
	c.export(ctx, "books", c.importService.ExportBooks)
}

type exportFunc func(ctx context.Context, scope models.Scope, format dto.ExportFormat, w io.Writer) error

// export renders into memory first so a failure can still produce a JSON error.
func (c *ImportController) export(ctx *gin.Context, name string, fn exportFunc) {
	format := dto.ParseExportFormat(strings.ToLower(ctx.Query("format")))

	var buf bytes.Buffer
	if err := fn(ctx.Request.Context(), middleware.ScopeFrom(ctx), format, &buf); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	ctx.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func importSummary(r *dto.TabularImportResult) string {
	return fmt.Sprintf("Created %d, updated %d, skipped %d", r.Created, r.Updated, r.Skipped)
}
