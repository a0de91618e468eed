package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
)

// ReportController serves dashboards and printable reports
type ReportController struct {
	reportService services.ReportService
}

// NewReportController creates a new ReportController
func NewReportController(reportService services.ReportService) *ReportController {
	return &ReportController{reportService: reportService}
}

// respond writes a report produced by fn for the caller's scope.
func respond[T any](ctx *gin.Context, fn func(context.Context, models.Scope) (T, error)) {
	report, err := fn(ctx.Request.Context(), middleware.ScopeFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(report, ""))
}

// LibrarianDashboard returns headline counts, the weekly chart and recent activity
// @Summary Librarian dashboard
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.LibrarianDashboard} "Dashboard"
// @Failure 403 {object} dto.APIResponse "Librarian access required"
// @Router /dashboard [get]
func (c *ReportController) LibrarianDashboard(ctx *gin.Context) {
	respond(ctx, c.reportService.LibrarianDashboard)
}

// StudentDashboard returns the caller's own borrows
// @Summary Student dashboard
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentDashboard} "Dashboard"
// @Router /dashboard/student [get]
func (c *ReportController) StudentDashboard(ctx *gin.Context) {
	respond(ctx, c.reportService.StudentDashboard)
}

// ReportsOverview returns borrowing statistics per class
// @Summary Reports overview
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ReportsOverview} "Overview"
// @Router /reports [get]
func (c *ReportController) ReportsOverview(ctx *gin.Context) {
	respond(ctx, c.reportService.ReportsOverview)
}

// ClassLists returns every class with its student count
// @Summary Class lists
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ClassListsOverview} "Class lists"
// @Router /reports/classes [get]
func (c *ReportController) ClassLists(ctx *gin.Context) {
	respond(ctx, c.reportService.ClassLists)
}

// ClassDetail returns one class's students with their borrowing totals
// @Summary Class detail
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class group ID"
// @Success 200 {object} dto.APIResponse{data=dto.ClassDetail} "Class detail"
// @Failure 404 {object} dto.APIResponse "Class group not found"
// @Router /reports/classes/{id} [get]
func (c *ReportController) ClassDetail(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	respond(ctx, func(rctx context.Context, scope models.Scope) (*dto.ClassDetail, error) {
		return c.reportService.ClassDetail(rctx, scope, id)
	})
}

// LibraryStock returns the stock listing with low-stock titles
// @Summary Library stock
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.LibraryStock} "Stock"
// @Router /reports/stock [get]
func (c *ReportController) LibraryStock(ctx *gin.Context) {
	respond(ctx, c.reportService.LibraryStock)
}

// ReturnsList returns every active borrow awaiting return
// @Summary Returns list
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ReturnsList} "Active borrows"
// @Router /reports/returns [get]
func (c *ReportController) ReturnsList(ctx *gin.Context) {
	respond(ctx, c.reportService.ReturnsList)
}

// OverdueReport returns overdue borrows and the fines accrued so far
// @Summary Overdue report
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.OverdueReport} "Overdue borrows"
// @Router /reports/overdue [get]
func (c *ReportController) OverdueReport(ctx *gin.Context) {
	respond(ctx, c.reportService.OverdueReport)
}
