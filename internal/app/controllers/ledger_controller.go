package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
	"github.com/schoollib/library/internal/pkg/dates"
	"github.com/schoollib/library/internal/pkg/helpers"
)

// LedgerController handles borrow transactions
type LedgerController struct {
	ledgerService services.LedgerService
}

// NewLedgerController creates a new LedgerController
func NewLedgerController(ledgerService services.LedgerService) *LedgerController {
	return &LedgerController{ledgerService: ledgerService}
}

type transitionFunc func(ctx context.Context, scope models.Scope, id int64) (*models.BorrowTransaction, error)

// transition runs a single-transaction state change addressed by the id path parameter.
func (c *LedgerController) transition(ctx *gin.Context, fn transitionFunc, message string) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	tx, err := fn(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(tx, message))
}

// Issue lends one copy of a book to a student
// @Summary Issue a book
// @Description Takes one copy off the shelf. Due date defaults to the loan period.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.IssueBookRequest true "Student, book and optional due date"
// @Success 201 {object} dto.APIResponse{data=models.BorrowTransaction} "Book issued"
// @Failure 400 {object} dto.APIResponse "No copies available or invalid due date"
// @Failure 404 {object} dto.APIResponse "Student or book not found"
// @Router /transactions [post]
func (c *LedgerController) Issue(ctx *gin.Context) {
	var req dto.IssueBookRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	tx, err := c.ledgerService.Issue(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(tx, "Book issued successfully"))
}

// IssueMany lends several titles to one student
// @Summary Issue several books
// @Description Quantities above the available copies are capped and reported as warnings.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.IssueManyRequest true "Student and titles"
// @Success 201 {object} dto.APIResponse{data=dto.IssueManyResult} "Books issued"
// @Failure 400 {object} dto.APIResponse "Nothing to issue"
// @Router /transactions/issue-many [post]
func (c *LedgerController) IssueMany(ctx *gin.Context) {
	var req dto.IssueManyRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, msgs, err := c.ledgerService.IssueMany(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(result, fmt.Sprintf("Issued %d book(s)", result.Issued)).WithMessages(msgs))
}

// ListTransactions lists and searches borrow transactions
// @Summary List transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param q query string false "Student name, student ID or book title"
// @Param status query string false "ISSUED, OVERDUE, RETURNED, LOST, DAMAGED or CANCELLED"
// @Param student query int false "Student ID"
// @Param book query int false "Book ID"
// @Param overdue query bool false "Only active borrows past their due date"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.TransactionListResponse} "Transactions"
// @Router /transactions [get]
func (c *LedgerController) ListTransactions(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	filter := dto.TransactionFilter{
		Query:       strings.TrimSpace(ctx.Query("q")),
		StudentID:   middleware.QueryID(ctx, "student"),
		BookID:      middleware.QueryID(ctx, "book"),
		OverdueOnly: helpers.IsTruthy(ctx.Query("overdue")),
		SchoolID:    middleware.QueryID(ctx, "school"),
		Page:        page,
		Size:        size,
	}
	if raw := ctx.Query("status"); raw != "" {
		status := models.TransactionStatus(strings.ToUpper(raw))
		if status.IsValid() {
			filter.Status = &status
		}
	}

	list, err := c.ledgerService.ListTransactions(ctx.Request.Context(), middleware.ScopeFrom(ctx), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(list, ""))
}

// GetTransaction retrieves one borrow transaction
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=dto.TransactionView} "Transaction"
// @Failure 404 {object} dto.APIResponse "Transaction not found"
// @Router /transactions/{id} [get]
func (c *LedgerController) GetTransaction(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.ledgerService.GetTransaction(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(view, ""))
}

// ReturnPreview shows the fine a return would incur today
// @Summary Preview a return
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=dto.ReturnPreview} "Preview"
// @Failure 404 {object} dto.APIResponse "Transaction not found"
// @Router /transactions/{id}/return [get]
func (c *LedgerController) ReturnPreview(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	preview, err := c.ledgerService.ReturnPreview(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(preview, ""))
}

// Return checks a copy back in
// @Summary Return a book
// @Description Puts the copy back on the shelf and records the late fine, if any.
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=models.BorrowTransaction} "Book returned"
// @Failure 400 {object} dto.APIResponse "Transaction already finalized"
// @Failure 404 {object} dto.APIResponse "Transaction not found"
// @Router /transactions/{id}/return [post]
func (c *LedgerController) Return(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	tx, msgs, err := c.ledgerService.Return(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(tx, "Book returned successfully").WithMessages(msgs))
}

// BulkReturn returns every selected active borrow
// @Summary Return several books
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkIDsRequest true "Transaction IDs"
// @Success 200 {object} dto.APIResponse{data=dto.BulkResult} "Bulk return outcome"
// @Router /transactions/bulk-return [post]
func (c *LedgerController) BulkReturn(ctx *gin.Context) {
	var req dto.BulkIDsRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, msgs, err := c.ledgerService.BulkReturn(ctx.Request.Context(), middleware.ScopeFrom(ctx), req.IDs)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, "").WithMessages(msgs))
}

// BulkAction applies one transition to every selected borrow
// @Summary Bulk transaction action
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkActionRequest true "Action and transaction IDs"
// @Success 200 {object} dto.APIResponse{data=dto.BulkResult} "Bulk action outcome"
// @Failure 400 {object} dto.APIResponse "Unknown action"
// @Router /transactions/bulk-action [post]
func (c *LedgerController) BulkAction(ctx *gin.Context) {
	var req dto.BulkActionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, msgs, err := c.ledgerService.BulkAction(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, "").WithMessages(msgs))
}

// Renew extends the due date of an issued borrow
// @Summary Renew a borrow
// @Description The body is optional; without days the configured renewal period applies.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Param request body dto.RenewRequest false "Renewal length"
// @Success 200 {object} dto.APIResponse{data=models.BorrowTransaction} "Borrow renewed"
// @Failure 400 {object} dto.APIResponse "Cannot renew"
// @Router /transactions/{id}/renew [post]
func (c *LedgerController) Renew(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.RenewRequest
	if ctx.Request.ContentLength > 0 && !middleware.BindJSON(ctx, &req) {
		return
	}

	tx, err := c.ledgerService.Renew(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, req.Days)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(tx, "Borrow renewed until "+tx.DueDate.Format(dates.Layout)))
}

// MarkLost marks an active borrow as lost
// @Summary Mark a borrow lost
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=models.BorrowTransaction} "Marked lost"
// @Failure 400 {object} dto.APIResponse "Transaction already finalized"
// @Router /transactions/{id}/lost [post]
func (c *LedgerController) MarkLost(ctx *gin.Context) {
	c.transition(ctx, c.ledgerService.MarkLost, "Borrow marked as lost")
}

// MarkDamaged marks an active borrow as damaged
// @Summary Mark a borrow damaged
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=models.BorrowTransaction} "Marked damaged"
// @Failure 400 {object} dto.APIResponse "Transaction already finalized"
// @Router /transactions/{id}/damaged [post]
func (c *LedgerController) MarkDamaged(ctx *gin.Context) {
	c.transition(ctx, c.ledgerService.MarkDamaged, "Borrow marked as damaged")
}

// Cancel cancels an active borrow and puts the copy back
// @Summary Cancel a borrow
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=models.BorrowTransaction} "Borrow cancelled"
// @Failure 400 {object} dto.APIResponse "Transaction already finalized"
// @Router /transactions/{id}/cancel [post]
func (c *LedgerController) Cancel(ctx *gin.Context) {
	c.transition(ctx, c.ledgerService.Cancel, "Borrow cancelled")
}

// PayFine records payment of a borrow's fine
// @Summary Pay a fine
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=models.BorrowTransaction} "Fine paid"
// @Failure 400 {object} dto.APIResponse "No unpaid fine"
// @Router /transactions/{id}/pay-fine [post]
func (c *LedgerController) PayFine(ctx *gin.Context) {
	c.transition(ctx, c.ledgerService.PayFine, "Fine marked as paid")
}

// SweepOverdue flags issued borrows past their due date as overdue
// @Summary Run the overdue sweep
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SweepResult} "Sweep outcome"
// @Router /transactions/sweep-overdue [post]
func (c *LedgerController) SweepOverdue(ctx *gin.Context) {
	result, err := c.ledgerService.SweepOverdue(ctx.Request.Context(), middleware.ScopeFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, fmt.Sprintf("%d borrow(s) marked overdue", result.Updated)))
}
