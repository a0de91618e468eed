package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/middleware"
	"github.com/schoollib/library/internal/pkg/helpers"
)

// CatalogController handles categories and books
type CatalogController struct {
	catalogService services.CatalogService
}

// NewCatalogController creates a new CatalogController
func NewCatalogController(catalogService services.CatalogService) *CatalogController {
	return &CatalogController{catalogService: catalogService}
}

// ListCategories lists every category
// @Summary List categories
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Category} "Categories"
// @Router /categories [get]
func (c *CatalogController) ListCategories(ctx *gin.Context) {
	categories, err := c.catalogService.ListCategories(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(categories, ""))
}

// CreateCategory creates a category
// @Summary Create a category
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CategoryRequest true "Category"
// @Success 201 {object} dto.APIResponse{data=models.Category} "Category created"
// @Failure 409 {object} dto.APIResponse "Name taken"
// @Router /categories [post]
func (c *CatalogController) CreateCategory(ctx *gin.Context) {
	var req dto.CategoryRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	category, err := c.catalogService.CreateCategory(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(category, "Category created successfully"))
}

// UpdateCategory renames a category
// @Summary Update a category
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Param request body dto.CategoryRequest true "Category"
// @Success 200 {object} dto.APIResponse{data=models.Category} "Category updated"
// @Failure 404 {object} dto.APIResponse "Category not found"
// @Router /categories/{id} [put]
func (c *CatalogController) UpdateCategory(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.CategoryRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	category, err := c.catalogService.UpdateCategory(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(category, "Category updated successfully"))
}

// DeleteCategory deletes a category; its books become uncategorised
// @Summary Delete a category
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Success 200 {object} dto.APIResponse "Category deleted"
// @Failure 404 {object} dto.APIResponse "Category not found"
// @Router /categories/{id} [delete]
func (c *CatalogController) DeleteCategory(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.catalogService.DeleteCategory(ctx.Request.Context(), middleware.ScopeFrom(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Category deleted successfully"))
}

// ListBooks lists and searches books
// @Summary List books
// @Description Searches title, author and ISBN. Results are restricted to the caller's school.
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search text"
// @Param category query int false "Category ID"
// @Param school query int false "School ID (superusers only)"
// @Param available query bool false "Only titles with copies on the shelf"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.BookListResponse} "Books"
// @Router /books [get]
func (c *CatalogController) ListBooks(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	filter := dto.BookFilter{
		Query:         strings.TrimSpace(ctx.Query("q")),
		CategoryID:    middleware.QueryID(ctx, "category"),
		SchoolID:      middleware.QueryID(ctx, "school"),
		AvailableOnly: helpers.IsTruthy(ctx.Query("available")),
		Page:          page,
		Size:          size,
	}

	books, err := c.catalogService.ListBooks(ctx.Request.Context(), middleware.ScopeFrom(ctx), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(books, ""))
}

// GetBook retrieves a book by ID
// @Summary Get a book
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} dto.APIResponse{data=dto.BookResponse} "Book"
// @Failure 404 {object} dto.APIResponse "Book not found"
// @Router /books/{id} [get]
func (c *CatalogController) GetBook(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	book, err := c.catalogService.GetBook(ctx.Request.Context(), middleware.ScopeFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookResponse(book), ""))
}

// CreateBook adds a title to the catalog
// @Summary Create a book
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateBookRequest true "Book"
// @Success 201 {object} dto.APIResponse{data=dto.BookResponse} "Book created"
// @Failure 400 {object} dto.APIResponse "Invalid request format"
// @Router /books [post]
func (c *CatalogController) CreateBook(ctx *gin.Context) {
	var req dto.CreateBookRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	book, err := c.catalogService.CreateBook(ctx.Request.Context(), middleware.ScopeFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewBookResponse(book), "Book created successfully"))
}

// UpdateBook updates a book
// @Summary Update a book
// @Description Changing totalCopies moves available by the same amount; it fails if that would drop below zero.
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body dto.UpdateBookRequest true "Book"
// @Success 200 {object} dto.APIResponse{data=dto.BookResponse} "Book updated"
// @Failure 400 {object} dto.APIResponse "Copies still on loan"
// @Failure 404 {object} dto.APIResponse "Book not found"
// @Router /books/{id} [put]
func (c *CatalogController) UpdateBook(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateBookRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	book, err := c.catalogService.UpdateBook(ctx.Request.Context(), middleware.ScopeFrom(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookResponse(book), "Book updated successfully"))
}

// DeleteBook deletes a book without borrow history
// @Summary Delete a book
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} dto.APIResponse "Book deleted"
// @Failure 404 {object} dto.APIResponse "Book not found"
// @Failure 409 {object} dto.APIResponse "Book has borrow records"
// @Router /books/{id} [delete]
func (c *CatalogController) DeleteBook(ctx *gin.Context) {
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.catalogService.DeleteBook(ctx.Request.Context(), middleware.ScopeFrom(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Book deleted successfully"))
}
