package dto

// PaginationInfo describes one page of a list result
type PaginationInfo struct {
	CurrentPage int   `json:"currentPage" example:"1"`
	TotalPages  int   `json:"totalPages" example:"5"`
	PageSize    int   `json:"pageSize" example:"20"`
	TotalItems  int64 `json:"totalItems" example:"93"`
}

// PaginatedResponse represents a paginated list with metadata
type PaginatedResponse struct {
	Items      interface{}    `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// NewPaginatedResponse bundles a page of items with its pagination metadata.
func NewPaginatedResponse(items interface{}, info PaginationInfo) PaginatedResponse {
	return PaginatedResponse{Items: items, Pagination: info}
}
