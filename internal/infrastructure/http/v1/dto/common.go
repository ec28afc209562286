// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"warelog/internal/core/id"
	"warelog/internal/domain"
)

// --- List Query ---

// ListQuery contains common list parameters.
type ListQuery struct {
	Search  string   `form:"search"`
	IDs     []string `form:"ids"`
	OrderBy string   `form:"orderBy"`
	Limit   int      `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int      `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts query parameters to a domain list filter.
func (q *ListQuery) ToFilter() (domain.ListFilter, error) {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	for _, raw := range q.IDs {
		parsed, err := parseID("ids", raw)
		if err != nil {
			return f, err
		}
		f.IDs = append(f.IDs, parsed)
	}
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f, nil
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse builds a ListResponse from mapped items and a domain result.
func NewListResponse[T, R any](result domain.ListResult[T], mapFn func(*T) R) ListResponse {
	items := make([]R, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, mapFn(&result.Items[i]))
	}
	return ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
