// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain"
)

// --- List Query ---

// ListQuery contains the search, ordering and pagination parameters shared
// by every list endpoint.
type ListQuery struct {
	Search  string `form:"search"`
	OrderBy string `form:"orderBy"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// ToListFilter converts to the domain list filter.
func (q ListQuery) ToListFilter() domain.ListFilter {
	f := domain.ListFilter{
		Search:  q.Search,
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	f.Normalize()
	return f
}

// parseOptionalID parses an optional uuid query parameter.
func parseOptionalID(field, raw string) (*id.ID, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := id.Parse(raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid " + field).WithDetail("field", field)
	}
	return &v, nil
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
