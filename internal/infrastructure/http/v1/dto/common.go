// Package dto provides Data Transfer Objects for API requests/responses.
// JSON field names follow the Portuguese vocabulary of the frontend.
package dto

import (
	"encoding/json"
	"time"

	"fireblue/internal/core/types"
)

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// SuccessResponse is returned by state transitions.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PageQuery holds limit/offset query parameters.
type PageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Money renders an amount as a JSON number with exactly two decimals.
func Money(m types.Money) json.Number {
	return json.Number(types.FormatMoney(m))
}

// Price renders a unit price as a JSON number at its stored scale.
func Price(p types.Money) json.Number {
	return json.Number(types.FormatPrice(p))
}

func timePtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := *t
	return &v
}
