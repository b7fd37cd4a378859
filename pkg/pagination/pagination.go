// Package pagination parses limit/offset query parameters and wraps list
// responses.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset, accepting the FHIR _count/_offset names
// as well.
func FromContext(c echo.Context) Params {
	limit := firstInt(c, "_count", "limit")
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := firstInt(c, "_offset", "offset")
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

func firstInt(c echo.Context, names ...string) int {
	for _, n := range names {
		if v, err := strconv.Atoi(c.QueryParam(n)); err == nil && v != 0 {
			return v
		}
	}
	return 0
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Response wraps a paginated API response.
type Response struct {
	Data    any  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func NewResponse(data any, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: Params{Limit: limit, Offset: offset}.HasNext(total),
	}
}
