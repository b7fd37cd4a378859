package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/fhir"
)

// BodyLimit rejects request bodies larger than limit with 413 and a FHIR
// OperationOutcome. Limits are sizes like "512K", "1M" or "1G"; a bare
// number is bytes.
func BodyLimit(limit string) echo.MiddlewareFunc {
	maxBytes := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > maxBytes {
				return payloadTooLarge(c, maxBytes)
			}
			// Content-Length may be missing or wrong.
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: maxBytes}
			return next(c)
		}
	}
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (int, error) {
	if r.exceeded {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	// Read one byte past the limit to detect overflow.
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}
	n, err := r.ReadCloser.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		r.exceeded = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}

func payloadTooLarge(c echo.Context, limit int64) error {
	return c.JSON(http.StatusRequestEntityTooLarge, fhir.NewOperationOutcome(
		fhir.IssueSeverityError, fhir.IssueTypeTooCostly,
		fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes", limit)))
}

// parseLimit falls back to 1 MB on empty or malformed input.
func parseLimit(s string) int64 {
	const fallback = 1 << 20
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")
	if s == "" {
		return fallback
	}

	var multiplier int64 = 1
	switch s[len(s)-1] {
	case 'G':
		multiplier = 1 << 30
	case 'M':
		multiplier = 1 << 20
	case 'K':
		multiplier = 1 << 10
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n * multiplier
}
