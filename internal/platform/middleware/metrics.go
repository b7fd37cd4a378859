package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/metrics"
)

// Metrics records request counts and latency by route template. Requests
// that matched no route are labelled "unmatched".
func Metrics(m *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.InFlight(1)
			defer m.InFlight(-1)

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(c.Request().Method, route, statusOf(c, err), time.Since(start))
			return err
		}
	}
}
