package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one line per request. Server errors log at error level,
// client errors at warn.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)
			status := statusOf(c, err)

			evt := logger.Info()
			switch {
			case status >= 500:
				evt = logger.Error().Err(err)
			case status >= 400:
				evt = logger.Warn()
				if err != nil {
					evt = evt.Err(err)
				}
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}

// statusOf reports the status the client will see. A returned error has not
// been written yet when the middleware runs.
func statusOf(c echo.Context, err error) int {
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return he.Code
		}
		return 500
	}
	return c.Response().Status
}
