package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context so database and
// verification calls give up together. Document streaming routes are
// skipped since large files legitimately take longer than the deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isStreamingRequest(c) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func isStreamingRequest(c echo.Context) bool {
	req := c.Request()
	if req.Method == "GET" && strings.HasPrefix(req.URL.Path, "/api/documents/") {
		rest := strings.TrimPrefix(req.URL.Path, "/api/documents/")
		return rest != "shared" && !strings.Contains(rest, "/access-logs")
	}
	return strings.HasSuffix(req.URL.Path, "/upload")
}
