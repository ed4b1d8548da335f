package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests with 429 once the client IP exceeds its budget.
// Paths in skip bypass the limiter.
func RateLimit(l Limiter, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		if p != "" {
			skipped[p] = struct{}{}
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Path()]; ok {
				return next(c)
			}
			if !l.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
