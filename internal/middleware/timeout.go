package middleware

import (
    "context"
    "time"

    "github.com/labstack/echo/v4"
)

// Deadline bounds every request with d.  Repository and storage calls
// observe the deadline through the request context.
func Deadline(d time.Duration) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        if d <= 0 {
            return next
        }
        return func(c echo.Context) error {
            ctx, cancel := context.WithTimeout(c.Request().Context(), d)
            defer cancel()
            c.SetRequest(c.Request().WithContext(ctx))
            return next(c)
        }
    }
}
