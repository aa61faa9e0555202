package middleware // middleware provides shared request processing for handlers

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-registration/internal/access"
    "github.com/iliyamo/event-registration/internal/apperr"
)

// RequireRole enforces the role half of the access policy for a whole
// route group.  It must run after Authenticate.  Ownership is checked
// later by the lifecycle engine once the record has been read.
func RequireRole(req access.Requirement) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            p, _ := PrincipalFrom(c)
            if err := access.Authorize(p, req, nil); err != nil {
                if errors.Is(err, apperr.ErrUnauthenticated) {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
                }
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
