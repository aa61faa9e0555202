package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-registration/internal/access"
    "github.com/iliyamo/event-registration/internal/apperr"
)

// Authenticate returns an Echo middleware that resolves the Bearer session
// token into an access.Principal and stores it in the request context.
// The role is looked up by the gate on every request, so a role change
// takes effect immediately.  Handlers read the caller with PrincipalFrom.
func Authenticate(gate *access.Gate) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            p, err := gate.Resolve(c.Request().Context(), raw)
            if err != nil {
                if errors.Is(err, apperr.ErrUnauthenticated) {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
                }
                logger(c).Error().Err(err).Msg("auth: role lookup failed")
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
            }
            c.Set(principalKey, p)
            return next(c)
        }
    }
}
