package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-registration/internal/access"
    "github.com/iliyamo/event-registration/internal/apperr"
    "github.com/iliyamo/event-registration/internal/middleware"
    "github.com/iliyamo/event-registration/internal/storage"
)

// principal returns the caller resolved by middleware.Authenticate.  A
// missing principal yields the zero value, which every access check
// rejects as unauthenticated.
func principal(c echo.Context) access.Principal {
    p, _ := middleware.PrincipalFrom(c)
    return p
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// writeError translates a failure kind into its HTTP status and message.
// Unexpected errors are logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, apperr.ErrUnauthenticated):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
    case errors.Is(err, apperr.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, apperr.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "already registered"})
    case errors.Is(err, apperr.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, echo.Map{"error": "state changed, please refresh"})
    case errors.Is(err, apperr.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, storage.ErrTooLarge):
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "receipt too large"})
    case errors.Is(err, apperr.ErrInvalidInput):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
    case errors.Is(err, apperr.ErrStorageFailure):
        middleware.Logger(c).Error().Err(err).Msg("storage failure")
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "upload failed"})
    case errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "timeout"})
    }
    middleware.Logger(c).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
