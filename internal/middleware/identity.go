package middleware

// identity.go holds the context accessors shared across middleware files
// and handlers.

import (
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/event-registration/internal/access"
)

const (
    principalKey = "principal"
    loggerKey    = "logger"
)

// PrincipalFrom returns the caller resolved by Authenticate.
func PrincipalFrom(c echo.Context) (access.Principal, bool) {
    p, ok := c.Get(principalKey).(access.Principal)
    return p, ok
}

// userID returns the caller's identity id, or "guest" on public routes.
func userID(c echo.Context) string {
    if p, ok := PrincipalFrom(c); ok && p.ID != "" {
        return p.ID
    }
    return "guest"
}

// Logger returns the request scoped logger installed by RequestLogger, or
// a disabled logger when none is present.
func Logger(c echo.Context) *zerolog.Logger {
    return logger(c)
}

func logger(c echo.Context) *zerolog.Logger {
    if l, ok := c.Get(loggerKey).(*zerolog.Logger); ok && l != nil {
        return l
    }
    nop := zerolog.Nop()
    return &nop
}
