package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
)

// RequestLogger logs one line per request and exposes a request scoped
// logger to handlers through Logger.
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()
            reqID := req.Header.Get(echo.HeaderXRequestID)
            if reqID == "" {
                reqID = c.Response().Header().Get(echo.HeaderXRequestID)
            }
            l := base.With().Str("request_id", reqID).Logger()
            c.Set(loggerKey, &l)

            err := next(c)
            if err != nil {
                c.Error(err)
            }

            status := c.Response().Status
            ev := l.Info()
            if status >= 500 {
                ev = l.Error()
            } else if status >= 400 {
                ev = l.Warn()
            }
            ev.Str("method", req.Method).
                Str("path", c.Path()).
                Int("status", status).
                Dur("latency", time.Since(start)).
                Str("identity", userID(c)).
                Msg("request")
            return nil
        }
    }
}
