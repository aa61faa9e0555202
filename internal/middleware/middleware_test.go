package middleware

import (
    "bytes"
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-registration/internal/access"
    "github.com/iliyamo/event-registration/internal/config"
    "github.com/iliyamo/event-registration/internal/model"
    "github.com/iliyamo/event-registration/internal/utils"
)

const testSecret = "mw-secret"

type roleTable struct {
    roles map[string]model.Role
    err   error
}

func (r roleTable) RoleOf(_ context.Context, id string) (model.Role, error) {
    if r.err != nil {
        return "", r.err
    }
    if role, ok := r.roles[id]; ok {
        return role, nil
    }
    return model.RoleUser, nil
}

func bearer(t *testing.T, sub string) string {
    t.Helper()
    tok, err := utils.NewSessionToken(testSecret, sub, time.Minute)
    require.NoError(t, err)
    return "Bearer " + tok.Token
}

func newEcho(roles roleTable, req access.Requirement) *echo.Echo {
    e := echo.New()
    gate := access.NewGate(testSecret, roles)
    g := e.Group("/api", Authenticate(gate), RequireRole(req))
    g.GET("/whoami", func(c echo.Context) error {
        p, ok := PrincipalFrom(c)
        if !ok {
            return c.NoContent(http.StatusTeapot)
        }
        return c.String(http.StatusOK, p.ID+":"+string(p.Role))
    })
    return e
}

func serve(e *echo.Echo, auth string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
    if auth != "" {
        req.Header.Set(echo.HeaderAuthorization, auth)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestAuthenticateAndRequireRole(t *testing.T) {
    roles := roleTable{roles: map[string]model.Role{"root": model.RoleAdmin}}

    anyRole := newEcho(roles, access.RequireAny)
    rec := serve(anyRole, bearer(t, "alice"))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "alice:user", rec.Body.String())

    for _, auth := range []string{"", "Basic Zm9vOmJhcg==", "Bearer ", "Bearer not.a.jwt"} {
        rec = serve(anyRole, auth)
        assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
        assert.JSONEq(t, `{"error":"login required"}`, rec.Body.String())
    }

    adminOnly := newEcho(roles, access.RequireAdmin)
    rec = serve(adminOnly, bearer(t, "alice"))
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

    rec = serve(adminOnly, bearer(t, "root"))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "root:admin", rec.Body.String())
}

func TestAuthenticateRoleLookupFailure(t *testing.T) {
    e := newEcho(roleTable{err: errors.New("db down")}, access.RequireAny)
    rec := serve(e, bearer(t, "alice"))
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireRoleWithoutPrincipal(t *testing.T) {
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireRole(access.RequireAny))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeadline(t *testing.T) {
    e := echo.New()
    var deadline time.Time
    var hasDeadline bool
    e.GET("/slow", func(c echo.Context) error {
        deadline, hasDeadline = c.Request().Context().Deadline()
        return c.NoContent(http.StatusOK)
    }, Deadline(time.Second))
    e.GET("/open", func(c echo.Context) error {
        _, hasDeadline = c.Request().Context().Deadline()
        return c.NoContent(http.StatusOK)
    }, Deadline(0))

    e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
    require.True(t, hasDeadline)
    assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)

    e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/open", nil))
    assert.False(t, hasDeadline)
}

func TestRequestLoggerWritesOneLine(t *testing.T) {
    var buf bytes.Buffer
    base := zerolog.New(&buf)
    e := echo.New()
    e.Use(RequestLogger(base))
    e.GET("/ping", func(c echo.Context) error {
        Logger(c).Debug().Msg("inside")
        return c.String(http.StatusOK, "pong")
    })
    e.GET("/boom", func(c echo.Context) error {
        return echo.NewHTTPError(http.StatusNotFound, "nope")
    })

    req := httptest.NewRequest(http.MethodGet, "/ping", nil)
    req.Header.Set(echo.HeaderXRequestID, "req-1")
    e.ServeHTTP(httptest.NewRecorder(), req)
    out := buf.String()
    assert.Contains(t, out, `"request_id":"req-1"`)
    assert.Contains(t, out, `"status":200`)
    assert.Contains(t, out, `"identity":"guest"`)
    assert.Contains(t, out, `"path":"/ping"`)

    buf.Reset()
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Contains(t, buf.String(), `"level":"warn"`)
    assert.Contains(t, buf.String(), `"status":404`)
}

func TestLoggerFallsBackToNop(t *testing.T) {
    c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    require.NotNil(t, Logger(c))
    assert.Equal(t, "guest", userID(c))
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
    e := echo.New()
    hits := 0
    e.GET("/events", func(c echo.Context) error {
        hits++
        return c.String(http.StatusOK, "list")
    }, NewRedisCache(config.CacheConfig{Enabled: true}, nil), NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil))
    for i := 0; i < 3; i++ {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
        assert.Equal(t, http.StatusOK, rec.Code)
    }
    assert.Equal(t, 3, hits)
}

func TestDecodeBucket(t *testing.T) {
    res, ok := decodeBucket([]interface{}{int64(1), int64(4), int64(0)})
    require.True(t, ok)
    assert.Equal(t, bucketResult{Allowed: true, Remaining: 4}, res)

    res, ok = decodeBucket([]interface{}{int64(0), "0", int64(1500)})
    require.True(t, ok)
    assert.False(t, res.Allowed)
    assert.Equal(t, int64(1500), res.RetryMs)

    _, ok = decodeBucket("OK")
    assert.False(t, ok)
    _, ok = decodeBucket([]interface{}{int64(1)})
    assert.False(t, ok)
}

func TestRateKeyAndCost(t *testing.T) {
    cfg := config.RateLimitConfig{Prefix: "rl", UploadCost: 5}
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/registrations/7/receipt", nil)
    req.RemoteAddr = "203.0.113.9:5000"
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/registrations/:id/receipt")
    c.Set(principalKey, access.Principal{ID: "alice", Role: model.RoleUser})

    assert.Equal(t, "rl:user:alice", rateKey(cfg, c))
    cfg.KeyStrategy = "ip"
    assert.Equal(t, "rl:ip:203.0.113.9", rateKey(cfg, c))
    cfg.KeyStrategy = "user_route"
    assert.Equal(t, "rl:user:alice:route:POST /v1/registrations/:id/receipt", rateKey(cfg, c))

    assert.Equal(t, 5, requestCost(cfg, c))
    c.SetPath("/v1/my-registrations")
    assert.Equal(t, 1, requestCost(cfg, c))
}

func TestBodyRecorderStopsAtLimit(t *testing.T) {
    rec := httptest.NewRecorder()
    w := &bodyRecorder{ResponseWriter: rec, status: http.StatusOK, limit: 8}
    _, _ = w.Write([]byte("12345"))
    assert.False(t, w.overflow)
    _, _ = w.Write([]byte("6789"))
    assert.True(t, w.overflow)
    assert.Zero(t, w.buf.Len())
    assert.Equal(t, "123456789", rec.Body.String())
}

func TestCatalogKeyIncludesQuery(t *testing.T) {
    a := catalogKey("ev", httptest.NewRequest(http.MethodGet, "/v1/events?page=1", nil))
    b := catalogKey("ev", httptest.NewRequest(http.MethodGet, "/v1/events?page=2", nil))
    assert.NotEqual(t, a, b)
    assert.True(t, strings.HasPrefix(a, "ev:"))
}
