package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/event-registration/internal/config"
)

// bucketScript refills and drains one token bucket atomically.  It takes
// a per-request cost so that receipt uploads can weigh more than reads.
// Returns {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])
local cost = tonumber(ARGV[6])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
    tokens = capacity
    ts = now_ms
end

local steps = math.floor(math.max(0, now_ms - ts) / interval_ms)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    ts = ts + steps * interval_ms
end

local allowed = 0
local wait_ms = 0
if tokens >= cost then
    allowed = 1
    tokens = tokens - cost
else
    local missing = math.ceil((cost - tokens) / refill)
    wait_ms = missing * interval_ms - (now_ms - ts)
    if wait_ms < 0 then wait_ms = 0 end
end

redis.call('HSET', key, 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', key, ttl)
return { allowed, tokens, wait_ms }
`)

// bucketResult is the decoded reply of bucketScript.
type bucketResult struct {
    Allowed   bool
    Remaining int64
    RetryMs   int64
}

// NewTokenBucket limits the authenticated API with a token bucket per
// caller kept in Redis.  Receipt uploads cost cfg.UploadCost tokens, every
// other request costs one.  A nil client or a disabled config yields a
// pass-through middleware, and Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            cost := requestCost(cfg, c)
            vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL/time.Second),
                cost,
            ).Result()
            if err != nil {
                logger(c).Warn().Err(err).Str("key", key).Msg("ratelimit: redis error, allowing request")
                return next(c)
            }
            res, ok := decodeBucket(vals)
            if !ok {
                logger(c).Warn().Str("key", key).Interface("result", vals).Msg("ratelimit: unexpected script result")
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
            if !res.Allowed {
                secs := int(math.Ceil(float64(res.RetryMs) / 1000))
                h.Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    logger(c).Info().Str("key", key).Int("cost", cost).Int64("retry_ms", res.RetryMs).Msg("ratelimit: blocked")
                }
                return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests", "retry_after": secs})
            }
            return next(c)
        }
    }
}

func decodeBucket(v interface{}) (bucketResult, bool) {
    arr, ok := v.([]interface{})
    if !ok || len(arr) != 3 {
        return bucketResult{}, false
    }
    return bucketResult{
        Allowed:   asInt64(arr[0]) == 1,
        Remaining: asInt64(arr[1]),
        RetryMs:   asInt64(arr[2]),
    }, true
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        n, _ := strconv.ParseInt(t, 10, 64)
        return n
    }
    return 0
}

// requestCost charges multipart receipt uploads more than plain calls.
func requestCost(cfg config.RateLimitConfig, c echo.Context) int {
    if c.Request().Method == http.MethodPost && strings.HasSuffix(c.Path(), "/receipt") && cfg.UploadCost > 1 {
        return cfg.UploadCost
    }
    return 1
}

// rateKey buckets by identity by default.  Behind the gate every caller
// has an identity; "ip" is kept for deployments where identities are
// shared.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        return cfg.Prefix + ":ip:" + ip
    case "user_route":
        return cfg.Prefix + ":user:" + userID(c) + ":route:" + c.Request().Method + " " + c.Path()
    case "ip_user":
        return cfg.Prefix + ":ip:" + ip + ":user:" + userID(c)
    }
    return cfg.Prefix + ":user:" + userID(c)
}
