package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/shop-auth-api/internal/config"
)

func limitedEcho(cfg config.RateLimitConfig, t *testing.T) *echo.Echo {
    _, rdb := newMiniRedis(t)
    e := echo.New()
    e.POST("/api/auth/signin", func(c echo.Context) error {
        return c.NoContent(http.StatusOK)
    }, NewTokenBucket(cfg, rdb, nil))
    return e
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
        TTL: 2 * time.Hour, KeyStrategy: "ip_route", Prefix: "rl",
    }
    e := limitedEcho(cfg, t)

    send := func() *httptest.ResponseRecorder {
        req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
        req.RemoteAddr = "10.0.0.1:5555"
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        return rec
    }

    assert.Equal(t, http.StatusOK, send().Code)
    rec := send()
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

    rec = send()
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
    assert.Contains(t, rec.Body.String(), MsgTooManyRequests)
}

func TestTokenBucketKeysByIP(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour,
        TTL: 2 * time.Hour, KeyStrategy: "ip", Prefix: "rl",
    }
    e := limitedEcho(cfg, t)

    for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
        req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
        req.RemoteAddr = ip
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        assert.Equal(t, http.StatusOK, rec.Code, ip)
    }
}

func TestRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
    req.RemoteAddr = "192.0.2.1:80"
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/api/auth/signin")

    cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user"}
    assert.Equal(t, "rl:ip:192.0.2.1:user:anon", rateKey(cfg, c))

    cfg.KeyStrategy = ""
    assert.Equal(t, "rl:ip:192.0.2.1:route:POST /api/auth/signin", rateKey(cfg, c))
}
