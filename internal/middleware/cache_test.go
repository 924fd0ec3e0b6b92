package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/shop-auth-api/internal/config"
    "github.com/iliyamo/shop-auth-api/internal/cors"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func cachedEcho(cfg config.CacheConfig, rdb *redis.Client, calls *int) *echo.Echo {
    e := echo.New()
    g := e.Group("", NewRedisCache(cfg, rdb, nil, nil))
    g.GET("/api/products", func(c echo.Context) error {
        *calls++
        c.Response().Header().Set("Cache-Control", "public, s-maxage=60")
        return c.JSON(http.StatusOK, echo.Map{"success": true, "n": *calls})
    })
    g.GET("/api/products/:product", func(c echo.Context) error {
        *calls++
        return c.JSON(http.StatusNotFound, echo.Map{"success": false})
    })
    return e
}

func cacheConfig() config.CacheConfig {
    return config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20}
}

func TestRedisCacheHitAfterMiss(t *testing.T) {
    _, rdb := newMiniRedis(t)
    calls := 0
    e := cachedEcho(cacheConfig(), rdb, &calls)

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products?category=books", nil))
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    first := rec.Body.String()

    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products?category=books", nil))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
    assert.Equal(t, "public, s-maxage=60", rec.Header().Get("Cache-Control"))
    assert.Equal(t, first, rec.Body.String())
    assert.Equal(t, 1, calls)

    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products?category=toys", nil))
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.Equal(t, 2, calls)
}

func TestRedisCacheHitKeepsCallerOrigin(t *testing.T) {
    _, rdb := newMiniRedis(t)
    policy := cors.NewPolicy([]string{"https://a.example", "https://b.example"})
    calls := 0
    e := echo.New()
    g := e.Group("/api/products", CORS(policy, cors.Public), NewRedisCache(cacheConfig(), rdb, nil, nil))
    g.GET("", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"success": true})
    })

    get := func(origin string) *httptest.ResponseRecorder {
        req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
        req.Header.Set(echo.HeaderOrigin, origin)
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        return rec
    }

    first := get("https://a.example")
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
    assert.Equal(t, "https://a.example", first.Header().Get(echo.HeaderAccessControlAllowOrigin))

    second := get("https://b.example")
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, "https://b.example", second.Header().Get(echo.HeaderAccessControlAllowOrigin))
    assert.Len(t, second.Header().Values(echo.HeaderVary), 1)
    assert.Equal(t, 1, calls)
}

func TestPerRequestHeaderNotStored(t *testing.T) {
    assert.True(t, perRequestHeader("access-control-allow-origin"))
    assert.True(t, perRequestHeader("Vary"))
    assert.True(t, perRequestHeader("X-Cache"))
    assert.False(t, perRequestHeader("Cache-Control"))
    assert.False(t, perRequestHeader("Content-Type"))
}

func TestRedisCacheSkipsErrors(t *testing.T) {
    _, rdb := newMiniRedis(t)
    calls := 0
    e := cachedEcho(cacheConfig(), rdb, &calls)

    for i := 0; i < 2; i++ {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/p1", nil))
        assert.Equal(t, http.StatusNotFound, rec.Code)
        assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    }
    assert.Equal(t, 2, calls)
}

func TestRedisCacheExpires(t *testing.T) {
    mr, rdb := newMiniRedis(t)
    calls := 0
    e := cachedEcho(cacheConfig(), rdb, &calls)

    e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products", nil))
    mr.FastForward(2 * time.Minute)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.Equal(t, 2, calls)
}

func TestRedisCacheDisabled(t *testing.T) {
    calls := 0
    cfg := cacheConfig()
    cfg.Enabled = false
    e := cachedEcho(cfg, nil, &calls)

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
    assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestEntryCodec(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodeEntry(http.StatusOK, hdr, []byte(`{"ok":true}`))
    require.NoError(t, err)

    status, got, body, ok := decodeEntry(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.Equal(t, `{"ok":true}`, string(body))

    _, _, _, ok = decodeEntry(bs[:5])
    assert.False(t, ok)
}
