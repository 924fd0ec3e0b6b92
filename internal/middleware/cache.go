package middleware

// cache.go serves repeated catalog reads from Redis.  A cached entry keeps
// the status, headers and body of the first response so clients cannot tell
// a hit from a miss except for the X-Cache header.

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/shop-auth-api/internal/config"
    "github.com/iliyamo/shop-auth-api/internal/metrics"
)

// bodyRecorder tees the response body into a bounded buffer.
type bodyRecorder struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int64
    overflow bool
}

func (br *bodyRecorder) WriteHeader(code int) {
    br.status = code
    br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
    if !br.overflow {
        if br.limit > 0 && int64(br.buf.Len()+len(b)) > br.limit {
            br.overflow = true
            br.buf.Reset()
        } else {
            br.buf.Write(b)
        }
    }
    return br.ResponseWriter.Write(b)
}

// cacheKey hashes the request parts chosen by KeyStrategy under Prefix.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "method_route":
        parts = []string{"method", r.Method, "route", c.Path()}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
    case "path_query":
        parts = []string{"path", r.URL.Path, "q", r.URL.RawQuery}
    default: // route_query
        parts = []string{"route", c.Path(), "path", r.URL.Path, "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// perRequestHeader reports whether header k is computed for each request
// (CORS answers depend on the caller's Origin) and so must never be stored
// or replayed from a cached entry.
func perRequestHeader(k string) bool {
    k = http.CanonicalHeaderKey(k)
    return strings.HasPrefix(k, "Access-Control-") ||
        k == echo.HeaderVary ||
        k == echo.HeaderContentLength ||
        k == "X-Cache"
}

// encodeEntry packs [4 bytes status][4 bytes header length][header JSON][body].
func encodeEntry(status int, header http.Header, body []byte) ([]byte, error) {
    hdr, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdr)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
    copy(out[8:], hdr)
    copy(out[8+len(hdr):], body)
    return out, nil
}

func decodeEntry(bs []byte) (int, http.Header, []byte, bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status := int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}

// NewRedisCache caches successful responses of the wrapped routes for
// cfg.TTL.  Responses that set cookies are never stored.  A nil client or a
// disabled config yields a pass-through middleware.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, m *metrics.Metrics, log *logrus.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    cfg.Allows(http.MethodGet) // builds the method set before requests share cfg

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Allows(c.Request().Method) {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(cfg, c)

            bs, err := rdb.Get(ctx, key).Bytes()
            switch {
            case err == nil:
                if status, hdr, body, ok := decodeEntry(bs); ok {
                    m.CacheLookup("hit")
                    h := c.Response().Header()
                    for k, vals := range hdr {
                        if perRequestHeader(k) {
                            continue
                        }
                        h[k] = vals
                    }
                    h.Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, werr := c.Response().Write(body)
                    return werr
                }
            case err != redis.Nil && log != nil:
                log.WithError(err).WithField("key", key).Warn("cache: redis get failed")
            }
            m.CacheLookup("miss")

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflow || c.Response().Header().Get(echo.HeaderSetCookie) != "" {
                return nil
            }

            hdr := c.Response().Header().Clone()
            for k := range hdr {
                if perRequestHeader(k) {
                    delete(hdr, k)
                }
            }
            payload, err := encodeEntry(rec.status, hdr, rec.buf.Bytes())
            if err != nil {
                return nil
            }
            if err := rdb.SetEx(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err(); err != nil && log != nil {
                log.WithError(err).WithField("key", key).Warn("cache: redis set failed")
            }
            return nil
        }
    }
}
