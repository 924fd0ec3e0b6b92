package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/shop-auth-api/internal/metrics"
)

// RequestLogger logs one line per request and records the HTTP metrics.
func RequestLogger(log *logrus.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err) // commit the response so the status below is final
            }
            elapsed := time.Since(start)

            req, res := c.Request(), c.Response()
            path := c.Path()
            if path == "" {
                path = "unmatched"
            }
            m.ObserveRequest(req.Method, path, res.Status, elapsed)

            fields := logrus.Fields{
                "method":     req.Method,
                "path":       req.URL.Path,
                "route":      path,
                "status":     res.Status,
                "latency_ms": elapsed.Milliseconds(),
                "remote_ip":  c.RealIP(),
                "bytes_out":  res.Size,
            }
            if p, ok := PrincipalFrom(c); ok {
                fields["auth_mode"] = p.AuthMode()
                fields["user_id"] = p.ID
            }
            entry := log.WithFields(fields)
            switch {
            case res.Status >= 500:
                entry.Error("request")
            case res.Status >= 400:
                entry.Warn("request")
            default:
                entry.Info("request")
            }
            return nil
        }
    }
}
