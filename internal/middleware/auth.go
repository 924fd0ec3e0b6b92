package middleware

// auth.go wraps protected routes.  The session resolver decides who the
// caller is; this file only shapes the echo side of it: preflight handling,
// failure rendering with CORS headers and cookie clearing, and making the
// principal available to handlers.

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/shop-auth-api/internal/auth"
    "github.com/iliyamo/shop-auth-api/internal/config"
    "github.com/iliyamo/shop-auth-api/internal/cors"
    "github.com/iliyamo/shop-auth-api/internal/metrics"
)

// MsgAdminRequired is shown when a non-admin reaches an admin route.
const MsgAdminRequired = "Forbidden: Admin access required"

const principalKey = "principal"

type principalCtxKey struct{}

// Guard builds authorization middleware sharing one resolver and policy.
type Guard struct {
    Resolver *auth.Resolver
    CORS     *cors.Policy
    Cookie   config.CookieSettings
    Metrics  *metrics.Metrics
    Log      *logrus.Logger
}

// NewGuard wires a Guard.
func NewGuard(rs *auth.Resolver, policy *cors.Policy, cookie config.CookieSettings, m *metrics.Metrics, log *logrus.Logger) *Guard {
    return &Guard{Resolver: rs, CORS: policy, Cookie: cookie, Metrics: m, Log: log}
}

func corsMode(opts auth.ResolveOptions) cors.Mode {
    if opts.AllowBearer && !opts.AllowCookie {
        return cors.Auth
    }
    return cors.PublicWithCredentials
}

// failureMode shapes a rejection by the transport the token arrived on, so
// a bearer client always sees the Authorization-aware header set.
func failureMode(routeMode cors.Mode, t auth.Transport) cors.Mode {
    if t == auth.TransportBearer {
        return cors.Auth
    }
    return routeMode
}

// RequireAuth rejects requests without a valid access token on one of the
// transports permitted by opts.
func (g *Guard) RequireAuth(opts auth.ResolveOptions) echo.MiddlewareFunc {
    mode := corsMode(opts)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            origin := c.Request().Header.Get(echo.HeaderOrigin)
            if c.Request().Method == http.MethodOptions {
                g.CORS.Apply(c.Response().Header(), mode, origin)
                return c.NoContent(http.StatusNoContent)
            }

            p, fail := g.Resolver.Resolve(c.Request(), opts)
            if fail != nil {
                return g.reject(c, mode, fail)
            }
            SetPrincipal(c, p)
            return next(c)
        }
    }
}

func (g *Guard) reject(c echo.Context, mode cors.Mode, fail *auth.Failure) error {
    g.CORS.Apply(c.Response().Header(), failureMode(mode, fail.Transport), c.Request().Header.Get(echo.HeaderOrigin))
    if fail.ClearCookie {
        ClearSessionCookie(c, g.Cookie)
    }
    g.Metrics.Rejected(string(fail.Transport), strconv.Itoa(fail.Status))
    if g.Log != nil {
        entry := g.Log.WithFields(logrus.Fields{
            "path":      c.Path(),
            "status":    fail.Status,
            "transport": string(fail.Transport),
        })
        if fail.Err != nil {
            entry = entry.WithError(fail.Err)
        }
        entry.Debug(fail.Message)
    }
    return c.JSON(fail.Status, echo.Map{"success": false, "message": fail.Message})
}

// RequireCookieAuth accepts only the session cookie.
func (g *Guard) RequireCookieAuth() echo.MiddlewareFunc { return g.RequireAuth(auth.CookieOnly()) }

// RequireBearerAuth accepts only an Authorization: Bearer header.
func (g *Guard) RequireBearerAuth() echo.MiddlewareFunc { return g.RequireAuth(auth.BearerOnly()) }

// RequireRoles accepts either transport and requires one of roles.
func (g *Guard) RequireRoles(roles ...string) echo.MiddlewareFunc {
    opts := auth.AnyTransport()
    opts.Roles = roles
    return g.RequireAuth(opts)
}

// RequireAdmin is RequireRoles(admin) with the admin wording.
func (g *Guard) RequireAdmin() echo.MiddlewareFunc {
    opts := auth.AnyTransport()
    opts.Roles = []string{auth.RoleAdmin}
    opts.DeniedMessage = MsgAdminRequired
    return g.RequireAuth(opts)
}

// OptionalAuth attaches a principal when a valid access token is present
// and otherwise lets the request through untouched.
func (g *Guard) OptionalAuth() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if p, fail := g.Resolver.Resolve(c.Request(), auth.AnyTransport()); fail == nil {
                SetPrincipal(c, p)
            }
            return next(c)
        }
    }
}

// SetPrincipal stores p on both the echo context and the request context.
func SetPrincipal(c echo.Context, p *auth.Principal) {
    c.Set(principalKey, p)
    ctx := context.WithValue(c.Request().Context(), principalCtxKey{}, p)
    c.SetRequest(c.Request().WithContext(ctx))
}

// PrincipalFrom returns the principal set by the auth middleware.
func PrincipalFrom(c echo.Context) (*auth.Principal, bool) {
    p, ok := c.Get(principalKey).(*auth.Principal)
    return p, ok && p != nil
}

// PrincipalFromContext returns the principal carried by ctx.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
    p, ok := ctx.Value(principalCtxKey{}).(*auth.Principal)
    return p, ok && p != nil
}

func sessionCookie(s config.CookieSettings) *http.Cookie {
    return &http.Cookie{
        Name:     auth.CookieName,
        Path:     "/",
        Domain:   s.Domain,
        HttpOnly: true,
        Secure:   s.Secure,
        SameSite: s.SameSite,
    }
}

// SetSessionCookie writes the session cookie with max-age ttl.
func SetSessionCookie(c echo.Context, s config.CookieSettings, value string, ttl time.Duration) {
    ck := sessionCookie(s)
    ck.Value = value
    ck.MaxAge = int(ttl / time.Second)
    ck.Expires = time.Now().Add(ttl)
    c.SetCookie(ck)
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(c echo.Context, s config.CookieSettings) {
    ck := sessionCookie(s)
    ck.MaxAge = -1
    ck.Expires = time.Unix(0, 0)
    c.SetCookie(ck)
}
