package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/shop-auth-api/internal/auth"
	"github.com/iliyamo/shop-auth-api/internal/cors"
	"github.com/iliyamo/shop-auth-api/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/shop-auth-api/internal/middleware" // authorization, cache and rate limit middleware
)

// Deps carries everything the routes need.  Cache and RateLimit may be
// pass-through middleware when Redis is not configured.
type Deps struct {
	Guard     *middleware.Guard
	CORS      *cors.Policy
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
	Metrics   http.Handler
	DB        handler.Pinger

	Auth     *handler.AuthHandler
	Admin    *handler.AdminUsersHandler
	Profile  *handler.ProfileHandler
	Products *handler.ProductHandler
}

// route registers h for method and for OPTIONS.  The group's CORS
// middleware answers the preflight before h would run.
func route(g *echo.Group, method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	g.Add(method, path, h, m...)
	g.Add(http.MethodOptions, path, h, m...)
}

// RegisterRoutes registers the routes that do not touch the domain:
// health check and metrics.
func RegisterRoutes(e *echo.Echo, d Deps) {
	// Load balancers and monitoring systems probe /healthz.
	e.GET("/healthz", handler.Health(d.DB))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}
}

// RegisterAuth registers the /api/auth routes.  Credential endpoints sit
// behind the rate limiter; the session check requires a token on either
// transport.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/api/auth", middleware.CORS(d.CORS, cors.PublicWithCredentials))

	// Sign-up accepts an optional admin token so admins can assign roles.
	route(g, http.MethodPost, "/signup", d.Auth.SignUp, d.RateLimit, d.Guard.OptionalAuth())
	route(g, http.MethodPost, "/signin", d.Auth.SignIn, d.RateLimit)
	route(g, http.MethodPost, "/signin/guest", d.Auth.Guest, d.RateLimit)
	route(g, http.MethodPost, "/refresh", d.Auth.Refresh, d.RateLimit)
	route(g, http.MethodGet, "/session", d.Auth.Session, d.Guard.RequireAuth(auth.AnyTransport()))
	route(g, http.MethodPost, "/signout", d.Auth.SignOut)
	g.GET("/signout", d.Auth.SignOut)
}

// RegisterUser registers the authenticated profile routes.
func RegisterUser(e *echo.Echo, d Deps) {
	g := e.Group("/api/user", middleware.CORS(d.CORS, cors.PublicWithCredentials), d.Guard.RequireAuth(auth.AnyTransport()))
	route(g, http.MethodGet, "/profile", d.Profile.Get)
	g.POST("/profile", d.Profile.Update)
}

// RegisterAdmin registers the admin-only user and role management routes.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/api/admin/users", middleware.CORS(d.CORS, cors.Auth), d.Guard.RequireAdmin())
	route(g, http.MethodGet, "", d.Admin.List)
	route(g, http.MethodGet, "/:user/roles", d.Admin.GetRoles)
	g.PUT("/:user/roles", d.Admin.SetRoles)
	g.DELETE("/:user/roles", d.Admin.RemoveRole)
}

// RegisterPublic registers the unauthenticated catalog.  Responses are
// served from the Redis cache when one is configured.
func RegisterPublic(e *echo.Echo, d Deps) {
	g := e.Group("/api/products", middleware.CORS(d.CORS, cors.Public), d.Cache)
	route(g, http.MethodGet, "", d.Products.List)
	route(g, http.MethodGet, "/:product", d.Products.Get)
	route(g, http.MethodGet, "/category/:category", d.Products.ByCategory)
}

// Register wires every route group.
func Register(e *echo.Echo, d Deps) {
	if d.Cache == nil {
		d.Cache = passThrough
	}
	if d.RateLimit == nil {
		d.RateLimit = passThrough
	}
	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterUser(e, d)
	RegisterAdmin(e, d)
	RegisterPublic(e, d)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
