package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/shop-auth-api/internal/cors"
)

// CORS writes the header set for mode on every response of the group and
// answers preflight requests with 204.
func CORS(policy *cors.Policy, mode cors.Mode) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            policy.Apply(c.Response().Header(), mode, c.Request().Header.Get(echo.HeaderOrigin))
            if c.Request().Method == http.MethodOptions {
                return c.NoContent(http.StatusNoContent)
            }
            return next(c)
        }
    }
}
