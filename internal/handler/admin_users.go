package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/shop-auth-api/internal/apperr"
	"github.com/iliyamo/shop-auth-api/internal/auth"
	"github.com/iliyamo/shop-auth-api/internal/metrics"
	"github.com/iliyamo/shop-auth-api/internal/middleware"
	"github.com/iliyamo/shop-auth-api/internal/model"
	"github.com/iliyamo/shop-auth-api/internal/queue"
	"github.com/iliyamo/shop-auth-api/internal/repository"
	"github.com/iliyamo/shop-auth-api/internal/service"
)

const msgSelfDemotion = "Self-demotion is not allowed"

// AdminUsersHandler serves /api/admin/users. Every route runs behind
// RequireAdmin.
type AdminUsersHandler struct {
	Users   repository.IdentityStore
	Events  service.Publisher
	Metrics *metrics.Metrics
	Log     *logrus.Logger
}

func NewAdminUsersHandler(users repository.IdentityStore, events service.Publisher, m *metrics.Metrics, log *logrus.Logger) *AdminUsersHandler {
	return &AdminUsersHandler{Users: users, Events: events, Metrics: m, Log: log}
}

func queryInt(c echo.Context, name string) int64 {
	n, _ := strconv.ParseInt(c.QueryParam(name), 10, 64)
	return n
}

// List returns one page of users filtered by ?search and ?role.
func (h *AdminUsersHandler) List(c echo.Context) error {
	f := model.IdentityFilter{
		Search: c.QueryParam("search"),
		Role:   strings.ToLower(strings.TrimSpace(c.QueryParam("role"))),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
	if f.Role != "" && !auth.IsAllowed(f.Role) {
		return apperr.NewBadInput("Invalid role filter")
	}
	f.Page, f.Limit = repository.PageBounds(f.Page, f.Limit)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	users, total, err := h.Users.List(ctx, f)
	if err != nil {
		return apperr.NewInternal(err)
	}

	out := make([]model.PublicIdentity, 0, len(users))
	for i := range users {
		out = append(out, users[i].Sanitize())
	}
	pages := (total + f.Limit - 1) / f.Limit
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"users":   out,
		"pagination": echo.Map{
			"page":  f.Page,
			"limit": f.Limit,
			"total": total,
			"pages": pages,
		},
	})
}

func rolesBody(u *model.Identity) echo.Map {
	return echo.Map{"success": true, "userId": u.UserID, "roles": u.Roles}
}

// GetRoles returns the current role set of :user.
func (h *AdminUsersHandler) GetRoles(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Users.FindByID(ctx, c.Param("user"))
	if err != nil {
		return apperr.From(err)
	}
	return c.JSON(http.StatusOK, rolesBody(u))
}

// SetRoles replaces the role set of :user. Unknown roles are dropped and
// duplicates removed; an admin cannot drop their own admin role.
func (h *AdminUsersHandler) SetRoles(c echo.Context) error {
	caller, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperr.NewUnauthenticated(auth.MsgNoToken)
	}
	var req RolesRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewBadInput("Roles must be a non-empty array")
	}
	if err := validationError(req.Validate(), ""); err != nil {
		return err
	}

	roles := auth.Dedupe(auth.Filter(req.Roles))
	if len(roles) == 0 {
		return apperr.NewBadInput(msgRolesAllowed)
	}
	target := c.Param("user")
	if err := auth.CheckSelfDemotion(caller.ID, target, roles); err != nil {
		return apperr.Wrap(apperr.BadInput, msgSelfDemotion, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Users.UpdateRoles(ctx, target, roles)
	if err != nil {
		return apperr.From(err)
	}
	h.recordChange(c, "set", caller.ID, u)
	body := rolesBody(u)
	body["message"] = "Roles updated successfully"
	return c.JSON(http.StatusOK, body)
}

// RemoveRole drops one role from :user. Removing the last role leaves the
// default role in place.
func (h *AdminUsersHandler) RemoveRole(c echo.Context) error {
	caller, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperr.NewUnauthenticated(auth.MsgNoToken)
	}
	var req RoleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewBadInput(msgInvalidBody)
	}
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := validationError(req.Validate(), ""); err != nil {
		return err
	}

	target := c.Param("user")
	if caller.ID == target && req.Role == auth.RoleAdmin {
		return apperr.Wrap(apperr.BadInput, msgSelfDemotion, auth.ErrSelfDemotion)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Users.RemoveRole(ctx, target, req.Role, auth.DefaultRole)
	if err != nil {
		return apperr.From(err)
	}
	h.recordChange(c, "remove", caller.ID, u)
	body := rolesBody(u)
	body["message"] = "Role removed successfully"
	return c.JSON(http.StatusOK, body)
}

func (h *AdminUsersHandler) recordChange(c echo.Context, action, actorID string, u *model.Identity) {
	h.Metrics.RoleChange(action)
	if h.Log != nil {
		h.Log.WithFields(logrus.Fields{"actor_id": actorID, "user_id": u.UserID, "roles": u.Roles, "action": action}).Info("roles changed")
	}
	ev := queue.NewAuthEvent(queue.EventRolesChanged)
	ev.UserID, ev.ActorID, ev.Email, ev.Roles, ev.RemoteIP = u.UserID, actorID, u.UserEmail, u.Roles, c.RealIP()
	service.Emit(h.Events, h.Log, ev)
}

