package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/shop-auth-api/internal/apperr"
	"github.com/iliyamo/shop-auth-api/internal/auth"
	"github.com/iliyamo/shop-auth-api/internal/middleware"
	"github.com/iliyamo/shop-auth-api/internal/queue"
	"github.com/iliyamo/shop-auth-api/internal/repository"
	"github.com/iliyamo/shop-auth-api/internal/service"
)

// ProfileHandler serves /api/user/profile behind RequireAuth.
type ProfileHandler struct {
	Users    repository.IdentityStore
	Resolver *auth.Resolver
	Events   service.Publisher
	Log      *logrus.Logger
}

func NewProfileHandler(users repository.IdentityStore, resolver *auth.Resolver, events service.Publisher, log *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{Users: users, Resolver: resolver, Events: events, Log: log}
}

// Get returns the caller's sanitized identity.
func (h *ProfileHandler) Get(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperr.NewUnauthenticated(auth.MsgNoToken)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Resolver.Identity(ctx, p)
	if err != nil {
		return apperr.From(err)
	}
	c.Response().Header().Set("Cache-Control", cacheNoStore)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u.Sanitize(), "authMode": p.AuthMode()})
}

// Update changes the caller's display name. Guests have nothing to update.
func (h *ProfileHandler) Update(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperr.NewUnauthenticated(auth.MsgNoToken)
	}
	if p.IsGuest() {
		return apperr.NewForbidden("Guest sessions cannot update a profile")
	}
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewBadInput(msgInvalidBody)
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validationError(req.Validate(), ""); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Users.UpdateName(ctx, p.ID, req.Name)
	if err != nil {
		return apperr.From(err)
	}
	ev := queue.NewAuthEvent(queue.EventProfileUpdated)
	ev.UserID, ev.ActorID, ev.RemoteIP, ev.Transport = u.UserID, p.ID, c.RealIP(), string(p.Transport)
	service.Emit(h.Events, h.Log, ev)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Profile updated successfully", "user": u.Sanitize()})
}
