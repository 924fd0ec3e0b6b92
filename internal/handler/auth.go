package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/shop-auth-api/internal/apperr"
	"github.com/iliyamo/shop-auth-api/internal/auth"
	"github.com/iliyamo/shop-auth-api/internal/config"
	"github.com/iliyamo/shop-auth-api/internal/metrics"
	"github.com/iliyamo/shop-auth-api/internal/middleware"
	"github.com/iliyamo/shop-auth-api/internal/model"
	"github.com/iliyamo/shop-auth-api/internal/queue"
	"github.com/iliyamo/shop-auth-api/internal/repository"
	"github.com/iliyamo/shop-auth-api/internal/service"
	"github.com/iliyamo/shop-auth-api/internal/utils"
)

// Client-facing messages.
const (
	msgCredentialsRequired = "Email and password are required"
	msgInvalidEmail        = "Invalid email format"
	msgInvalidCredentials  = "Invalid email or password"
	msgEmailExists         = "User with this email already exists"
	msgValidationFailed    = "Validation failed"
	msgInvalidBody         = "Invalid request body"
	msgUserNotFound        = "User not found"
	msgRefreshRequired     = "Refresh token is required"
	msgInvalidRefresh      = "Invalid or expired refresh token"
	msgRolesAllowed        = "At least one valid role required. Allowed: guest, user, moderator, admin"
)

// Cache-Control values.
const (
	cacheNoStore = "no-store, no-cache, must-revalidate"
	cacheGuest   = "private, no-cache, must-revalidate"
)

// requestTimeout bounds store calls made on behalf of one request.
const requestTimeout = 5 * time.Second

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	Users     repository.IdentityStore
	Tokens    *auth.TokenService
	Hasher    *auth.Hasher
	Resolver  *auth.Resolver
	Cookie    config.CookieSettings
	CookieTTL time.Duration
	GuestTTL  time.Duration
	Events    service.Publisher
	Metrics   *metrics.Metrics
	Log       *logrus.Logger
	Now       func() time.Time
}

// NewAuthHandler wires an AuthHandler from the loaded config.
func NewAuthHandler(cfg config.Config, users repository.IdentityStore, tokens *auth.TokenService, hasher *auth.Hasher,
	resolver *auth.Resolver, events service.Publisher, m *metrics.Metrics, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		Users:     users,
		Tokens:    tokens,
		Hasher:    hasher,
		Resolver:  resolver,
		Cookie:    cfg.CookieSettings(),
		CookieTTL: cfg.Auth.CookieTTL.Duration(),
		GuestTTL:  cfg.Auth.GuestTTL.Duration(),
		Events:    events,
		Metrics:   m,
		Log:       log,
		Now:       time.Now,
	}
}

func (h *AuthHandler) emit(c echo.Context, typ string, fill func(*queue.AuthEvent)) {
	ev := queue.NewAuthEvent(typ)
	ev.RemoteIP = c.RealIP()
	if fill != nil {
		fill(&ev)
	}
	service.Emit(h.Events, h.Log, ev)
}

func subjectOf(u *model.Identity) auth.Subject {
	return auth.Subject{ID: u.UserID, Email: u.UserEmail, Name: u.UserName, Roles: u.Roles, Kind: auth.KindUser}
}

// issueForTransport mints the credentials for a freshly authenticated user
// and writes them into body. Cookie clients get one long-lived access token
// in the session cookie; bearer clients get an access/refresh pair in the
// body only.
func (h *AuthHandler) issueForTransport(c echo.Context, transport string, sub auth.Subject, body echo.Map) error {
	if transport == TransportBearer {
		access, refresh, err := h.Tokens.IssuePair(sub)
		if err != nil {
			return apperr.NewInternal(err)
		}
		h.Metrics.TokenIssued(string(auth.TokenAccess), string(sub.Kind))
		h.Metrics.TokenIssued(string(auth.TokenRefresh), string(sub.Kind))
		body["accessToken"] = access.Value
		body["refreshToken"] = refresh.Value
		return nil
	}
	tok, err := h.Tokens.Issue(sub, auth.TokenAccess, h.CookieTTL)
	if err != nil {
		return apperr.NewInternal(err)
	}
	h.Metrics.TokenIssued(string(auth.TokenAccess), string(sub.Kind))
	middleware.SetSessionCookie(c, h.Cookie, tok.Value, h.CookieTTL)
	body["token"] = tok.Value
	return nil
}

// SignUp registers a new identity. Only an authenticated admin may choose
// roles; everyone else gets the default role.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewBadInput(msgInvalidBody)
	}
	req.normalize()
	if err := validationError(req.Validate(), msgValidationFailed); err != nil {
		h.Metrics.AuthAttempt("signup", "invalid")
		return err
	}

	roles := []string{auth.DefaultRole}
	if p, ok := middleware.PrincipalFrom(c); ok && p.HasRole(auth.RoleAdmin) && len(req.Roles) > 0 {
		roles = auth.Normalize(req.Roles)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		h.Metrics.AuthAttempt("signup", "conflict")
		return apperr.NewConflict(msgEmailExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperr.NewInternal(err)
	}

	start := time.Now()
	hash, err := h.Hasher.Hash(ctx, req.Password)
	h.Metrics.ObserveHash(time.Since(start))
	if err != nil {
		return apperr.NewInternal(err)
	}

	now := h.Now().UTC()
	u := &model.Identity{
		UserID:       utils.NewID(utils.UserPrefix),
		UserName:     req.Name,
		UserEmail:    req.Email,
		PasswordHash: hash,
		IsMfaEnabled: req.IsMfaEnabled,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			h.Metrics.AuthAttempt("signup", "conflict")
			return apperr.NewConflict(msgEmailExists)
		}
		return apperr.NewInternal(err)
	}

	body := echo.Map{"success": true, "message": "User registered successfully", "user": u.Sanitize()}
	if err := h.issueForTransport(c, req.Transport, subjectOf(u), body); err != nil {
		return err
	}
	h.Metrics.AuthAttempt("signup", "success")
	h.emit(c, queue.EventUserRegistered, func(ev *queue.AuthEvent) {
		ev.UserID, ev.Email, ev.Roles = u.UserID, u.UserEmail, u.Roles
		ev.Transport = transportName(req.Transport)
		if p, ok := middleware.PrincipalFrom(c); ok {
			ev.ActorID = p.ID
		}
	})

	c.Response().Header().Set("Cache-Control", cacheNoStore)
	return c.JSON(http.StatusCreated, body)
}

func transportName(t string) string {
	if t == "" {
		return TransportCookie
	}
	return t
}

// SignIn checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewBadInput(msgInvalidBody)
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		h.Metrics.AuthAttempt("signin", "invalid")
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return h.signInFailed(c, req.Email)
	case err != nil:
		return apperr.NewInternal(err)
	}
	if !h.Hasher.Verify(ctx, req.Password, u.PasswordHash) {
		return h.signInFailed(c, req.Email)
	}

	body := echo.Map{"success": true, "message": "Signed in successfully", "user": u.Sanitize()}
	if err := h.issueForTransport(c, req.Transport, subjectOf(u), body); err != nil {
		return err
	}
	h.Metrics.AuthAttempt("signin", "success")
	h.emit(c, queue.EventUserSignedIn, func(ev *queue.AuthEvent) {
		ev.UserID, ev.Email, ev.Roles = u.UserID, u.UserEmail, u.Roles
		ev.Transport = transportName(req.Transport)
	})

	c.Response().Header().Set("Cache-Control", cacheNoStore)
	return c.JSON(http.StatusOK, body)
}

func (h *AuthHandler) signInFailed(c echo.Context, email string) error {
	h.Metrics.AuthAttempt("signin", "rejected")
	h.emit(c, queue.EventSignInFailed, func(ev *queue.AuthEvent) { ev.Email = email })
	return apperr.NewUnauthenticated(msgInvalidCredentials)
}

// Guest creates an unpersisted guest session bound to the session cookie.
func (h *AuthHandler) Guest(c echo.Context) error {
	now := h.Now()
	guest := auth.GuestIdentity(utils.NewID(utils.GuestPrefix), utils.GuestName(now))
	sub := auth.Subject{ID: guest.UserID, Name: guest.UserName, Roles: guest.Roles, Kind: auth.KindGuest}

	tok, err := h.Tokens.Issue(sub, auth.TokenAccess, h.GuestTTL)
	if err != nil {
		return apperr.NewInternal(err)
	}
	h.Metrics.TokenIssued(string(auth.TokenAccess), string(auth.KindGuest))
	h.Metrics.AuthAttempt("guest", "success")
	middleware.SetSessionCookie(c, h.Cookie, tok.Value, h.GuestTTL)
	h.emit(c, queue.EventGuestSession, func(ev *queue.AuthEvent) {
		ev.UserID, ev.Roles, ev.Transport = guest.UserID, guest.Roles, TransportCookie
	})

	c.Response().Header().Set("Cache-Control", cacheGuest)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Guest session created",
		"user":    guest.Sanitize(),
		"session": sessionBody(tok.ID, guest.UserID, tok.ExpiresAt),
		"token":   tok.Value,
	})
}

func sessionBody(sessionID, userID string, expiresAt time.Time) echo.Map {
	return echo.Map{
		"sessionId": sessionID,
		"userId":    userID,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	}
}

// Refresh exchanges a refresh token for a new access/refresh pair. Roles
// and email come from the current store record so role changes take
// effect on the next refresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewBadInput(msgInvalidBody)
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		return apperr.NewBadInput(msgRefreshRequired)
	}

	claims, err := h.Tokens.Verify(raw, auth.TokenRefresh)
	if err != nil || claims.IsGuest() {
		h.Metrics.AuthAttempt("refresh", "rejected")
		return apperr.NewUnauthenticated(msgInvalidRefresh)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Users.FindByID(ctx, claims.RegisteredClaims.Subject)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.Metrics.AuthAttempt("refresh", "rejected")
		return apperr.NewUnauthenticated(msgUserNotFound)
	case err != nil:
		return apperr.NewInternal(err)
	}

	access, err := h.Tokens.RefreshAccess(raw, auth.WithRoles(u.Roles), auth.WithEmail(u.UserEmail), auth.WithName(u.UserName))
	if err != nil {
		return apperr.NewUnauthenticated(msgInvalidRefresh)
	}
	refresh, err := h.Tokens.Issue(subjectOf(u), auth.TokenRefresh, h.Tokens.RefreshTTL())
	if err != nil {
		return apperr.NewInternal(err)
	}
	h.Metrics.TokenIssued(string(auth.TokenAccess), string(auth.KindUser))
	h.Metrics.TokenIssued(string(auth.TokenRefresh), string(auth.KindUser))
	h.Metrics.AuthAttempt("refresh", "success")
	h.emit(c, queue.EventTokenRefreshed, func(ev *queue.AuthEvent) {
		ev.UserID, ev.Roles, ev.Transport = u.UserID, u.Roles, TransportBearer
	})

	c.Response().Header().Set("Cache-Control", cacheNoStore)
	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"accessToken":  access.Value,
		"refreshToken": refresh.Value,
	})
}

// Session describes the caller's current session. Must run behind
// RequireAuth.
func (h *AuthHandler) Session(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperr.NewUnauthenticated(auth.MsgNoToken)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Resolver.Identity(ctx, p)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if p.Transport == auth.TransportCookie {
			middleware.ClearSessionCookie(c, h.Cookie)
		}
		return apperr.NewUnauthenticated(msgUserNotFound)
	case err != nil:
		return apperr.NewInternal(err)
	}

	cacheControl := cacheNoStore
	if p.IsGuest() {
		cacheControl = cacheGuest
	}
	c.Response().Header().Set("Cache-Control", cacheControl)
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"user":     u.Sanitize(),
		"session":  sessionBody(p.SessionID, p.ID, p.ExpiresAt),
		"authMode": p.AuthMode(),
	})
}

// SignOut clears the session cookie. Tokens are stateless, so bearer
// clients simply discard theirs.
func (h *AuthHandler) SignOut(c echo.Context) error {
	var userID string
	body := echo.Map{"success": true, "message": "Signed out successfully"}
	expired := false
	if ck, err := c.Cookie(auth.CookieName); err == nil && ck.Value != "" {
		// Unverified decode only feeds the audit trail.
		if claims, err := h.Tokens.Decode(ck.Value); err == nil {
			userID = claims.RegisteredClaims.Subject
		}
		expired = h.Tokens.IsExpired(ck.Value)
		body["sessionExpired"] = expired
	}
	middleware.ClearSessionCookie(c, h.Cookie)
	h.emit(c, queue.EventUserSignedOut, func(ev *queue.AuthEvent) {
		ev.UserID, ev.Transport, ev.Expired = userID, TransportCookie, expired
	})

	c.Response().Header().Set("Cache-Control", cacheNoStore)
	return c.JSON(http.StatusOK, body)
}
