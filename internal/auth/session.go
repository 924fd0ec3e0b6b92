package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/shop-auth-api/internal/model"
)

// CookieName is the session cookie carrying a single access token.
const CookieName = "jwt_auth_token"

// Transport is the channel a token arrived on.
type Transport string

const (
	TransportNone   Transport = ""
	TransportBearer Transport = "bearer"
	TransportCookie Transport = "cookie"
)

// Failure messages produced by Resolve.
const (
	MsgNoBearer        = "No bearer token provided"
	MsgNoCookie        = "No session cookie found"
	MsgNoToken         = "No authentication token provided"
	MsgInvalidToken    = "Invalid or expired token"
	MsgWrongTokenType  = "Invalid token type. Use access token for authentication"
	MsgMissingSubject  = "Invalid token: Missing user identifier"
	msgRequiredRolesFn = "Access denied. Required roles: %s"
)

// ResolveOptions restricts which transports are consulted and which roles
// are required. The zero value accepts nothing; use AnyTransport.
type ResolveOptions struct {
	AllowBearer bool
	AllowCookie bool
	Roles       []string
	// DeniedMessage overrides the role failure message when set.
	DeniedMessage string
}

// AnyTransport accepts both bearer and cookie tokens.
func AnyTransport() ResolveOptions {
	return ResolveOptions{AllowBearer: true, AllowCookie: true}
}

// CookieOnly accepts only the session cookie.
func CookieOnly() ResolveOptions { return ResolveOptions{AllowCookie: true} }

// BearerOnly accepts only the Authorization header.
func BearerOnly() ResolveOptions { return ResolveOptions{AllowBearer: true} }

// Principal is the authenticated caller of a request.
type Principal struct {
	ID        string
	Email     string
	Name      string
	Roles     []string
	Kind      SubjectKind
	Transport Transport
	SessionID string
	ExpiresAt time.Time
}

// IsGuest reports whether the principal came from a guest session.
func (p *Principal) IsGuest() bool { return p.Kind == KindGuest }

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role string) bool { return HasAny(p.Roles, role) }

// AuthMode is guest for guest sessions and the transport otherwise.
func (p *Principal) AuthMode() string {
	if p.IsGuest() {
		return string(KindGuest)
	}
	return string(p.Transport)
}

// Failure describes a terminal authorization failure. The caller renders
// it as-is.
type Failure struct {
	Status      int
	Message     string
	Transport   Transport
	ClearCookie bool
	Err         error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// IdentityStore is the lookup the resolver needs to load a full identity.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (*model.Identity, error)
}

// Verifier is the part of TokenService the resolver depends on.
type Verifier interface {
	Verify(raw string, expected TokenType) (*Claims, error)
}

// Resolver turns an inbound request into a Principal.
type Resolver struct {
	tokens Verifier
	store  IdentityStore
}

// NewResolver builds a Resolver. store may be nil when only Resolve is used.
func NewResolver(tokens Verifier, store IdentityStore) *Resolver {
	return &Resolver{tokens: tokens, store: store}
}

// ResolveTransport picks the token channel: a bearer header wins over the
// cookie when both are permitted and present.
func ResolveTransport(r *http.Request, opts ResolveOptions) (Transport, string) {
	if opts.AllowBearer {
		if tok, ok := BearerToken(r); ok {
			return TransportBearer, tok
		}
	}
	if opts.AllowCookie {
		if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
			return TransportCookie, ck.Value
		}
	}
	return TransportNone, ""
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func missingTokenMessage(opts ResolveOptions) string {
	switch {
	case opts.AllowBearer && !opts.AllowCookie:
		return MsgNoBearer
	case opts.AllowCookie && !opts.AllowBearer:
		return MsgNoCookie
	}
	return MsgNoToken
}

// Resolve authenticates r. On failure the returned Failure carries the
// status, message and whether the session cookie has to be cleared.
func (rs *Resolver) Resolve(r *http.Request, opts ResolveOptions) (*Principal, *Failure) {
	transport, raw := ResolveTransport(r, opts)
	if transport == TransportNone {
		t := TransportNone
		if opts.AllowBearer && !opts.AllowCookie {
			t = TransportBearer
		}
		return nil, &Failure{Status: http.StatusUnauthorized, Message: missingTokenMessage(opts), Transport: t}
	}

	claims, err := rs.tokens.Verify(raw, TokenAccess)
	switch {
	case errors.Is(err, ErrWrongTokenType):
		return nil, &Failure{Status: http.StatusUnauthorized, Message: MsgWrongTokenType, Transport: transport, Err: err}
	case err != nil:
		return nil, &Failure{
			Status:      http.StatusUnauthorized,
			Message:     MsgInvalidToken,
			Transport:   transport,
			ClearCookie: transport == TransportCookie,
			Err:         err,
		}
	}
	if claims.Type == TokenRefresh {
		return nil, &Failure{Status: http.StatusUnauthorized, Message: MsgWrongTokenType, Transport: transport, Err: ErrWrongTokenType}
	}

	subject := strings.TrimSpace(claims.RegisteredClaims.Subject)
	if subject == "" {
		return nil, &Failure{Status: http.StatusUnauthorized, Message: MsgMissingSubject, Transport: transport}
	}

	if len(opts.Roles) > 0 && !HasAny(claims.Roles, opts.Roles...) {
		msg := opts.DeniedMessage
		if msg == "" {
			msg = fmt.Sprintf(msgRequiredRolesFn, strings.Join(opts.Roles, ", "))
		}
		return nil, &Failure{Status: http.StatusForbidden, Message: msg, Transport: transport}
	}

	p := &Principal{
		ID:        subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Roles:     append([]string(nil), claims.Roles...),
		Kind:      claims.Kind,
		Transport: transport,
		SessionID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// ErrNoIdentityStore is returned by Identity when a registered principal
// has to be loaded but no store was configured.
var ErrNoIdentityStore = errors.New("identity store not configured")

// Identity loads the full identity behind p. Guest principals never touch
// the store and get a synthetic identity instead.
func (rs *Resolver) Identity(ctx context.Context, p *Principal) (*model.Identity, error) {
	if p.IsGuest() {
		return GuestIdentity(p.ID, p.Name), nil
	}
	if rs.store == nil {
		return nil, ErrNoIdentityStore
	}
	return rs.store.FindByID(ctx, p.ID)
}

// GuestIdentity builds the unpersisted identity of a guest session.
func GuestIdentity(id, name string) *model.Identity {
	return &model.Identity{
		UserID:   id,
		UserName: name,
		Roles:    []string{RoleGuest},
	}
}
