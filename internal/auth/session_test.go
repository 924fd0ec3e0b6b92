package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/iliyamo/shop-auth-api/internal/model"
)

type stubStore struct {
	calls int
	users map[string]*model.Identity
}

func (s *stubStore) FindByID(_ context.Context, id string) (*model.Identity, error) {
	s.calls++
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

type ResolverSuite struct {
	suite.Suite
	tokens   *TokenService
	clock    *fakeClock
	store    *stubStore
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.tokens, s.clock = newTestTokens(s.T(), "refresh-secret")
	s.store = &stubStore{users: map[string]*model.Identity{
		"user_alice": {UserID: "user_alice", UserName: "Alice", UserEmail: "alice@example.com", Roles: []string{"user"}},
	}}
	s.resolver = NewResolver(s.tokens, s.store)
}

func (s *ResolverSuite) access(sub Subject) string {
	tok, err := s.tokens.Issue(sub, TokenAccess, time.Hour)
	s.Require().NoError(err)
	return tok.Value
}

func withBearer(raw string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	return r
}

func withCookie(raw string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: raw})
	return r
}

func (s *ResolverSuite) TestBearerWinsOverCookie() {
	r := withBearer(s.access(alice))
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})

	transport, raw := ResolveTransport(r, AnyTransport())
	s.Equal(TransportBearer, transport)
	s.NotEqual("cookie-token", raw)

	transport, raw = ResolveTransport(r, CookieOnly())
	s.Equal(TransportCookie, transport)
	s.Equal("cookie-token", raw)
}

func (s *ResolverSuite) TestMissingTokenMessages() {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, f := s.resolver.Resolve(r, AnyTransport())
	s.Require().NotNil(f)
	s.Equal(http.StatusUnauthorized, f.Status)
	s.Equal(MsgNoToken, f.Message)

	_, f = s.resolver.Resolve(r, BearerOnly())
	s.Equal(MsgNoBearer, f.Message)
	s.Equal(TransportBearer, f.Transport)

	_, f = s.resolver.Resolve(r, CookieOnly())
	s.Equal(MsgNoCookie, f.Message)
	s.False(f.ClearCookie)
}

func (s *ResolverSuite) TestBearerHeaderIgnoredWhenCookieOnly() {
	_, f := s.resolver.Resolve(withBearer(s.access(alice)), CookieOnly())
	s.Require().NotNil(f)
	s.Equal(MsgNoCookie, f.Message)
}

func (s *ResolverSuite) TestExpiredCookieIsCleared() {
	raw := s.access(alice)
	s.clock.Advance(2 * time.Hour)

	_, f := s.resolver.Resolve(withCookie(raw), AnyTransport())
	s.Require().NotNil(f)
	s.Equal(http.StatusUnauthorized, f.Status)
	s.Equal(MsgInvalidToken, f.Message)
	s.True(f.ClearCookie)
	s.ErrorIs(f, ErrTokenExpired)
}

func (s *ResolverSuite) TestInvalidBearerDoesNotClearCookie() {
	_, f := s.resolver.Resolve(withBearer("garbage"), AnyTransport())
	s.Require().NotNil(f)
	s.Equal(MsgInvalidToken, f.Message)
	s.False(f.ClearCookie)
}

func (s *ResolverSuite) TestRefreshTokenRejectedWithTypeMessage() {
	_, refresh, err := s.tokens.IssuePair(alice)
	s.Require().NoError(err)

	_, f := s.resolver.Resolve(withBearer(refresh.Value), AnyTransport())
	s.Require().NotNil(f)
	s.Equal(http.StatusUnauthorized, f.Status)
	s.Equal(MsgWrongTokenType, f.Message)
}

func (s *ResolverSuite) TestMissingSubject() {
	_, f := s.resolver.Resolve(withBearer(s.access(Subject{ID: "   ", Roles: []string{"user"}})), AnyTransport())
	s.Require().NotNil(f)
	s.Equal(MsgMissingSubject, f.Message)
}

func (s *ResolverSuite) TestRequiredRoles() {
	opts := AnyTransport()
	opts.Roles = []string{"admin", "moderator"}

	_, f := s.resolver.Resolve(withBearer(s.access(Subject{ID: "user_bob", Roles: []string{"user"}})), opts)
	s.Require().NotNil(f)
	s.Equal(http.StatusForbidden, f.Status)
	s.Equal("Access denied. Required roles: admin, moderator", f.Message)

	opts.DeniedMessage = "Forbidden: Admin access required"
	_, f = s.resolver.Resolve(withBearer(s.access(Subject{ID: "user_bob", Roles: []string{"user"}})), opts)
	s.Equal("Forbidden: Admin access required", f.Message)

	p, f := s.resolver.Resolve(withBearer(s.access(alice)), opts)
	s.Nil(f)
	s.Equal("user_alice", p.ID)
}

func (s *ResolverSuite) TestSuccessfulResolve() {
	p, f := s.resolver.Resolve(withCookie(s.access(alice)), AnyTransport())
	s.Require().Nil(f)
	s.Equal("user_alice", p.ID)
	s.Equal("alice@example.com", p.Email)
	s.Equal(TransportCookie, p.Transport)
	s.Equal("cookie", p.AuthMode())
	s.NotEmpty(p.SessionID)
	s.False(p.ExpiresAt.IsZero())

	u, err := s.resolver.Identity(context.Background(), p)
	s.Require().NoError(err)
	s.Equal("Alice", u.UserName)
	s.Equal(1, s.store.calls)
}

func (s *ResolverSuite) TestGuestSkipsStore() {
	raw := s.access(Subject{ID: "guest_x1", Name: "Guest_123456", Roles: []string{RoleGuest}, Kind: KindGuest})
	p, f := s.resolver.Resolve(withCookie(raw), AnyTransport())
	s.Require().Nil(f)
	s.Equal("guest", p.AuthMode())

	u, err := s.resolver.Identity(context.Background(), p)
	s.Require().NoError(err)
	s.Equal([]string{RoleGuest}, u.Roles)
	s.Equal("Guest_123456", u.UserName)
	s.Zero(s.store.calls)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "Basic abc")
	_, ok = BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "Bearer ")
	_, ok = BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer abc.def")
	tok, ok := BearerToken(r)
	require.True(t, ok)
	assert.Equal(t, "abc.def", tok)
}
