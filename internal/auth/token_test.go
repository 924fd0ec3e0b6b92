package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTokens(t *testing.T, refreshSecret string) (*TokenService, *fakeClock) {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: refreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return svc.WithClock(clock.Now), clock
}

var alice = Subject{ID: "user_alice", Email: "alice@example.com", Roles: []string{"user", "moderator"}, Kind: KindUser}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)
	_, err = NewTokenService(TokenConfig{AccessSecret: "s"})
	assert.Error(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc, _ := newTestTokens(t, "")

	tok, err := svc.Issue(alice, TokenAccess, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)

	c, err := svc.Verify(tok.Value, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "user_alice", c.RegisteredClaims.Subject)
	assert.Equal(t, "alice@example.com", c.Email)
	assert.Equal(t, []string{"user", "moderator"}, c.Roles)
	assert.Equal(t, TokenAccess, c.Type)
	assert.Equal(t, KindUser, c.Kind)
	assert.Equal(t, tok.ID, c.ID)
}

func TestVerifyExpires(t *testing.T) {
	svc, clock := newTestTokens(t, "")

	tok, err := svc.Issue(alice, TokenAccess, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = svc.Verify(tok.Value, TokenAccess)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = svc.Verify(tok.Value, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.True(t, svc.IsExpired(tok.Value))
}

func TestTypeIsolation(t *testing.T) {
	for _, refreshSecret := range []string{"", "refresh-secret"} {
		svc, _ := newTestTokens(t, refreshSecret)
		access, refresh, err := svc.IssuePair(alice)
		require.NoError(t, err)

		_, err = svc.Verify(refresh.Value, TokenAccess)
		assert.ErrorIs(t, err, ErrWrongTokenType, "refresh secret %q", refreshSecret)

		_, err = svc.Verify(access.Value, TokenRefresh)
		assert.ErrorIs(t, err, ErrWrongTokenType, "refresh secret %q", refreshSecret)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc, _ := newTestTokens(t, "")
	tok, err := svc.Issue(alice, TokenAccess, time.Minute)
	require.NoError(t, err)

	other, err := NewTokenService(TokenConfig{AccessSecret: "other", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	forged, err := other.Issue(alice, TokenAccess, time.Minute)
	require.NoError(t, err)

	for _, raw := range []string{"", "garbage", tok.Value + "x", forged.Value, strings.Replace(tok.Value, ".", "", 1)} {
		assert.NotPanics(t, func() {
			_, err := svc.Verify(raw, TokenAccess)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestVerifyRejectsUnknownDiscriminators(t *testing.T) {
	svc, _ := newTestTokens(t, "")
	claims := &Claims{
		Roles: []string{"user"},
		Type:  "session",
		Kind:  KindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_x",
			ExpiresAt: jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(raw, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	claims.Type = TokenAccess
	claims.Roles = []string{"superuser"}
	raw, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(raw, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	svc, _ := newTestTokens(t, "")
	claims := &Claims{Roles: []string{"admin"}, Type: TokenAccess, Kind: KindUser,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(raw, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshAccessPreservesClaims(t *testing.T) {
	svc, _ := newTestTokens(t, "refresh-secret")
	_, refresh, err := svc.IssuePair(alice)
	require.NoError(t, err)

	access, err := svc.RefreshAccess(refresh.Value)
	require.NoError(t, err)
	assert.Equal(t, TokenAccess, access.Type)

	c, err := svc.Verify(access.Value, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, c.RegisteredClaims.Subject)
	assert.Equal(t, alice.Email, c.Email)
	assert.Equal(t, alice.Roles, c.Roles)
}

func TestRefreshAccessOptions(t *testing.T) {
	svc, _ := newTestTokens(t, "")
	_, refresh, err := svc.IssuePair(alice)
	require.NoError(t, err)

	access, err := svc.RefreshAccess(refresh.Value, WithRoles([]string{"admin"}), WithEmail("new@example.com"))
	require.NoError(t, err)
	c, err := svc.Verify(access.Value, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, c.Roles)
	assert.Equal(t, "new@example.com", c.Email)
}

func TestRefreshAccessRejectsAccessAndExpired(t *testing.T) {
	svc, clock := newTestTokens(t, "")
	access, refresh, err := svc.IssuePair(alice)
	require.NoError(t, err)

	_, err = svc.RefreshAccess(access.Value)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	clock.Advance(31 * 24 * time.Hour)
	_, err = svc.RefreshAccess(refresh.Value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDecodeIsUnverified(t *testing.T) {
	svc, _ := newTestTokens(t, "")
	other, err := NewTokenService(TokenConfig{AccessSecret: "other", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	forged, err := other.Issue(alice, TokenAccess, time.Minute)
	require.NoError(t, err)

	c, err := svc.Decode(forged.Value)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, c.RegisteredClaims.Subject)

	_, err = svc.Decode("nope")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.True(t, svc.IsExpired("nope"))
}

func TestGuestKindRoundTrip(t *testing.T) {
	svc, _ := newTestTokens(t, "")
	tok, err := svc.Issue(Subject{ID: "guest_abc", Name: "Guest_123456", Roles: []string{RoleGuest}, Kind: KindGuest}, TokenAccess, 2*time.Hour)
	require.NoError(t, err)

	c, err := svc.Verify(tok.Value, TokenAccess)
	require.NoError(t, err)
	assert.True(t, c.IsGuest())
	assert.Equal(t, "Guest_123456", c.Name)
}
