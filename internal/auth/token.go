package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures. Callers treat every one of them as
// unauthenticated; the distinction only drives the message shown.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Subject is the identity a token is minted for.
type Subject struct {
	ID    string
	Email string
	Name  string
	Roles []string
	Kind  SubjectKind
}

// Token is a signed token together with the metadata handed to clients.
type Token struct {
	Value     string
	Type      TokenType
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenConfig configures a TokenService. RefreshSecret falls back to
// AccessSecret when empty.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenService issues and verifies HS256 access and refresh tokens.
type TokenService struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenService validates cfg and returns a ready service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" {
		return nil, errors.New("token service: access secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token service: ttl must be positive")
	}
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.AccessSecret
	}
	return &TokenService{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(refresh),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) keyFor(t TokenType) ([]byte, error) {
	switch t {
	case TokenAccess:
		return s.accessKey, nil
	case TokenRefresh:
		return s.refreshKey, nil
	}
	return nil, fmt.Errorf("unknown token type %q", t)
}

// Issue signs a token of type typ for sub that expires after ttl.
func (s *TokenService) Issue(sub Subject, typ TokenType, ttl time.Duration) (Token, error) {
	key, err := s.keyFor(typ)
	if err != nil {
		return Token{}, err
	}
	if ttl <= 0 {
		return Token{}, errors.New("issue token: ttl must be positive")
	}
	kind := sub.Kind
	if kind == "" {
		kind = KindUser
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := &Claims{
		Email: sub.Email,
		Name:  sub.Name,
		Roles: append([]string(nil), sub.Roles...),
		Type:  typ,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   sub.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return Token{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return Token{
		Value:     signed,
		Type:      typ,
		ID:        claims.ID,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// IssueAccess signs an access token with the configured access ttl.
func (s *TokenService) IssueAccess(sub Subject) (Token, error) {
	return s.Issue(sub, TokenAccess, s.accessTTL)
}

// IssuePair signs an access token and a refresh token for bearer clients.
func (s *TokenService) IssuePair(sub Subject) (access, refresh Token, err error) {
	if access, err = s.Issue(sub, TokenAccess, s.accessTTL); err != nil {
		return Token{}, Token{}, err
	}
	if refresh, err = s.Issue(sub, TokenRefresh, s.refreshTTL); err != nil {
		return Token{}, Token{}, err
	}
	return access, refresh, nil
}

// Verify checks signature, expiry and the closed claim shape, then requires
// the token type to equal expected. It never panics; every failure maps to
// ErrTokenExpired, ErrTokenInvalid or ErrWrongTokenType.
func (s *TokenService) Verify(raw string, expected TokenType) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, ErrTokenInvalid
		}
	}()
	if strings.TrimSpace(raw) == "" {
		return nil, ErrTokenInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	// The key is chosen by the token's own type claim so that a well-signed
	// token presented on the wrong channel is reported as such.
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		c, ok := t.Claims.(*Claims)
		if !ok {
			return nil, ErrTokenInvalid
		}
		return s.keyFor(c.Type)
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if c.Type != expected {
		return nil, ErrWrongTokenType
	}
	return c, nil
}

// Decode reads the claims without checking the signature or expiry. The
// result must never be used to authorize anything.
func (s *TokenService) Decode(raw string) (*Claims, error) {
	c := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, c); err != nil {
		return nil, ErrTokenInvalid
	}
	return c, nil
}

// IsExpired reports whether the unverified expiry of raw lies in the past.
// Undecodable tokens count as expired.
func (s *TokenService) IsExpired(raw string) bool {
	c, err := s.Decode(raw)
	if err != nil || c.ExpiresAt == nil {
		return true
	}
	return !c.ExpiresAt.Time.After(s.now())
}

// IssueOption adjusts the subject before a token is re-minted.
type IssueOption func(*Subject)

// WithRoles replaces the roles carried over from the refresh token.
func WithRoles(roles []string) IssueOption {
	return func(sub *Subject) { sub.Roles = append([]string(nil), roles...) }
}

// WithEmail replaces the email carried over from the refresh token.
func WithEmail(email string) IssueOption {
	return func(sub *Subject) { sub.Email = email }
}

// WithName replaces the display name carried over from the refresh token.
func WithName(name string) IssueOption {
	return func(sub *Subject) { sub.Name = name }
}

// RefreshAccess verifies raw as a refresh token and mints a new access
// token from its subject, email and roles.
func (s *TokenService) RefreshAccess(raw string, opts ...IssueOption) (Token, error) {
	c, err := s.Verify(raw, TokenRefresh)
	if err != nil {
		return Token{}, err
	}
	sub := c.AsSubject()
	for _, opt := range opts {
		opt(&sub)
	}
	return s.Issue(sub, TokenAccess, s.accessTTL)
}
