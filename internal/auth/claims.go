package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// SubjectKind tells a registered identity apart from an ephemeral guest.
type SubjectKind string

const (
	KindUser  SubjectKind = "user"
	KindGuest SubjectKind = "guest"
)

// Claims is the closed claim set carried by every token this service signs.
type Claims struct {
	Email string      `json:"email,omitempty"`
	Name  string      `json:"name,omitempty"`
	Roles []string    `json:"roles"`
	Type  TokenType   `json:"type"`
	Kind  SubjectKind `json:"kind"`
	jwt.RegisteredClaims
}

// Validate is invoked by the jwt parser after the registered claims have
// been checked. Unknown discriminators or roles make the token invalid.
func (c *Claims) Validate() error {
	switch c.Type {
	case TokenAccess, TokenRefresh:
	default:
		return fmt.Errorf("unknown token type %q", c.Type)
	}
	switch c.Kind {
	case KindUser, KindGuest:
	default:
		return fmt.Errorf("unknown subject kind %q", c.Kind)
	}
	for _, r := range c.Roles {
		if !IsAllowed(r) {
			return fmt.Errorf("unknown role %q", r)
		}
	}
	return nil
}

// IsGuest reports whether the token was minted for a guest session.
func (c *Claims) IsGuest() bool { return c.Kind == KindGuest }

// AsSubject rebuilds the identity the claims were minted for.
func (c *Claims) AsSubject() Subject {
	roles := make([]string, len(c.Roles))
	copy(roles, c.Roles)
	return Subject{
		ID:    c.RegisteredClaims.Subject,
		Email: c.Email,
		Name:  c.Name,
		Roles: roles,
		Kind:  c.Kind,
	}
}
