// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Auth activity event types.
const (
    EventUserRegistered = "user.registered"
    EventUserSignedIn   = "user.signed_in"
    EventSignInFailed   = "user.signin_failed"
    EventGuestSession   = "guest.session_created"
    EventTokenRefreshed = "token.refreshed"
    EventUserSignedOut  = "user.signed_out"
    EventRolesChanged   = "roles.changed"
    EventProfileUpdated = "profile.updated"
)

// AuthEvent is published after a security-relevant auth operation.  It
// carries enough context for an audit trail without querying the identity
// store.  Passwords and tokens are never included.
type AuthEvent struct {
    Type       string   `json:"type"`
    UserID     string   `json:"user_id,omitempty"`
    ActorID    string   `json:"actor_id,omitempty"`
    Email      string   `json:"email,omitempty"`
    Roles      []string `json:"roles,omitempty"`
    Transport  string   `json:"transport,omitempty"`
    RemoteIP   string   `json:"remote_ip,omitempty"`
    Expired    bool     `json:"session_expired,omitempty"` // sign-out of a session that had already lapsed
    OccurredAt string   `json:"occurred_at"`
}

// NewAuthEvent stamps an event of type typ with the current UTC time.
func NewAuthEvent(typ string) AuthEvent {
    return AuthEvent{Type: typ, OccurredAt: time.Now().UTC().Format(time.RFC3339)}
}
