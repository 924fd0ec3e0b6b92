package auth

import (
	"errors"
	"strings"
)

// Role is one entry of the fixed role registry.
type Role = string

const (
	RoleGuest     Role = "guest"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// DefaultRole is reinstated whenever a mutation would leave an identity
// without any role.
const DefaultRole = RoleUser

// AllowedRoles lists the registry in display order.
var AllowedRoles = []Role{RoleGuest, RoleUser, RoleModerator, RoleAdmin}

// ErrSelfDemotion is returned when an admin edits their own role set and the
// result no longer contains admin.
var ErrSelfDemotion = errors.New("self-demotion is not allowed")

// IsAllowed reports whether role belongs to the registry.
func IsAllowed(role string) bool {
	for _, r := range AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Dedupe removes repeated roles while keeping first-seen order.
func Dedupe(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// AtLeastOne returns roles unchanged unless it is empty, in which case the
// default role is returned.
func AtLeastOne(roles []string) []string {
	if len(roles) == 0 {
		return []string{DefaultRole}
	}
	return roles
}

// Filter keeps only registry roles. Values are trimmed and lowercased first.
func Filter(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if IsAllowed(r) {
			out = append(out, r)
		}
	}
	return out
}

// Normalize filters, dedupes and guarantees a non-empty set.
func Normalize(roles []string) []string {
	return AtLeastOne(Dedupe(Filter(roles)))
}

// Remove drops role from roles. An emptied set gets the default role back.
func Remove(roles []string, role string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != role {
			out = append(out, r)
		}
	}
	return AtLeastOne(out)
}

// HasAny reports whether roles intersects required. An empty required list
// always matches.
func HasAny(roles []string, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, have := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// CheckSelfDemotion rejects a role mutation where the caller targets their
// own identity and the resulting set drops admin.
func CheckSelfDemotion(callerID, targetID string, resulting []string) error {
	if callerID == "" || callerID != targetID {
		return nil
	}
	if HasAny(resulting, RoleAdmin) {
		return nil
	}
	return ErrSelfDemotion
}
