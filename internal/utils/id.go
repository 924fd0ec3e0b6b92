package utils // package utils provides small helpers for identifiers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identifier prefixes.
const (
	UserPrefix  = "user"
	GuestPrefix = "guest"
)

// NewID returns prefix_<16 hex chars> built from a random UUID.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + raw[:16]
}

// GuestName builds the synthetic display name of a guest: Guest_ followed by
// the last six digits of the current unix millisecond clock.
func GuestName(now time.Time) string {
	ms := fmt.Sprintf("%06d", now.UnixMilli())
	return "Guest_" + ms[len(ms)-6:]
}
