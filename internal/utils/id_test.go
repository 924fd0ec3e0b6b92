package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	id := NewID(UserPrefix)
	assert.Regexp(t, regexp.MustCompile(`^user_[0-9a-f]{16}$`), id)
	assert.NotEqual(t, id, NewID(UserPrefix))
	assert.Regexp(t, `^guest_`, NewID(GuestPrefix))
}

func TestGuestName(t *testing.T) {
	assert.Equal(t, "Guest_456789", GuestName(time.UnixMilli(1700000456789)))
	assert.Equal(t, "Guest_000042", GuestName(time.UnixMilli(42)))
}
