package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 2)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "Abcdef1!")
	require.NoError(t, err)
	assert.NotEqual(t, "Abcdef1!", hash)

	assert.True(t, h.Verify(ctx, "Abcdef1!", hash))
	assert.False(t, h.Verify(ctx, "Abcdef1?", hash))
	assert.False(t, h.Verify(ctx, "Abcdef1!", "not-a-hash"))
	assert.False(t, h.Verify(ctx, "Abcdef1!", ""))
}

func TestHasherDefaults(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewHasher(0, 0).Cost())
	assert.Equal(t, bcrypt.MinCost, NewHasher(1, 1).Cost())
}

func TestHasherCancelledContext(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Hash(ctx, "Abcdef1!")
	assert.Error(t, err)
	assert.False(t, h.Verify(ctx, "Abcdef1!", "$2a$04$abc"))
}
