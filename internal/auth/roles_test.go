package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowed(t *testing.T) {
	for _, r := range []string{"guest", "user", "moderator", "admin"} {
		assert.True(t, IsAllowed(r), r)
	}
	assert.False(t, IsAllowed("root"))
	assert.False(t, IsAllowed("Admin"))
	assert.False(t, IsAllowed(""))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil gets default", nil, []string{"user"}},
		{"unknown only gets default", []string{"root", "owner"}, []string{"user"}},
		{"dedupes and filters", []string{"admin", " Admin ", "root", "user", "admin"}, []string{"admin", "user"}},
		{"keeps order", []string{"moderator", "guest"}, []string{"moderator", "guest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRemoveNeverEmpties(t *testing.T) {
	assert.Equal(t, []string{"user"}, Remove([]string{"admin"}, "admin"))
	assert.Equal(t, []string{"user"}, Remove([]string{"user"}, "user"))
	assert.Equal(t, []string{"moderator"}, Remove([]string{"admin", "moderator"}, "admin"))
	assert.Equal(t, []string{"admin"}, Remove([]string{"admin"}, "guest"))
}

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny([]string{"user"}))
	assert.True(t, HasAny([]string{"user", "admin"}, "admin"))
	assert.False(t, HasAny([]string{"user"}, "admin", "moderator"))
	assert.False(t, HasAny(nil, "admin"))
}

func TestCheckSelfDemotion(t *testing.T) {
	assert.ErrorIs(t, CheckSelfDemotion("user_1", "user_1", []string{"user"}), ErrSelfDemotion)
	assert.NoError(t, CheckSelfDemotion("user_1", "user_1", []string{"admin", "user"}))
	assert.NoError(t, CheckSelfDemotion("user_1", "user_2", []string{"user"}))
	assert.NoError(t, CheckSelfDemotion("", "", []string{"user"}))
}
