package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultBcryptCost matches 12 salt rounds.
const DefaultBcryptCost = 12

// Hasher hashes and compares password secrets with bcrypt. Work runs on a
// bounded number of slots so a burst of sign-ups cannot starve the CPU, and
// callers blocked on a slot or on the computation honour ctx.
type Hasher struct {
	cost  int
	slots *semaphore.Weighted
}

// NewHasher builds a Hasher. Non-positive values fall back to defaults.
func NewHasher(cost, maxConcurrent int) *Hasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	return &Hasher{cost: cost, slots: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Cost returns the configured bcrypt cost.
func (h *Hasher) Cost() int { return h.cost }

type hashResult struct {
	hash []byte
	err  error
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	done := make(chan hashResult, 1)
	go func() {
		defer h.slots.Release(1)
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		done <- hashResult{hash: b, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("hash password: %w", res.err)
		}
		return string(res.hash), nil
	}
}

// Verify compares password against hash. A mismatch and an internal failure
// both return false.
func (h *Hasher) Verify(ctx context.Context, password, hash string) bool {
	if hash == "" || ctx.Err() != nil {
		return false
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	done := make(chan error, 1)
	go func() {
		defer h.slots.Release(1)
		done <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	}()
	select {
	case <-ctx.Done():
		return false
	case err := <-done:
		return err == nil
	}
}
