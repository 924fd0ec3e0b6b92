// Package repository defines error types that are reused across the
// stores. These sentinel values allow higher layers such as handlers to
// distinguish between different failure scenarios without knowing which
// database driver produced them.
package repository

import "errors"

// ErrNotFound is returned when the requested document does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert collides with the unique
// email index. Handlers should translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")
