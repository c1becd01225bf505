// Package storage declares the capabilities shared by the concrete stores
// under it and the errors they report.
package storage

import (
	"context"
	"errors"
)

// Repository errors. Stores wrap driver errors with these so callers can
// translate them without importing a driver.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate indicates a write violated a uniqueness constraint.
	ErrDuplicate = errors.New("storage: duplicate entry")
	// ErrConflict indicates a guarded write found the record in another state.
	ErrConflict = errors.New("storage: conflicting update")
)

// KV is a small key-value capability used for device-local caches. Get
// returns ErrNotFound for a missing key; Remove of a missing key is not an
// error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
