// internal/account/store.go
package account

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrNotFound is returned when no record exists under a key.
	ErrNotFound = errors.New("account not found")

	// ErrVersionConflict is returned by Commit when a write was staged against
	// a version that is no longer current.
	ErrVersionConflict = errors.New("account version conflict")

	// ErrInvalidInput is returned for nil records or empty batches of keys.
	ErrInvalidInput = errors.New("invalid input")
)

// Entry is a record together with its key and version.
type Entry struct {
	Key     Key
	Version uint64
	Record  Record
}

// Write stages a record for Commit. Version is the version the writer read,
// zero when the account is being created.
type Write struct {
	Key     Key
	Version uint64
	Record  Record
}

// Store is keyed, versioned storage for typed account records.
// It holds no business logic.
type Store interface {
	// Get returns the current entry. Returns ErrNotFound if absent.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put stores a record unconditionally and returns its new version.
	Put(ctx context.Context, key Key, record Record) (uint64, error)

	// Commit applies all writes or none. Fails with ErrVersionConflict when
	// any staged version is stale.
	Commit(ctx context.Context, writes []Write) error

	// Snapshot returns every entry ordered by key.
	Snapshot(ctx context.Context) ([]*Entry, error)
}
