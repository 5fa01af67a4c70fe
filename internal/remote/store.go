// Package remote speaks to the hierarchical key-value store that owns all
// persisted state. Paths are slash-separated ("products/Beef/items/i1");
// values are JSON. The store offers no multi-key transactions — Swap is the
// only atomic primitive, a compare-and-swap over a single path.
package remote

import (
	"context"
	"errors"
)

// ErrExhausted is returned by the resilient wrapper once an operation has
// failed through its whole retry budget. Callers must check for it with
// errors.Is and surface a typed remote failure.
var ErrExhausted = errors.New("remote: retry budget exhausted")

// ErrOffline is returned by operations that require the server while the
// store is buffering writes offline.
var ErrOffline = errors.New("remote: store is offline")

// Store is the contract every backend implementation satisfies. It is also
// implemented by the resilient retry wrapper, which is the only path the
// ledgers are allowed to use.
type Store interface {
	// Get reads the value at path. A nil byte slice with a nil error means
	// the path is absent (or explicitly null).
	Get(ctx context.Context, path string) ([]byte, error)

	// Update merges the given fields into the node at path. Existing
	// children not named in fields are left untouched.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Push writes value under path/key. An empty key asks the store to
	// generate one. The allocated key is returned; an empty key with a nil
	// error means the store reported no allocation.
	Push(ctx context.Context, path, key string, value any) (string, error)

	// Swap atomically replaces the value at path with next, but only if the
	// current value equals expected. nil expected means "path must be
	// absent"; nil next deletes the path. Returns false when the comparison
	// failed and nothing was written.
	Swap(ctx context.Context, path string, expected, next any) (bool, error)
}

// Syncer is implemented by stores that can buffer writes while offline and
// flush them later. The session manager uses it during handoff.
type Syncer interface {
	GoOffline()
	GoOnline(ctx context.Context) error
}
