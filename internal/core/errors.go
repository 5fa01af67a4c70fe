package core

import (
	"errors"
	"fmt"

	"store-ledger/internal/remote"
)

// Validation sentinels. These are results, not faults: the remote store was
// never left in an ambiguous state when one of them is returned.
var (
	ErrInsufficientWeight = errors.New("requested weight exceeds item weight")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductExists      = errors.New("product already exists")
	ErrItemNotFound       = errors.New("item not found")
	ErrItemDeleted        = errors.New("item is deleted")
	ErrClientNotFound     = errors.New("client not found")
	ErrLockHeld           = errors.New("session lease is held by another user")
	ErrNotActive          = errors.New("no active session")
	ErrInvalidName        = errors.New("invalid name")
)

// RemoteError is a remote operation that exhausted its retry budget. The
// store may have partially applied the write; callers must treat the state
// as ambiguous and show a retry affordance.
type RemoteError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// CreationError is an append that succeeded at the transport level but
// allocated no key: the record definitely did not persist, so the whole
// operation can safely be retried.
type CreationError struct {
	Path string
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("store allocated no key under %s", e.Path)
}

// wrapRemote classifies a store error: budget exhaustion becomes a typed
// *RemoteError, anything else is wrapped as-is.
func wrapRemote(op, path string, err error) error {
	if errors.Is(err, remote.ErrExhausted) {
		return &RemoteError{Op: op, Path: path, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
