package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Ensure Buffered implements Store and Syncer.
var (
	_ Store  = (*Buffered)(nil)
	_ Syncer = (*Buffered)(nil)
)

type bufferedOp struct {
	kind   string // "update" or "push"
	path   string
	key    string
	fields map[string]any
	value  any
}

// Buffered adds an offline mode to a Store for the session handoff protocol.
// While offline, Update and Push queue in order; GoOnline replays the queue
// against the inner store before new writes are accepted. Reads always pass
// through — there is no authoritative local copy, and a stale read would be
// worse than a failed one. Swap requires the server and fails offline.
type Buffered struct {
	mu      sync.Mutex
	inner   Store
	offline bool
	queue   []bufferedOp
}

// NewBuffered wraps inner in online state.
func NewBuffered(inner Store) *Buffered {
	return &Buffered{inner: inner}
}

// GoOffline starts queueing writes.
func (b *Buffered) GoOffline() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = true
}

// GoOnline flushes the queued writes in order and resumes pass-through mode.
// On a flush failure the remaining queue is kept and the store stays offline
// so a later GoOnline can finish the job.
func (b *Buffered) GoOnline(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) > 0 {
		op := b.queue[0]
		var err error
		switch op.kind {
		case "update":
			err = b.inner.Update(ctx, op.path, op.fields)
		case "push":
			_, err = b.inner.Push(ctx, op.path, op.key, op.value)
		}
		if err != nil {
			return fmt.Errorf("failed to flush buffered %s %s: %w", op.kind, op.path, err)
		}
		b.queue = b.queue[1:]
	}
	b.offline = false
	return nil
}

// Pending returns the number of queued writes.
func (b *Buffered) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Buffered) Get(ctx context.Context, path string) ([]byte, error) {
	return b.inner.Get(ctx, path)
}

func (b *Buffered) Update(ctx context.Context, path string, fields map[string]any) error {
	b.mu.Lock()
	if b.offline {
		b.queue = append(b.queue, bufferedOp{kind: "update", path: path, fields: fields})
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	return b.inner.Update(ctx, path, fields)
}

func (b *Buffered) Push(ctx context.Context, path, key string, value any) (string, error) {
	b.mu.Lock()
	if b.offline {
		// Allocate the key locally so the caller can keep linking records
		// while offline; the flush replays it with the same key.
		if key == "" {
			key = uuid.NewString()
		}
		b.queue = append(b.queue, bufferedOp{kind: "push", path: path, key: key, value: value})
		b.mu.Unlock()
		return key, nil
	}
	b.mu.Unlock()
	return b.inner.Push(ctx, path, key, value)
}

func (b *Buffered) Swap(ctx context.Context, path string, expected, next any) (bool, error) {
	b.mu.Lock()
	offline := b.offline
	b.mu.Unlock()
	if offline {
		return false, fmt.Errorf("swap %s: %w", path, ErrOffline)
	}
	return b.inner.Swap(ctx, path, expected, next)
}
