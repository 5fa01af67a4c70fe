package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Ensure Resilient implements Store.
var _ Store = (*Resilient)(nil)

// Resilient wraps a Store with a bounded fixed-delay retry loop. It targets
// application-level transient failures (quota, timeout); transport drops are
// already reconnected underneath. Reads wait readDelay between attempts,
// writes writeDelay. Once the budget is spent the last error is returned
// wrapped in ErrExhausted — it never synthesizes a partial write of its own.
//
// Every ledger reaches the store through this wrapper and nothing else.
type Resilient struct {
	inner      Store
	attempts   int
	readDelay  time.Duration
	writeDelay time.Duration
}

// RetryPolicy configures a Resilient wrapper. Zero values fall back to the
// defaults: 3 attempts, 1s between reads, 5s between writes.
type RetryPolicy struct {
	Attempts   int
	ReadDelay  time.Duration
	WriteDelay time.Duration
}

// NewResilient wraps inner with the given retry policy.
func NewResilient(inner Store, policy RetryPolicy) *Resilient {
	if policy.Attempts <= 0 {
		policy.Attempts = 3
	}
	if policy.ReadDelay <= 0 {
		policy.ReadDelay = time.Second
	}
	if policy.WriteDelay <= 0 {
		policy.WriteDelay = 5 * time.Second
	}
	return &Resilient{
		inner:      inner,
		attempts:   policy.Attempts,
		readDelay:  policy.ReadDelay,
		writeDelay: policy.WriteDelay,
	}
}

func (r *Resilient) Get(ctx context.Context, path string) ([]byte, error) {
	var out []byte
	err := r.retry(ctx, "get", path, r.readDelay, func() error {
		var err error
		out, err = r.inner.Get(ctx, path)
		return err
	})
	return out, err
}

func (r *Resilient) Update(ctx context.Context, path string, fields map[string]any) error {
	// Each retry re-sends the same absolute field values, so a retried
	// update converges to the same state as a single successful one.
	return r.retry(ctx, "update", path, r.writeDelay, func() error {
		return r.inner.Update(ctx, path, fields)
	})
}

func (r *Resilient) Push(ctx context.Context, path, key string, value any) (string, error) {
	var out string
	err := r.retry(ctx, "push", path, r.writeDelay, func() error {
		var err error
		out, err = r.inner.Push(ctx, path, key, value)
		return err
	})
	return out, err
}

func (r *Resilient) Swap(ctx context.Context, path string, expected, next any) (bool, error) {
	// A lost comparison is a result, not a failure: only transport and
	// store errors are retried.
	var ok bool
	err := r.retry(ctx, "swap", path, r.writeDelay, func() error {
		var err error
		ok, err = r.inner.Swap(ctx, path, expected, next)
		return err
	})
	return ok, err
}

func (r *Resilient) retry(ctx context.Context, op, path string, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			opsTotal.WithLabelValues(op, "ok").Inc()
			return nil
		}
		if attempt == r.attempts {
			break
		}
		retriesTotal.WithLabelValues(op).Inc()
		slog.Warn("remote operation failed, retrying",
			"op", op, "path", path, "attempt", attempt, "error", lastErr)
		if err := sleep(ctx, delay); err != nil {
			opsTotal.WithLabelValues(op, "cancelled").Inc()
			return fmt.Errorf("%s %s interrupted: %w", op, path, err)
		}
	}
	opsTotal.WithLabelValues(op, "exhausted").Inc()
	return fmt.Errorf("%s %s failed after %d attempts: %w (last error: %w)",
		op, path, r.attempts, ErrExhausted, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
