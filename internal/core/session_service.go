package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"store-ledger/internal/localstore"
	"store-ledger/internal/remote"
)

// SessionService is the single-writer lock. The whole correctness story of
// the ledgers rests on it: the backend has no transactions, so "only the
// lease holder writes" is the one ordering guarantee the system has.
//
// The lease lives at a single path as {holder, expiresAt}. Acquisition is a
// compare-and-swap, so two devices racing through login cannot both win; an
// expired lease is up for grabs, so a crashed client cannot wedge the store
// forever.
type SessionService struct {
	store remote.Store
	local *localstore.Store
	sync  remote.Syncer // nil when the store does not buffer writes
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	name  string
	lease *Lease
}

func NewSessionService(store remote.Store, local *localstore.Store, syncer remote.Syncer, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SessionService{store: store, local: local, sync: syncer, ttl: ttl, now: time.Now}
}

// Active returns the locally-held session, if any.
func (s *SessionService) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, s.name != ""
}

// Login acquires the lease for name. Exactly one of two concurrent logins
// succeeds; the loser gets ErrLockHeld. On success the name and active flag
// are cached in device-local storage for RetryActive.
func (s *SessionService) Login(ctx context.Context, name string) error {
	if !validKey(name) {
		return fmt.Errorf("user name %q: %w", name, ErrInvalidName)
	}

	raw, err := s.store.Get(ctx, leasePath)
	if err != nil {
		return wrapRemote("get", leasePath, err)
	}
	var expected any
	if raw != nil {
		var current Lease
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("failed to decode lease: %w", err)
		}
		if !current.Expired(s.now()) && current.Holder != name {
			return fmt.Errorf("lease held by %q until %s: %w",
				current.Holder, current.ExpiresAt.Format(time.RFC3339), ErrLockHeld)
		}
		expected = json.RawMessage(raw)
	}

	lease := Lease{Holder: name, ExpiresAt: s.now().Add(s.ttl)}
	ok, err := s.store.Swap(ctx, leasePath, expected, lease)
	if err != nil {
		return wrapRemote("swap", leasePath, err)
	}
	if !ok {
		return fmt.Errorf("lost login race for %q: %w", name, ErrLockHeld)
	}

	if err := s.local.SetItem(ctx, localstore.KeyUser, name); err != nil {
		return err
	}
	if err := s.local.SetItem(ctx, localstore.KeyActive, "true"); err != nil {
		return err
	}

	s.mu.Lock()
	s.name = name
	s.lease = &lease
	s.mu.Unlock()
	return nil
}

// Renew extends the held lease. Renewal is caller-driven; a session that
// stops renewing simply expires and frees the lock.
func (s *SessionService) Renew(ctx context.Context) error {
	s.mu.Lock()
	name, lease := s.name, s.lease
	s.mu.Unlock()
	if lease == nil {
		return ErrNotActive
	}

	next := Lease{Holder: name, ExpiresAt: s.now().Add(s.ttl)}
	ok, err := s.store.Swap(ctx, leasePath, *lease, next)
	if err != nil {
		return wrapRemote("swap", leasePath, err)
	}
	if !ok {
		// Someone took over an expired lease; this session is done.
		s.mu.Lock()
		s.name, s.lease = "", nil
		s.mu.Unlock()
		return fmt.Errorf("lease was taken over: %w", ErrLockHeld)
	}

	s.mu.Lock()
	s.lease = &next
	s.mu.Unlock()
	return nil
}

// Backup is the logout/backgrounding handoff: go online, flush buffered
// writes, clear the local active flag, release the lease. If the flush
// fails the lease is kept (the session stays nominally active) but the local
// flag is cleared anyway and the failure is reported.
func (s *SessionService) Backup(ctx context.Context) error {
	var flushErr error
	if s.sync != nil {
		flushErr = s.sync.GoOnline(ctx)
	}

	if err := s.local.SetItem(ctx, localstore.KeyActive, "false"); err != nil {
		if flushErr != nil {
			return fmt.Errorf("flush failed (%v); also: %w", flushErr, err)
		}
		return err
	}
	if flushErr != nil {
		return fmt.Errorf("failed to flush before releasing lease: %w", flushErr)
	}

	s.mu.Lock()
	lease := s.lease
	s.name, s.lease = "", nil
	s.mu.Unlock()

	if lease != nil {
		ok, err := s.store.Swap(ctx, leasePath, *lease, nil)
		if err != nil {
			return wrapRemote("swap", leasePath, err)
		}
		if !ok {
			// Lease already expired and was taken over; nothing to release.
			return nil
		}
	}
	return nil
}

// RetryActive re-acquires the lease with the name cached on this device.
// Used from the inactive screen after a restart or a lost lease.
func (s *SessionService) RetryActive(ctx context.Context) error {
	name, ok, err := s.local.GetItem(ctx, localstore.KeyUser)
	if err != nil {
		return err
	}
	if !ok || name == "" {
		return fmt.Errorf("no cached user on this device: %w", ErrNotActive)
	}
	return s.Login(ctx, name)
}
