package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"store-ledger/internal/remote"
)

// casAttempts bounds the read-compare-swap loops. With the session lease
// enforcing a single writer, a conflict means something is misconfigured;
// a handful of retries is plenty.
const casAttempts = 5

// AdminLedger is the store's own cash balance: decreased when items are
// bought into inventory, increased by money received on receipts.
type AdminLedger struct {
	store remote.Store
}

func NewAdminLedger(store remote.Store) *AdminLedger {
	return &AdminLedger{store: store}
}

// Balance reads the current cash balance. An absent node reads as zero.
func (l *AdminLedger) Balance(ctx context.Context) (decimal.Decimal, error) {
	bal, _, err := l.read(ctx)
	return bal, err
}

// Adjust adds delta to the cash balance with a conditional write, returning
// the new balance.
func (l *AdminLedger) Adjust(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, exists, err := l.read(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		next := current.Add(delta)
		var expected any
		if exists {
			expected = current
		}
		ok, err := l.store.Swap(ctx, balancePath, expected, next)
		if err != nil {
			return decimal.Zero, wrapRemote("swap", balancePath, err)
		}
		if ok {
			return next, nil
		}
	}
	return decimal.Zero, fmt.Errorf("failed to adjust balance: contention on %s", balancePath)
}

func (l *AdminLedger) read(ctx context.Context) (decimal.Decimal, bool, error) {
	raw, err := l.store.Get(ctx, balancePath)
	if err != nil {
		return decimal.Zero, false, wrapRemote("get", balancePath, err)
	}
	if raw == nil {
		return decimal.Zero, false, nil
	}
	var bal decimal.Decimal
	if err := json.Unmarshal(raw, &bal); err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to decode balance: %w", err)
	}
	return bal, true, nil
}
