package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"store-ledger/internal/remote"
)

// sentinelProduct keeps the receipt shape uniform when a settlement carries
// no products (a balance-adjustment-only receipt).
const sentinelProduct = "none"

// SettleRequest describes one sale to settle.
type SettleRequest struct {
	ClientID  string
	MoneyPaid decimal.Decimal
	Products  []ProductRequest
}

// ProductRequest is one product on the sale with the item weights to pull.
type ProductRequest struct {
	Name      string
	SellPrice decimal.Decimal
	Lines     []LineRequest
}

// LineRequest asks for weight from a specific item.
type LineRequest struct {
	ItemID string
	Weight decimal.Decimal
}

// SkippedLine is a line that failed validation (not enough weight, deleted
// or missing item). It contributed nothing to the receipt; siblings were
// unaffected.
type SkippedLine struct {
	Product string
	ItemID  string
	Weight  decimal.Decimal
	Reason  string
}

// SettleOutcome is the result of a completed settlement.
type SettleOutcome struct {
	ReceiptID string
	Receipt   *Receipt
	Skipped   []SkippedLine
}

// ReceiptService settles sales against the inventory, client and admin
// ledgers. The backend has no multi-key transactions, so settlement runs as
// a saga: every completed step is recorded, and on failure the engine
// best-effort reverses what it already did before surfacing the error.
type ReceiptService interface {
	Settle(ctx context.Context, req SettleRequest) (*SettleOutcome, error)
	GetReceipt(ctx context.Context, id string) (*Receipt, error)
}

type receiptService struct {
	store     remote.Store
	inventory InventoryService
	clients   ClientService
	ledger    *AdminLedger
	now       func() time.Time
}

func NewReceiptService(store remote.Store, inventory InventoryService, clients ClientService, ledger *AdminLedger) ReceiptService {
	return &receiptService{
		store:     store,
		inventory: inventory,
		clients:   clients,
		ledger:    ledger,
		now:       time.Now,
	}
}

// deduction is one applied weight removal, kept for compensation.
type deduction struct {
	product string
	itemID  string
	amount  decimal.Decimal
}

// settleState tracks completed saga steps.
type settleState struct {
	clientID    string
	deductions  []deduction
	receiptID   string
	balanceSet  bool
	prevBalance decimal.Decimal
	adminDelta  decimal.Decimal
}

func (s *receiptService) Settle(ctx context.Context, req SettleRequest) (*SettleOutcome, error) {
	if req.MoneyPaid.IsNegative() {
		return nil, fmt.Errorf("money paid cannot be negative, got %s", req.MoneyPaid)
	}
	if _, err := s.clients.GetClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	number, err := s.nextNumber(ctx)
	if err != nil {
		return nil, err
	}

	st := settleState{clientID: req.ClientID}
	receipt := Receipt{
		Number:    number,
		Client:    req.ClientID,
		MoneyPaid: req.MoneyPaid,
		Products:  make(map[string]ReceiptProduct),
		CreatedAt: s.now().UTC(),
		Status:    ReceiptStatusActive,
	}
	var skipped []SkippedLine

	// Products settle sequentially; the items inside each product are
	// deducted in parallel, and a failed line never blocks its siblings.
	for _, pr := range req.Products {
		line, bought, lineSkipped, err := s.settleProduct(ctx, pr, &st)
		if err != nil {
			s.compensate(ctx, st)
			return nil, err
		}
		skipped = append(skipped, lineSkipped...)
		if len(line.Items) == 0 {
			continue
		}
		receipt.Products[pr.Name] = line
		receipt.TotalPrice = receipt.TotalPrice.Add(line.TotalWeight.Mul(pr.SellPrice))
		receipt.TotalBoughtPrice = receipt.TotalBoughtPrice.Add(bought)
	}

	if len(receipt.Products) == 0 {
		receipt.Products[sentinelProduct] = ReceiptProduct{
			SellPrice:   decimal.Zero,
			TotalWeight: decimal.Zero,
			Items:       map[string]decimal.Decimal{sentinelProduct: decimal.Zero},
		}
	}

	// Balance snapshot comes after the deductions, mirroring the order the
	// money actually moves.
	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		s.compensate(ctx, st)
		return nil, err
	}
	receipt.InitialBalance = client.Balance

	receiptID, err := s.store.Push(ctx, receiptsPath, "", receipt)
	if err != nil {
		s.compensate(ctx, st)
		return nil, wrapRemote("push", receiptsPath, err)
	}
	if receiptID == "" {
		s.compensate(ctx, st)
		return nil, &CreationError{Path: receiptsPath}
	}
	st.receiptID = receiptID

	newBalance := receipt.InitialBalance.Add(receipt.TotalPrice).Sub(req.MoneyPaid)
	if err := s.clients.UpdateBalance(ctx, req.ClientID, newBalance); err != nil {
		s.compensate(ctx, st)
		return nil, err
	}
	st.balanceSet = true
	st.prevBalance = receipt.InitialBalance

	if !req.MoneyPaid.IsZero() {
		if _, err := s.ledger.Adjust(ctx, req.MoneyPaid); err != nil {
			s.compensate(ctx, st)
			return nil, err
		}
		st.adminDelta = req.MoneyPaid
	}

	if err := s.clients.LinkReceipt(ctx, req.ClientID, receiptID); err != nil {
		s.compensate(ctx, st)
		return nil, err
	}

	return &SettleOutcome{ReceiptID: receiptID, Receipt: &receipt, Skipped: skipped}, nil
}

// settleProduct deducts every requested line of one product concurrently.
// Validation failures are collected as skipped lines; a remote failure wins
// and aborts the settlement. Applied deductions are recorded in st even on
// failure so compensation can see them.
func (s *receiptService) settleProduct(ctx context.Context, pr ProductRequest, st *settleState) (ReceiptProduct, decimal.Decimal, []SkippedLine, error) {
	line := ReceiptProduct{SellPrice: pr.SellPrice, Items: make(map[string]decimal.Decimal)}
	var (
		bought  decimal.Decimal
		skipped []SkippedLine
	)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for _, lr := range pr.Lines {
		wg.Add(1)
		go func(lr LineRequest) {
			defer wg.Done()
			item, err := s.inventory.DeductItemWeight(ctx, pr.Name, lr.ItemID, lr.Weight)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				st.deductions = append(st.deductions, deduction{product: pr.Name, itemID: lr.ItemID, amount: lr.Weight})
				// Two lines may target the same item; the receipt records the
				// combined weight pulled from it.
				line.Items[lr.ItemID] = line.Items[lr.ItemID].Add(lr.Weight)
				line.TotalWeight = line.TotalWeight.Add(lr.Weight)
				bought = bought.Add(lr.Weight.Mul(item.BoughtPrice))
			case errors.Is(err, ErrInsufficientWeight),
				errors.Is(err, ErrItemNotFound),
				errors.Is(err, ErrItemDeleted):
				skipped = append(skipped, SkippedLine{
					Product: pr.Name, ItemID: lr.ItemID, Weight: lr.Weight, Reason: err.Error(),
				})
			default:
				if firstErr == nil {
					firstErr = err
				}
			}
		}(lr)
	}
	wg.Wait()

	if firstErr != nil {
		return line, bought, skipped, fmt.Errorf("failed to deduct product %q: %w", pr.Name, firstErr)
	}
	return line, bought, skipped, nil
}

// compensate reverses completed steps in the opposite order they ran.
// Failures here are logged, never returned: the original error is what the
// caller needs to see.
func (s *receiptService) compensate(ctx context.Context, st settleState) {
	if !st.adminDelta.IsZero() {
		if _, err := s.ledger.Adjust(ctx, st.adminDelta.Neg()); err != nil {
			slog.Error("compensation: failed to revert admin balance", "delta", st.adminDelta, "error", err)
		}
	}
	if st.balanceSet {
		if err := s.clients.UpdateBalance(ctx, st.clientID, st.prevBalance); err != nil {
			slog.Error("compensation: failed to revert client balance", "client", st.clientID, "error", err)
		}
	}
	if st.receiptID != "" {
		if err := s.store.Update(ctx, receiptPath(st.receiptID), map[string]any{"status": ReceiptStatusVoid}); err != nil {
			slog.Error("compensation: failed to void receipt", "receipt", st.receiptID, "error", err)
		}
	}
	for _, d := range st.deductions {
		if err := s.inventory.RestoreItemWeight(ctx, d.product, d.itemID, d.amount); err != nil {
			slog.Error("compensation: failed to restore item weight",
				"product", d.product, "item", d.itemID, "amount", d.amount, "error", err)
		}
	}
}

func (s *receiptService) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	raw, err := s.store.Get(ctx, receiptPath(id))
	if err != nil {
		return nil, wrapRemote("get", receiptPath(id), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("receipt %s not found", id)
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt %s: %w", id, err)
	}
	return &receipt, nil
}

// nextNumber allocates the next receipt number (count of existing receipts
// plus one) off a conditional counter, so numbering holds even if the lease
// were ever misconfigured wide. A number consumed by a settlement that later
// compensates leaves a gap, which is acceptable for an append-only log.
func (s *receiptService) nextNumber(ctx context.Context) (int, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		raw, err := s.store.Get(ctx, receiptCountPath)
		if err != nil {
			return 0, wrapRemote("get", receiptCountPath, err)
		}
		current := 0
		var expected any
		if raw != nil {
			if err := json.Unmarshal(raw, &current); err != nil {
				return 0, fmt.Errorf("failed to decode receipt count: %w", err)
			}
			expected = current
		}
		ok, err := s.store.Swap(ctx, receiptCountPath, expected, current+1)
		if err != nil {
			return 0, wrapRemote("swap", receiptCountPath, err)
		}
		if ok {
			return current + 1, nil
		}
	}
	return 0, fmt.Errorf("failed to allocate receipt number: contention on %s", receiptCountPath)
}
