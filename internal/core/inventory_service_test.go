package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"store-ledger/internal/core"
	"store-ledger/internal/remote"
)

// setupLedgerTest builds the full service stack over an in-memory store
// behind a fast resilient wrapper, the same shape production wiring uses.
func setupLedgerTest(t *testing.T) (core.InventoryService, core.ClientService, core.ReceiptService, *core.AdminLedger, context.Context) {
	t.Helper()
	store := remote.NewResilient(remote.NewMemory(), remote.RetryPolicy{
		Attempts:   2,
		ReadDelay:  time.Millisecond,
		WriteDelay: time.Millisecond,
	})
	ledger := core.NewAdminLedger(store)
	inventory := core.NewInventoryService(store, ledger)
	clients := core.NewClientService(store)
	receipts := core.NewReceiptService(store, inventory, clients, ledger)
	return inventory, clients, receipts, ledger, context.Background()
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestInventory_CreateProduct(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	err := inventory.CreateProduct(ctx, "Beef", false, true, decimal.Zero)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	product, err := inventory.GetProduct(ctx, "Beef")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if product.Name != "Beef" || product.IsStatic || !product.IsQrable {
		t.Errorf("Unexpected product: %+v", product)
	}

	// Same name again must be rejected, not silently clobbered.
	err = inventory.CreateProduct(ctx, "Beef", false, true, decimal.Zero)
	if !errors.Is(err, core.ErrProductExists) {
		t.Errorf("Expected ErrProductExists, got %v", err)
	}
}

// keylessStore simulates a backend that accepts an append but allocates no
// key for it.
type keylessStore struct {
	remote.Store
}

func (keylessStore) Push(ctx context.Context, path, key string, value any) (string, error) {
	return "", nil
}

func TestInventory_CreateWithoutAllocatedKey(t *testing.T) {
	store := keylessStore{Store: remote.NewMemory()}
	ledger := core.NewAdminLedger(store)
	inventory := core.NewInventoryService(store, ledger)
	ctx := context.Background()

	err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero)
	if err == nil {
		t.Fatal("Expected keyless push to fail")
	}

	// No key means the record definitely did not persist: the caller gets the
	// safely-retryable creation error, not the ambiguous remote one.
	var creationErr *core.CreationError
	if !errors.As(err, &creationErr) {
		t.Fatalf("Expected *CreationError, got %T: %v", err, err)
	}
	var remoteErr *core.RemoteError
	if errors.As(err, &remoteErr) {
		t.Errorf("Keyless push must not classify as a remote failure: %v", err)
	}
}

func TestInventory_CreateProductInvalidName(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)
	for _, name := range []string{"", "a/b", "x#y"} {
		if err := inventory.CreateProduct(ctx, name, false, false, decimal.Zero); !errors.Is(err, core.ErrInvalidName) {
			t.Errorf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestInventory_CreateItemBooksPurchase(t *testing.T) {
	inventory, _, _, ledger, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	before, err := ledger.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}

	// weight=10 at boughtPrice=5 books a cash outflow of 50.
	itemID, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "10"), "")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	after, err := ledger.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !after.Equal(before.Sub(mustDecimal(t, "50"))) {
		t.Errorf("Expected balance %s, got %s", before.Sub(mustDecimal(t, "50")), after)
	}

	item, err := inventory.GetItem(ctx, "Beef", itemID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Weight.Equal(mustDecimal(t, "10")) || !item.TotalWeight.Equal(mustDecimal(t, "10")) {
		t.Errorf("Expected weight=totalWeight=10, got %s/%s", item.Weight, item.TotalWeight)
	}
	if item.Order != 1 {
		t.Errorf("Expected order 1, got %d", item.Order)
	}
}

func TestInventory_ItemOrderSequence(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	for want := 1; want <= 3; want++ {
		id, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "1"), "")
		if err != nil {
			t.Fatalf("CreateItem failed: %v", err)
		}
		item, err := inventory.GetItem(ctx, "Beef", id)
		if err != nil {
			t.Fatalf("GetItem failed: %v", err)
		}
		if item.Order != want {
			t.Errorf("Expected order %d, got %d", want, item.Order)
		}
	}
}

func TestInventory_DeductItemWeight(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	itemID, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "10"), "")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	item, err := inventory.DeductItemWeight(ctx, "Beef", itemID, mustDecimal(t, "3"))
	if err != nil {
		t.Fatalf("DeductItemWeight failed: %v", err)
	}
	if !item.Weight.Equal(mustDecimal(t, "7")) {
		t.Errorf("Expected weight 7 after deduction, got %s", item.Weight)
	}
	if !item.TotalWeight.Equal(mustDecimal(t, "10")) {
		t.Errorf("TotalWeight must never change, got %s", item.TotalWeight)
	}
}

func TestInventory_DeductBeyondWeightFails(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	itemID, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "10"), "")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	_, err = inventory.DeductItemWeight(ctx, "Beef", itemID, mustDecimal(t, "15"))
	if !errors.Is(err, core.ErrInsufficientWeight) {
		t.Fatalf("Expected ErrInsufficientWeight, got %v", err)
	}

	item, err := inventory.GetItem(ctx, "Beef", itemID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Weight.Equal(mustDecimal(t, "10")) {
		t.Errorf("Failed deduction must leave weight unchanged, got %s", item.Weight)
	}
}

func TestInventory_WeightBoundsInvariant(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	itemID, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "10"), "")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	// Deduct down to exactly zero, then any further deduction fails.
	for _, amount := range []string{"4", "3.5", "2.5"} {
		if _, err := inventory.DeductItemWeight(ctx, "Beef", itemID, mustDecimal(t, amount)); err != nil {
			t.Fatalf("DeductItemWeight(%s) failed: %v", amount, err)
		}
	}
	item, _ := inventory.GetItem(ctx, "Beef", itemID)
	if !item.Weight.IsZero() {
		t.Fatalf("Expected weight 0, got %s", item.Weight)
	}
	if _, err := inventory.DeductItemWeight(ctx, "Beef", itemID, mustDecimal(t, "0.1")); !errors.Is(err, core.ErrInsufficientWeight) {
		t.Errorf("Expected ErrInsufficientWeight at zero weight, got %v", err)
	}
}

func TestInventory_RestoreCappedAtTotalWeight(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	itemID, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "10"), "")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if _, err := inventory.DeductItemWeight(ctx, "Beef", itemID, mustDecimal(t, "3")); err != nil {
		t.Fatalf("DeductItemWeight failed: %v", err)
	}

	// Restoring more than was deducted must clamp at the original weight.
	if err := inventory.RestoreItemWeight(ctx, "Beef", itemID, mustDecimal(t, "100")); err != nil {
		t.Fatalf("RestoreItemWeight failed: %v", err)
	}
	item, _ := inventory.GetItem(ctx, "Beef", itemID)
	if !item.Weight.Equal(mustDecimal(t, "10")) {
		t.Errorf("Expected weight clamped to 10, got %s", item.Weight)
	}
}

func TestInventory_SoftDeleteAndQRLookup(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, true, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	id1, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "10"), "QR-1")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	id2, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "8"), "QR-2")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	gotID, _, err := inventory.FindItemByQR(ctx, "Beef", "QR-2")
	if err != nil {
		t.Fatalf("FindItemByQR failed: %v", err)
	}
	if gotID != id2 {
		t.Errorf("Expected item %s, got %s", id2, gotID)
	}

	if err := inventory.DeleteItems(ctx, "Beef", []string{id2}); err != nil {
		t.Fatalf("DeleteItems failed: %v", err)
	}

	// The record survives with a deleted tag; lookups skip it.
	item, err := inventory.GetItem(ctx, "Beef", id2)
	if err != nil {
		t.Fatalf("GetItem after delete failed: %v", err)
	}
	if !item.Deleted() {
		t.Error("Expected item tagged deleted")
	}
	if _, _, err := inventory.FindItemByQR(ctx, "Beef", "QR-2"); !errors.Is(err, core.ErrItemNotFound) {
		t.Errorf("Expected deleted item invisible to QR lookup, got %v", err)
	}

	// Deducting from a deleted item is rejected.
	if _, err := inventory.DeductItemWeight(ctx, "Beef", id2, mustDecimal(t, "1")); !errors.Is(err, core.ErrItemDeleted) {
		t.Errorf("Expected ErrItemDeleted, got %v", err)
	}
	_ = id1
}

func TestInventory_Summary(t *testing.T) {
	inventory, _, _, _, ctx := setupLedgerTest(t)

	if err := inventory.CreateProduct(ctx, "Beef", false, false, decimal.Zero); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if err := inventory.CreateProduct(ctx, "Rice", true, false, mustDecimal(t, "25")); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if _, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "5"), mustDecimal(t, "10"), ""); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	deletedID, err := inventory.CreateItem(ctx, "Beef", mustDecimal(t, "4"), mustDecimal(t, "6"), "")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if err := inventory.DeleteItems(ctx, "Beef", []string{deletedID}); err != nil {
		t.Fatalf("DeleteItems failed: %v", err)
	}

	summary, err := inventory.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(summary))
	}
	beef := summary[0]
	if beef.Name != "Beef" {
		t.Fatalf("Expected Beef first, got %s", beef.Name)
	}
	if beef.LiveItems != 1 {
		t.Errorf("Expected 1 live item (deleted excluded), got %d", beef.LiveItems)
	}
	if !beef.TotalWeight.Equal(mustDecimal(t, "10")) {
		t.Errorf("Expected total weight 10, got %s", beef.TotalWeight)
	}
	if !beef.StockValue.Equal(mustDecimal(t, "50")) {
		t.Errorf("Expected stock value 50, got %s", beef.StockValue)
	}
}
