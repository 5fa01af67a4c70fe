package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"store-ledger/internal/app"
	"store-ledger/internal/core"
	"store-ledger/internal/localstore"
	"store-ledger/internal/remote"
)

func setupAppTest(t *testing.T) (app.ApplicationService, context.Context) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "storeledger-app-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	local, err := localstore.Open(filepath.Join(tempDir, "device.db"))
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	store := remote.NewMemory()
	ledger := core.NewAdminLedger(store)
	inventory := core.NewInventoryService(store, ledger)
	clients := core.NewClientService(store)
	receipts := core.NewReceiptService(store, inventory, clients, ledger)
	sessions := core.NewSessionService(store, local, nil, time.Minute)

	return app.NewApplicationService(sessions, inventory, clients, receipts, ledger), context.Background()
}

func TestApp_MutationsRequireSession(t *testing.T) {
	svc, ctx := setupAppTest(t)

	if err := svc.CreateProduct(ctx, app.CreateProductRequest{Name: "Beef"}); !errors.Is(err, core.ErrNotActive) {
		t.Errorf("CreateProduct without session: expected ErrNotActive, got %v", err)
	}
	if _, err := svc.AddItem(ctx, app.AddItemRequest{Product: "Beef"}); !errors.Is(err, core.ErrNotActive) {
		t.Errorf("AddItem without session: expected ErrNotActive, got %v", err)
	}
	if _, err := svc.Settle(ctx, app.SettleRequest{ClientID: "c1"}); !errors.Is(err, core.ErrNotActive) {
		t.Errorf("Settle without session: expected ErrNotActive, got %v", err)
	}
	if err := svc.DeleteProducts(ctx, []string{"Beef"}); !errors.Is(err, core.ErrNotActive) {
		t.Errorf("DeleteProducts without session: expected ErrNotActive, got %v", err)
	}

	// Reads stay open.
	if _, err := svc.StockSummary(ctx); err != nil {
		t.Errorf("StockSummary without session failed: %v", err)
	}
	if _, err := svc.CashBalance(ctx); err != nil {
		t.Errorf("CashBalance without session failed: %v", err)
	}
}

func TestApp_EndToEndSale(t *testing.T) {
	svc, ctx := setupAppTest(t)

	if err := svc.Login(ctx, "ali"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.CreateProduct(ctx, app.CreateProductRequest{Name: "Beef", IsQrable: true}); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	added, err := svc.AddItem(ctx, app.AddItemRequest{
		Product:     "Beef",
		BoughtPrice: decimal.NewFromInt(5),
		Weight:      decimal.NewFromInt(10),
		QRString:    "QR-1",
	})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if !added.CashBalance.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("Expected cash balance -50 after purchase, got %s", added.CashBalance)
	}

	created, err := svc.CreateClient(ctx, app.CreateClientRequest{Name: "Client A"})
	if err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}

	lookup, err := svc.LookupItems(ctx, "Beef", []string{"QR-1", "QR-missing"})
	if err != nil {
		t.Fatalf("LookupItems failed: %v", err)
	}
	if len(lookup.Matches) != 1 || lookup.Matches[0].ItemID != added.ItemID {
		t.Errorf("Expected QR-1 to match item %s, got %+v", added.ItemID, lookup.Matches)
	}
	if len(lookup.Misses) != 1 || lookup.Misses[0] != "QR-missing" {
		t.Errorf("Expected QR-missing reported, got %v", lookup.Misses)
	}

	settled, err := svc.Settle(ctx, app.SettleRequest{
		ClientID:  created.ClientID,
		MoneyPaid: decimal.NewFromInt(40),
		Products: []app.SettleProductRequest{{
			Product:   "Beef",
			SellPrice: decimal.NewFromInt(20),
			Lines:     []app.SettleLineRequest{{ItemID: added.ItemID, Weight: decimal.NewFromInt(3)}},
		}},
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !settled.Receipt.TotalPrice.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected total price 60, got %s", settled.Receipt.TotalPrice)
	}

	fetched, err := svc.GetReceipt(ctx, settled.ReceiptID)
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if fetched.Receipt.Number != settled.Receipt.Number {
		t.Errorf("Receipt number mismatch: %d vs %d", fetched.Receipt.Number, settled.Receipt.Number)
	}

	balance, err := svc.CashBalance(ctx)
	if err != nil {
		t.Fatalf("CashBalance failed: %v", err)
	}
	if !balance.Balance.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("Expected cash balance -10, got %s", balance.Balance)
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := svc.CreateProduct(ctx, app.CreateProductRequest{Name: "Rice"}); !errors.Is(err, core.ErrNotActive) {
		t.Errorf("Expected mutations gated after logout, got %v", err)
	}
}
