package app

import (
	"context"
)

// ApplicationService is the single interface every UI adapter calls. It
// decouples presentation from the data layer: implementations return
// structured results and typed errors, never user-facing text. Mutating
// operations require the session lease; reads do not.
type ApplicationService interface {
	// Login acquires the single-writer lease for name.
	Login(ctx context.Context, name string) error

	// Logout runs the backup handoff: flush, clear local flag, release lease.
	Logout(ctx context.Context) error

	// RetryActive re-acquires the lease with the device's cached name.
	RetryActive(ctx context.Context) error

	// ActiveUser reports the locally-held session.
	ActiveUser() (string, bool)

	// CreateProduct registers a new catalog product.
	CreateProduct(ctx context.Context, req CreateProductRequest) error

	// AddItem books a purchased lot into a product and debits the cash ledger.
	AddItem(ctx context.Context, req AddItemRequest) (*ItemResult, error)

	// StockSummary returns the read-only inventory snapshot.
	StockSummary(ctx context.Context) (*StockResult, error)

	// DeleteProducts / DeleteItems soft-delete a batch; failures are
	// aggregated and returned, siblings proceed.
	DeleteProducts(ctx context.Context, names []string) error
	DeleteItems(ctx context.Context, product string, itemIDs []string) error

	// CreateClient registers a customer with a zero balance.
	CreateClient(ctx context.Context, req CreateClientRequest) (*ClientResult, error)

	// ListClients returns all customers with their balances.
	ListClients(ctx context.Context) (*ClientListResult, error)

	// Settle runs the receipt settlement engine for one sale.
	Settle(ctx context.Context, req SettleRequest) (*SettleResult, error)

	// CashBalance returns the store's own cash ledger balance.
	CashBalance(ctx context.Context) (*BalanceResult, error)

	// GetReceipt returns one settled receipt by ID.
	GetReceipt(ctx context.Context, id string) (*ReceiptResult, error)

	// LookupItems resolves scanned QR payloads to items within a product.
	LookupItems(ctx context.Context, product string, codes []string) (*QRLookupResult, error)
}
