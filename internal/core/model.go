package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusDeleted marks a soft-deleted product or item. Records are tagged,
// never physically removed, so receipts keep resolving.
const StatusDeleted = "deleted"

// ReceiptStatusActive and ReceiptStatusVoid are the receipt lifecycle states.
// A receipt is written active; only settlement compensation voids it.
const (
	ReceiptStatusActive = "active"
	ReceiptStatusVoid   = "void"
)

// Product is a catalog entry keyed by its unique name. Static products are
// counted in discrete boxes of BoxWeight; non-static ones are tracked by
// continuous weight.
type Product struct {
	Name      string          `json:"name"`
	IsStatic  bool            `json:"isStatic"`
	IsQrable  bool            `json:"isQrable"`
	BoxWeight decimal.Decimal `json:"boxWeight"`
	Items     map[string]Item `json:"items,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// Item is a purchased lot inside a product. Weight only ever decreases, via
// settlement; TotalWeight is the weight at creation and never changes.
// Invariant: 0 <= Weight <= TotalWeight.
type Item struct {
	BoughtPrice decimal.Decimal `json:"boughtPrice"`
	Weight      decimal.Decimal `json:"weight"`
	TotalWeight decimal.Decimal `json:"totalWeight"`
	QRString    string          `json:"qrString,omitempty"`
	Order       int             `json:"order"`
	Status      string          `json:"status,omitempty"`
}

// Deleted reports whether the item has been soft-deleted.
func (i Item) Deleted() bool { return i.Status == StatusDeleted }

// Client is a customer ledger entry. Balance is signed: positive means the
// client owes the store. Only receipt settlement mutates it.
type Client struct {
	Name     string          `json:"name"`
	Number   string          `json:"number"`
	Balance  decimal.Decimal `json:"balance"`
	Receipts map[string]bool `json:"receipts,omitempty"`
}

// Receipt is the immutable record of one settlement.
type Receipt struct {
	Number           int                       `json:"Rnumber"`
	Client           string                    `json:"client"`
	InitialBalance   decimal.Decimal           `json:"initialBalance"`
	MoneyPaid        decimal.Decimal           `json:"moneyPaid"`
	Products         map[string]ReceiptProduct `json:"products"`
	TotalPrice       decimal.Decimal           `json:"totalPrice"`
	TotalBoughtPrice decimal.Decimal           `json:"totalBoughtPrice"`
	CreatedAt        time.Time                 `json:"createdAt"`
	Status           string                    `json:"status"`
}

// ReceiptProduct is one product line on a receipt. Items maps item ID to the
// weight actually deducted from it; TotalWeight is the realized sum, not the
// requested one.
type ReceiptProduct struct {
	SellPrice   decimal.Decimal            `json:"sellPrice"`
	TotalWeight decimal.Decimal            `json:"totalWeight"`
	Items       map[string]decimal.Decimal `json:"items"`
}

// Lease is the single-writer session lock: whoever holds an unexpired lease
// is the only user allowed to mutate the store.
type Lease struct {
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the lease has lapsed at the given instant.
func (l Lease) Expired(now time.Time) bool { return !now.Before(l.ExpiresAt) }

// ProductSummary is the read-only stock snapshot handed to report surfaces.
type ProductSummary struct {
	Name        string
	IsStatic    bool
	BoxWeight   decimal.Decimal
	LiveItems   int
	TotalWeight decimal.Decimal
	StockValue  decimal.Decimal
}
