package app

import (
	"github.com/shopspring/decimal"

	"store-ledger/internal/core"
)

// ItemResult is returned by AddItem.
type ItemResult struct {
	ItemID      string
	CashBalance decimal.Decimal
}

// StockResult is the read-only inventory snapshot for list and report views.
type StockResult struct {
	Products []core.ProductSummary
}

// ClientResult is returned by CreateClient.
type ClientResult struct {
	ClientID string
	Client   *core.Client
}

// ClientListResult is returned by ListClients.
type ClientListResult struct {
	Clients []core.ClientRecord
}

// SettleResult is returned by Settle.
type SettleResult struct {
	ReceiptID string
	Receipt   *core.Receipt
	Skipped   []core.SkippedLine
}

// BalanceResult is returned by CashBalance.
type BalanceResult struct {
	Balance decimal.Decimal
}

// ReceiptResult is returned by GetReceipt.
type ReceiptResult struct {
	ReceiptID string
	Receipt   *core.Receipt
}

// QRMatch pairs a scanned code with the item it resolved to.
type QRMatch struct {
	Code   string
	ItemID string
	Item   core.Item
}

// QRLookupResult is returned by LookupItems. Misses are codes that resolved
// to no live item.
type QRLookupResult struct {
	Matches []QRMatch
	Misses  []string
}
