package app

import "github.com/shopspring/decimal"

// CreateProductRequest registers a catalog product.
type CreateProductRequest struct {
	Name      string
	IsStatic  bool
	IsQrable  bool
	BoxWeight decimal.Decimal
}

// AddItemRequest books a purchased lot into a product.
type AddItemRequest struct {
	Product     string
	BoughtPrice decimal.Decimal
	Weight      decimal.Decimal
	QRString    string
}

// CreateClientRequest registers a customer.
type CreateClientRequest struct {
	Name   string
	Number string
}

// SettleLineRequest asks for weight from one item at the product's sell price.
type SettleLineRequest struct {
	ItemID string
	Weight decimal.Decimal
}

// SettleProductRequest is one product on a sale.
type SettleProductRequest struct {
	Product   string
	SellPrice decimal.Decimal
	Lines     []SettleLineRequest
}

// SettleRequest settles a sale for a client. An empty product list is a
// balance-adjustment-only receipt.
type SettleRequest struct {
	ClientID  string
	MoneyPaid decimal.Decimal
	Products  []SettleProductRequest
}
