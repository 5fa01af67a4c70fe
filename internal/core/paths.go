package core

import "strings"

// Store layout. Everything lives under these roots; the admin cash balance
// and the session lease are top-level scalars.
const (
	productsPath     = "products"
	clientsPath      = "clients"
	receiptsPath     = "receipts"
	receiptCountPath = "receiptCount"
	balancePath      = "balance"
	leasePath        = "active_user"
)

func productPath(name string) string { return productsPath + "/" + name }

func itemsPath(product string) string { return productPath(product) + "/items" }

func itemPath(product, itemID string) string { return itemsPath(product) + "/" + itemID }

func clientPath(id string) string { return clientsPath + "/" + id }

func receiptPath(id string) string { return receiptsPath + "/" + id }

// validKey rejects names that would break path addressing.
func validKey(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/.#$[]")
}
