package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"store-ledger/internal/remote"
)

// InventoryService manages the product/item catalog and item weight levels.
// Buying an item into stock books the purchase cost against the admin cash
// ledger immediately; weights only ever leave through receipt settlement.
type InventoryService interface {
	// CreateProduct registers a new product keyed by its unique name.
	CreateProduct(ctx context.Context, name string, isStatic, isQrable bool, boxWeight decimal.Decimal) error
	GetProduct(ctx context.Context, name string) (*Product, error)
	// CreateItem appends a purchased lot to a product and decreases the
	// admin balance by boughtPrice × weight. Returns the allocated item ID.
	CreateItem(ctx context.Context, product string, boughtPrice, weight decimal.Decimal, qrString string) (string, error)
	GetItem(ctx context.Context, product, itemID string) (*Item, error)
	// DeductItemWeight removes amount from the item's weight with a
	// conditional write. ErrInsufficientWeight when amount exceeds the
	// current weight; the weight is left untouched in that case. Returns
	// the item as it stands after the deduction.
	DeductItemWeight(ctx context.Context, product, itemID string, amount decimal.Decimal) (*Item, error)
	// RestoreItemWeight re-credits amount, capped at the item's original
	// TotalWeight. Used by settlement compensation.
	RestoreItemWeight(ctx context.Context, product, itemID string, amount decimal.Decimal) error
	// DeleteProducts / DeleteItems soft-delete a batch. Each entry is
	// independent; failures are aggregated, never swallowed.
	DeleteProducts(ctx context.Context, names []string) error
	DeleteItems(ctx context.Context, product string, itemIDs []string) error
	// FindItemByQR looks up a live item by its QR payload within a product.
	FindItemByQR(ctx context.Context, product, qrString string) (string, *Item, error)
	// Summary builds the read-only stock snapshot consumed by reports.
	Summary(ctx context.Context) ([]ProductSummary, error)
}

type inventoryService struct {
	store  remote.Store
	ledger *AdminLedger
}

func NewInventoryService(store remote.Store, ledger *AdminLedger) InventoryService {
	return &inventoryService{store: store, ledger: ledger}
}

func (s *inventoryService) CreateProduct(ctx context.Context, name string, isStatic, isQrable bool, boxWeight decimal.Decimal) error {
	if !validKey(name) {
		return fmt.Errorf("product name %q: %w", name, ErrInvalidName)
	}
	if boxWeight.IsNegative() {
		return fmt.Errorf("box weight cannot be negative, got %s", boxWeight)
	}

	existing, err := s.store.Get(ctx, productPath(name))
	if err != nil {
		return wrapRemote("get", productPath(name), err)
	}
	if existing != nil {
		return fmt.Errorf("product %q: %w", name, ErrProductExists)
	}

	product := Product{Name: name, IsStatic: isStatic, IsQrable: isQrable, BoxWeight: boxWeight}
	key, err := s.store.Push(ctx, productsPath, name, product)
	if err != nil {
		return wrapRemote("push", productPath(name), err)
	}
	if key == "" {
		return &CreationError{Path: productPath(name)}
	}
	return nil
}

func (s *inventoryService) GetProduct(ctx context.Context, name string) (*Product, error) {
	raw, err := s.store.Get(ctx, productPath(name))
	if err != nil {
		return nil, wrapRemote("get", productPath(name), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("product %q: %w", name, ErrProductNotFound)
	}
	var product Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, fmt.Errorf("failed to decode product %q: %w", name, err)
	}
	return &product, nil
}

func (s *inventoryService) CreateItem(ctx context.Context, productName string, boughtPrice, weight decimal.Decimal, qrString string) (string, error) {
	if weight.IsNegative() || weight.IsZero() {
		return "", fmt.Errorf("item weight must be positive, got %s", weight)
	}
	if boughtPrice.IsNegative() {
		return "", fmt.Errorf("bought price cannot be negative, got %s", boughtPrice)
	}

	product, err := s.GetProduct(ctx, productName)
	if err != nil {
		return "", err
	}

	item := Item{
		BoughtPrice: boughtPrice,
		Weight:      weight,
		TotalWeight: weight,
		QRString:    qrString,
		Order:       len(product.Items) + 1,
	}
	itemID, err := s.store.Push(ctx, itemsPath(productName), "", item)
	if err != nil {
		return "", wrapRemote("push", itemsPath(productName), err)
	}
	if itemID == "" {
		return "", &CreationError{Path: itemsPath(productName)}
	}

	// Purchase cost is booked as a cash outflow the moment stock arrives.
	cost := boughtPrice.Mul(weight)
	if _, err := s.ledger.Adjust(ctx, cost.Neg()); err != nil {
		return itemID, fmt.Errorf("item %s created but purchase not booked: %w", itemID, err)
	}
	return itemID, nil
}

func (s *inventoryService) GetItem(ctx context.Context, productName, itemID string) (*Item, error) {
	raw, err := s.store.Get(ctx, itemPath(productName, itemID))
	if err != nil {
		return nil, wrapRemote("get", itemPath(productName, itemID), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("item %s/%s: %w", productName, itemID, ErrItemNotFound)
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item %s/%s: %w", productName, itemID, err)
	}
	return &item, nil
}

func (s *inventoryService) DeductItemWeight(ctx context.Context, productName, itemID string, amount decimal.Decimal) (*Item, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, fmt.Errorf("deduction must be positive, got %s", amount)
	}

	weightPath := itemPath(productName, itemID) + "/weight"
	for attempt := 0; attempt < casAttempts; attempt++ {
		item, err := s.GetItem(ctx, productName, itemID)
		if err != nil {
			return nil, err
		}
		if item.Deleted() {
			return nil, fmt.Errorf("item %s/%s: %w", productName, itemID, ErrItemDeleted)
		}
		if amount.GreaterThan(item.Weight) {
			return nil, fmt.Errorf("item %s/%s has %s, requested %s: %w",
				productName, itemID, item.Weight, amount, ErrInsufficientWeight)
		}

		next := item.Weight.Sub(amount)
		ok, err := s.store.Swap(ctx, weightPath, item.Weight, next)
		if err != nil {
			return nil, wrapRemote("swap", weightPath, err)
		}
		if ok {
			item.Weight = next
			return item, nil
		}
	}
	return nil, fmt.Errorf("failed to deduct from %s/%s: contention on %s", productName, itemID, weightPath)
}

func (s *inventoryService) RestoreItemWeight(ctx context.Context, productName, itemID string, amount decimal.Decimal) error {
	weightPath := itemPath(productName, itemID) + "/weight"
	for attempt := 0; attempt < casAttempts; attempt++ {
		item, err := s.GetItem(ctx, productName, itemID)
		if err != nil {
			return err
		}
		next := item.Weight.Add(amount)
		if next.GreaterThan(item.TotalWeight) {
			next = item.TotalWeight
		}
		ok, err := s.store.Swap(ctx, weightPath, item.Weight, next)
		if err != nil {
			return wrapRemote("swap", weightPath, err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("failed to restore %s/%s: contention on %s", productName, itemID, weightPath)
}

func (s *inventoryService) DeleteProducts(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if err := s.store.Update(ctx, productPath(name), map[string]any{"status": StatusDeleted}); err != nil {
			errs = append(errs, wrapRemote("update", productPath(name), err))
		}
	}
	return errors.Join(errs...)
}

func (s *inventoryService) DeleteItems(ctx context.Context, productName string, itemIDs []string) error {
	var errs []error
	for _, id := range itemIDs {
		if err := s.store.Update(ctx, itemPath(productName, id), map[string]any{"status": StatusDeleted}); err != nil {
			errs = append(errs, wrapRemote("update", itemPath(productName, id), err))
		}
	}
	return errors.Join(errs...)
}

func (s *inventoryService) FindItemByQR(ctx context.Context, productName, qrString string) (string, *Item, error) {
	product, err := s.GetProduct(ctx, productName)
	if err != nil {
		return "", nil, err
	}
	for id, item := range product.Items {
		if item.Deleted() || item.QRString == "" {
			continue
		}
		if item.QRString == qrString {
			return id, &item, nil
		}
	}
	return "", nil, fmt.Errorf("no item with QR %q in product %q: %w", qrString, productName, ErrItemNotFound)
}

func (s *inventoryService) Summary(ctx context.Context) ([]ProductSummary, error) {
	raw, err := s.store.Get(ctx, productsPath)
	if err != nil {
		return nil, wrapRemote("get", productsPath, err)
	}
	if raw == nil {
		return nil, nil
	}
	var products map[string]Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	var summaries []ProductSummary
	for name, product := range products {
		if product.Status == StatusDeleted {
			continue
		}
		sum := ProductSummary{Name: name, IsStatic: product.IsStatic, BoxWeight: product.BoxWeight}
		for _, item := range product.Items {
			if item.Deleted() {
				continue
			}
			sum.LiveItems++
			sum.TotalWeight = sum.TotalWeight.Add(item.Weight)
			sum.StockValue = sum.StockValue.Add(item.Weight.Mul(item.BoughtPrice))
		}
		summaries = append(summaries, sum)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}
