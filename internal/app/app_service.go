package app

import (
	"context"
	"errors"
	"fmt"

	"store-ledger/internal/core"
)

// Ensure appService implements ApplicationService.
var _ ApplicationService = (*appService)(nil)

type appService struct {
	sessions  *core.SessionService
	inventory core.InventoryService
	clients   core.ClientService
	receipts  core.ReceiptService
	ledger    *core.AdminLedger
}

// NewApplicationService wires the facade over the core services.
func NewApplicationService(
	sessions *core.SessionService,
	inventory core.InventoryService,
	clients core.ClientService,
	receipts core.ReceiptService,
	ledger *core.AdminLedger,
) ApplicationService {
	return &appService{
		sessions:  sessions,
		inventory: inventory,
		clients:   clients,
		receipts:  receipts,
		ledger:    ledger,
	}
}

// requireActive gates every mutation behind the session lease.
func (s *appService) requireActive() error {
	if _, ok := s.sessions.Active(); !ok {
		return core.ErrNotActive
	}
	return nil
}

func (s *appService) Login(ctx context.Context, name string) error {
	return s.sessions.Login(ctx, name)
}

func (s *appService) Logout(ctx context.Context) error {
	return s.sessions.Backup(ctx)
}

func (s *appService) RetryActive(ctx context.Context) error {
	return s.sessions.RetryActive(ctx)
}

func (s *appService) ActiveUser() (string, bool) {
	return s.sessions.Active()
}

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	return s.inventory.CreateProduct(ctx, req.Name, req.IsStatic, req.IsQrable, req.BoxWeight)
}

func (s *appService) AddItem(ctx context.Context, req AddItemRequest) (*ItemResult, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	itemID, err := s.inventory.CreateItem(ctx, req.Product, req.BoughtPrice, req.Weight, req.QRString)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("item %s created: %w", itemID, err)
	}
	return &ItemResult{ItemID: itemID, CashBalance: balance}, nil
}

func (s *appService) StockSummary(ctx context.Context) (*StockResult, error) {
	products, err := s.inventory.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Products: products}, nil
}

func (s *appService) DeleteProducts(ctx context.Context, names []string) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	return s.inventory.DeleteProducts(ctx, names)
}

func (s *appService) DeleteItems(ctx context.Context, product string, itemIDs []string) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	return s.inventory.DeleteItems(ctx, product, itemIDs)
}

func (s *appService) CreateClient(ctx context.Context, req CreateClientRequest) (*ClientResult, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	id, err := s.clients.CreateClient(ctx, req.Name, req.Number)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ClientResult{ClientID: id, Client: client}, nil
}

func (s *appService) ListClients(ctx context.Context) (*ClientListResult, error) {
	clients, err := s.clients.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	return &ClientListResult{Clients: clients}, nil
}

func (s *appService) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	coreReq := core.SettleRequest{
		ClientID:  req.ClientID,
		MoneyPaid: req.MoneyPaid,
	}
	for _, p := range req.Products {
		cp := core.ProductRequest{Name: p.Product, SellPrice: p.SellPrice}
		for _, l := range p.Lines {
			cp.Lines = append(cp.Lines, core.LineRequest{ItemID: l.ItemID, Weight: l.Weight})
		}
		coreReq.Products = append(coreReq.Products, cp)
	}
	outcome, err := s.receipts.Settle(ctx, coreReq)
	if err != nil {
		return nil, err
	}
	return &SettleResult{ReceiptID: outcome.ReceiptID, Receipt: outcome.Receipt, Skipped: outcome.Skipped}, nil
}

func (s *appService) CashBalance(ctx context.Context) (*BalanceResult, error) {
	balance, err := s.ledger.Balance(ctx)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{Balance: balance}, nil
}

func (s *appService) GetReceipt(ctx context.Context, id string) (*ReceiptResult, error) {
	receipt, err := s.receipts.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReceiptResult{ReceiptID: id, Receipt: receipt}, nil
}

func (s *appService) LookupItems(ctx context.Context, product string, codes []string) (*QRLookupResult, error) {
	result := &QRLookupResult{}
	for _, code := range codes {
		itemID, item, err := s.inventory.FindItemByQR(ctx, product, code)
		if errors.Is(err, core.ErrItemNotFound) {
			result.Misses = append(result.Misses, code)
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Matches = append(result.Matches, QRMatch{Code: code, ItemID: itemID, Item: *item})
	}
	return result, nil
}
