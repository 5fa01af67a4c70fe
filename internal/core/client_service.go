package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"store-ledger/internal/remote"
)

// ClientService manages customer records. Balances are only ever rewritten
// by receipt settlement; inventory operations never touch a client.
type ClientService interface {
	// CreateClient registers a customer with a zero balance and no
	// receipts. Returns the allocated client ID.
	CreateClient(ctx context.Context, name, number string) (string, error)
	GetClient(ctx context.Context, id string) (*Client, error)
	ListClients(ctx context.Context) ([]ClientRecord, error)
	// UpdateBalance overwrites the client's balance with an absolute value.
	// Callers compute the new balance themselves; the single-writer lease
	// is what keeps two computations from racing.
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	// LinkReceipt records a receipt under the client for reverse lookup.
	LinkReceipt(ctx context.Context, clientID, receiptID string) error
}

// ClientRecord pairs a client with its store key.
type ClientRecord struct {
	ID string
	Client
}

type clientService struct {
	store remote.Store
}

func NewClientService(store remote.Store) ClientService {
	return &clientService{store: store}
}

func (s *clientService) CreateClient(ctx context.Context, name, number string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("client name: %w", ErrInvalidName)
	}
	client := Client{Name: name, Number: number, Balance: decimal.Zero}
	id, err := s.store.Push(ctx, clientsPath, "", client)
	if err != nil {
		return "", wrapRemote("push", clientsPath, err)
	}
	if id == "" {
		return "", &CreationError{Path: clientsPath}
	}
	return id, nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (*Client, error) {
	raw, err := s.store.Get(ctx, clientPath(id))
	if err != nil {
		return nil, wrapRemote("get", clientPath(id), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("client %s: %w", id, ErrClientNotFound)
	}
	var client Client
	if err := json.Unmarshal(raw, &client); err != nil {
		return nil, fmt.Errorf("failed to decode client %s: %w", id, err)
	}
	return &client, nil
}

func (s *clientService) ListClients(ctx context.Context) ([]ClientRecord, error) {
	raw, err := s.store.Get(ctx, clientsPath)
	if err != nil {
		return nil, wrapRemote("get", clientsPath, err)
	}
	if raw == nil {
		return nil, nil
	}
	var clients map[string]Client
	if err := json.Unmarshal(raw, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	records := make([]ClientRecord, 0, len(clients))
	for id, client := range clients {
		records = append(records, ClientRecord{ID: id, Client: client})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

func (s *clientService) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	if err := s.store.Update(ctx, clientPath(id), map[string]any{"balance": balance}); err != nil {
		return wrapRemote("update", clientPath(id), err)
	}
	return nil
}

func (s *clientService) LinkReceipt(ctx context.Context, clientID, receiptID string) error {
	path := clientPath(clientID) + "/receipts"
	if err := s.store.Update(ctx, path, map[string]any{receiptID: true}); err != nil {
		return wrapRemote("update", path, err)
	}
	return nil
}
