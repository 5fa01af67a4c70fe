package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"store-ledger/internal/app"
	"store-ledger/internal/config"
	"store-ledger/internal/core"
	"store-ledger/internal/localstore"
	"store-ledger/internal/remote"
	"store-ledger/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	local, err := localstore.Open(cfg.LocalDBPath)
	if err != nil {
		slog.Error("failed to open local storage", "path", cfg.LocalDBPath, "error", err)
		os.Exit(1)
	}
	defer local.Close()

	var base remote.Store
	if cfg.StoreURL != "" {
		base, err = remote.NewREST(cfg.StoreURL, cfg.StoreAuth)
		if err != nil {
			slog.Error("failed to build store client", "error", err)
			os.Exit(1)
		}
		slog.Info("using remote store", "url", cfg.StoreURL)
	} else {
		base = remote.NewMemory()
		slog.Warn("STORE_URL not set, using in-memory store (state is not persisted)")
	}

	buffered := remote.NewBuffered(base)
	store := remote.NewResilient(buffered, remote.RetryPolicy{
		Attempts:   cfg.RetryAttempts,
		ReadDelay:  cfg.ReadDelay,
		WriteDelay: cfg.WriteDelay,
	})

	ledger := core.NewAdminLedger(store)
	inventory := core.NewInventoryService(store, ledger)
	clients := core.NewClientService(store)
	receipts := core.NewReceiptService(store, inventory, clients, ledger)
	sessions := core.NewSessionService(store, local, buffered, cfg.LeaseTTL)
	svc := app.NewApplicationService(sessions, inventory, clients, receipts, ledger)

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				slog.Error("metrics listener failed", "error", err)
			}
		}()
	}

	runREPL(context.Background(), svc)
}

func runREPL(ctx context.Context, svc app.ApplicationService) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Store Ledger REPL")
	fmt.Println("Type 'help' for commands.")
	fmt.Println("-----------------------")

	errExit := fmt.Errorf("exit repl")
	commands := map[string]func(args []string) error{
		"help": func([]string) error {
			fmt.Println(`Commands:
  login <name>                          acquire the session lease
  logout                                flush, release the lease
  retry                                 re-acquire with the cached name
  new-product <name> <static|weighed> <boxWeight>
  add-item <product> <boughtPrice> <weight> [qr]
  stock                                 inventory summary
  new-client <name> <number>
  clients                               list clients with balances
  settle <clientID> <moneyPaid> [product:itemID:weight:sellPrice ...]
  receipt <id>                          show one receipt
  scan <product> <code> [code ...]      resolve QR codes to items
  balance                               admin cash balance
  exit`)
			return nil
		},
		"exit": func([]string) error { return errExit },
		"quit": func([]string) error { return errExit },
		"login": func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: login <name>")
			}
			if err := svc.Login(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Session active for %s.\n", args[0])
			return nil
		},
		"logout": func([]string) error {
			if err := svc.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Session released.")
			return nil
		},
		"retry": func([]string) error {
			if err := svc.RetryActive(ctx); err != nil {
				return err
			}
			name, _ := svc.ActiveUser()
			fmt.Printf("Session active for %s.\n", name)
			return nil
		},
		"new-product": func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("usage: new-product <name> <static|weighed> <boxWeight>")
			}
			boxWeight, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid box weight: %w", err)
			}
			req := app.CreateProductRequest{
				Name:      args[0],
				IsStatic:  args[1] == "static",
				BoxWeight: boxWeight,
			}
			if err := svc.CreateProduct(ctx, req); err != nil {
				return err
			}
			fmt.Printf("Product %s created.\n", args[0])
			return nil
		},
		"add-item": func(args []string) error {
			if len(args) < 3 || len(args) > 4 {
				return fmt.Errorf("usage: add-item <product> <boughtPrice> <weight> [qr]")
			}
			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid bought price: %w", err)
			}
			weight, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid weight: %w", err)
			}
			req := app.AddItemRequest{Product: args[0], BoughtPrice: price, Weight: weight}
			if len(args) == 4 {
				req.QRString = args[3]
			}
			result, err := svc.AddItem(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("Item %s added. Cash balance: %s\n", result.ItemID, result.CashBalance.StringFixed(2))
			return nil
		},
		"stock": func([]string) error {
			result, err := svc.StockSummary(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %-8s %8s %12s %12s\n", "PRODUCT", "KIND", "ITEMS", "WEIGHT", "VALUE")
			for _, p := range result.Products {
				kind := "weighed"
				if p.IsStatic {
					kind = "static"
				}
				fmt.Printf("%-20s %-8s %8d %12s %12s\n",
					p.Name, kind, p.LiveItems, p.TotalWeight.String(), p.StockValue.StringFixed(2))
			}
			return nil
		},
		"new-client": func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: new-client <name> <number>")
			}
			result, err := svc.CreateClient(ctx, app.CreateClientRequest{Name: args[0], Number: args[1]})
			if err != nil {
				return err
			}
			fmt.Printf("Client %s created with ID %s.\n", args[0], result.ClientID)
			return nil
		},
		"clients": func([]string) error {
			result, err := svc.ListClients(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-38s %-20s %-14s %12s\n", "ID", "NAME", "NUMBER", "BALANCE")
			for _, c := range result.Clients {
				fmt.Printf("%-38s %-20s %-14s %12s\n", c.ID, c.Name, c.Number, c.Balance.StringFixed(2))
			}
			return nil
		},
		"settle": func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: settle <clientID> <moneyPaid> [product:itemID:weight:sellPrice ...]")
			}
			req, err := parseSettle(args)
			if err != nil {
				return err
			}
			result, err := svc.Settle(ctx, *req)
			if err != nil {
				return err
			}
			fmt.Printf("Receipt #%d (%s) settled: total %s, bought %s.\n",
				result.Receipt.Number, result.ReceiptID,
				result.Receipt.TotalPrice.StringFixed(2), result.Receipt.TotalBoughtPrice.StringFixed(2))
			for _, sk := range result.Skipped {
				fmt.Printf("  skipped %s/%s (%s): %s\n", sk.Product, sk.ItemID, sk.Weight, sk.Reason)
			}
			return nil
		},
		"receipt": func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: receipt <id>")
			}
			result, err := svc.GetReceipt(ctx, args[0])
			if err != nil {
				return err
			}
			r := result.Receipt
			fmt.Printf("Receipt #%d  client=%s  status=%s  created=%s\n",
				r.Number, r.Client, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Printf("  initial=%s paid=%s total=%s bought=%s\n",
				r.InitialBalance.StringFixed(2), r.MoneyPaid.StringFixed(2),
				r.TotalPrice.StringFixed(2), r.TotalBoughtPrice.StringFixed(2))
			for name, p := range r.Products {
				fmt.Printf("  %s @ %s: %s\n", name, p.SellPrice.String(), p.TotalWeight.String())
			}
			return nil
		},
		"scan": func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: scan <product> <code> [code ...]")
			}
			result, err := svc.LookupItems(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			for _, m := range result.Matches {
				fmt.Printf("  %s -> item %s (weight %s)\n", m.Code, m.ItemID, m.Item.Weight.String())
			}
			for _, miss := range result.Misses {
				fmt.Printf("  %s -> no match\n", miss)
			}
			return nil
		},
		"balance": func([]string) error {
			result, err := svc.CashBalance(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Cash balance: %s\n", result.Balance.StringFixed(2))
			return nil
		},
	}

	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		tokens := strings.Fields(input)
		cmd, exists := commands[strings.ToLower(tokens[0])]
		if !exists {
			fmt.Printf("Unknown command: %s (try 'help')\n", tokens[0])
			continue
		}
		if err := cmd(tokens[1:]); err != nil {
			if err == errExit {
				break
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// parseSettle turns "clientID moneyPaid product:itemID:weight:sellPrice..."
// into a settlement request, grouping lines by product.
func parseSettle(args []string) (*app.SettleRequest, error) {
	moneyPaid, err := decimal.NewFromString(args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid moneyPaid: %w", err)
	}
	req := &app.SettleRequest{ClientID: args[0], MoneyPaid: moneyPaid}

	byProduct := make(map[string]*app.SettleProductRequest)
	var order []string
	for _, spec := range args[2:] {
		parts := strings.Split(spec, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid line %q, want product:itemID:weight:sellPrice", spec)
		}
		weight, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid weight in %q: %w", spec, err)
		}
		sellPrice, err := decimal.NewFromString(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid sellPrice in %q: %w", spec, err)
		}
		p, exists := byProduct[parts[0]]
		if !exists {
			p = &app.SettleProductRequest{Product: parts[0], SellPrice: sellPrice}
			byProduct[parts[0]] = p
			order = append(order, parts[0])
		}
		p.Lines = append(p.Lines, app.SettleLineRequest{ItemID: parts[1], Weight: weight})
	}
	for _, name := range order {
		req.Products = append(req.Products, *byProduct[name])
	}
	return req, nil
}
