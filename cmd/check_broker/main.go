package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/infrastructure/exchange"
	"github.com/vitos/signal_copier/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	symbol := flag.String("symbol", "XAUUSD", "symbol to quote")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.MetaApi.Token == "" || cfg.MetaApi.AccountID == "" {
		fmt.Println("API_KEY and ACCOUNT_ID are required")
		os.Exit(1)
	}

	fmt.Printf("Testing MetaApi Interaction...\n")
	fmt.Printf("Account: %s\n", cfg.MetaApi.AccountID)
	fmt.Printf("Client API: %s\n", cfg.MetaApi.ClientURL)

	session := exchange.NewMetaApiSession(cfg.MetaApi, zap.NewNop())
	ctx := context.Background()

	// 2. Connect
	if err := session.Connect(ctx); err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Connected and synchronised")

	// 3. Account
	acct, err := session.GetAccountInformation(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get account information: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Account: Broker=%s, Server=%s, Balance=%.2f %s\n", acct.Broker, acct.Server, acct.Balance, acct.Currency)

	// 4. Quote, using the broker's symbol naming
	brokerSymbol := usecase.NewSymbolMapper(cfg.Brokers).BrokerSymbol(acct, usecase.NormalizeSymbol(*symbol))
	q, err := session.GetSymbolPrice(ctx, brokerSymbol)
	if err != nil {
		fmt.Printf("❌ Failed to get price for %s: %v\n", brokerSymbol, err)
	} else {
		fmt.Printf("✅ Price (%s): Bid=%v Ask=%v Spread=%v\n", brokerSymbol, q.Bid, q.Ask, q.Spread())
	}

	// 5. Positions
	positions, err := session.GetPositions(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get positions: %v\n", err)
		return
	}
	fmt.Printf("✅ %d open positions\n", len(positions))
	for _, p := range positions {
		fmt.Printf("- %s %s %s Volume=%.2f Open=%v SL=%v TP=%v PnL=%.2f\n",
			p.ID, p.Direction(), p.Symbol, p.Volume, p.OpenPrice, p.StopLoss, p.TakeProfit, p.Profit)
	}
}
