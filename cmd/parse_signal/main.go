package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
	"github.com/vitos/signal_copier/internal/usecase"
)

// parse_signal interprets one message offline and, for trade signals, prints
// the sizing table for the given balance. Nothing is sent to the broker.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	text := flag.String("text", "", "message text (read from stdin when empty)")
	replyTo := flag.Int64("reply-to", 0, "message id the command replies to")
	balance := flag.Float64("balance", 1000, "account balance")
	currency := flag.String("currency", "USD", "account currency")
	price := flag.Float64("price", 0, "quote used for market entries")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Printf("Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
		*text = string(data)
	}

	parser := usecase.NewSignalParser(cfg)
	intent, err := parser.Interpret(domain.Message{ID: 1, ReplyToID: *replyTo, Text: *text})
	if err != nil {
		fmt.Printf("Parse failed: %v\n", err)
		os.Exit(2)
	}

	if intent.Command != nil {
		printJSON(intent.Command)
		return
	}

	d := intent.Trade
	if d.Kind == domain.OrderMarket {
		if *price <= 0 {
			fmt.Println("Market entry needs -price")
			os.Exit(2)
		}
		d.Entry = []float64{*price}
	}

	rate := 1.0
	if !d.Tiered {
		rates := usecase.NewRateProvider(cfg.Risk.ReferenceCurrency, cfg.Risk.Rates, nil)
		rate, err = rates.Rate(context.Background(), *currency, cfg.Risk.ReferenceCurrency)
		if err != nil {
			fmt.Printf("No conversion rate: %v\n", err)
			os.Exit(2)
		}
	}

	calc := usecase.NewRiskCalculator(cfg.Tiered)
	sizing, err := calc.Size(d, usecase.AccountSnapshot{Balance: *balance, Currency: *currency, ReferenceRate: rate})
	if err != nil {
		fmt.Printf("Sizing failed: %v\n", err)
		os.Exit(2)
	}

	printJSON(d)
	fmt.Println(usecase.FormatTradeInfo(d, sizing, *balance, *currency))
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
