package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/infrastructure/storage"
)

// debug_db prints every correlation in the configured store.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	messageID := flag.Int64("message", 0, "only show this message id")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		fmt.Printf("Failed to open %s store: %v\n", cfg.Storage.Driver, err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *messageID != 0 {
		ids, err := store.Lookup(ctx, *messageID)
		if err != nil {
			fmt.Printf("❌ Message %d: %v\n", *messageID, err)
			os.Exit(1)
		}
		fmt.Printf("✅ Message %d: %v\n", *messageID, ids)
		return
	}

	all, err := store.List(ctx)
	if err != nil {
		fmt.Printf("Failed to list correlations: %v\n", err)
		os.Exit(1)
	}

	keys := make([]int64, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	fmt.Printf("Found %d messages in %s store:\n", len(keys), cfg.Storage.Driver)
	for _, k := range keys {
		fmt.Printf("- Message %d: %d ids %v\n", k, len(all[k]), all[k])
	}
}
