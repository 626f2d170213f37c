package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/infrastructure/logger"
	"github.com/vitos/signal_copier/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// import_legacy copies a data.json correlation file into the configured store.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	source := flag.String("from", "data.json", "legacy correlation file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Storage.Driver == "json" && cfg.Storage.DSN == *source {
		log.Fatal("Source and destination are the same file", zap.String("path", *source))
	}

	entries, err := storage.ReadLegacyFile(*source)
	if err != nil {
		log.Fatal("Failed to read legacy file", zap.String("path", *source), zap.Error(err))
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatal("Failed to open store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	n, err := storage.Import(context.Background(), store, entries)
	if err != nil {
		log.Error("Import stopped", zap.Int("imported", n), zap.Error(err))
		os.Exit(1)
	}
	log.Info("Legacy correlations imported",
		zap.Int("messages", len(entries)),
		zap.Int("ids", n),
		zap.String("driver", cfg.Storage.Driver))
}
