package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/infrastructure/exchange"
	"github.com/vitos/signal_copier/internal/infrastructure/logger"
	"github.com/vitos/signal_copier/internal/infrastructure/storage"
	"github.com/vitos/signal_copier/internal/infrastructure/telegram"
	"github.com/vitos/signal_copier/internal/usecase"
	"github.com/vitos/signal_copier/internal/web"
	"go.uber.org/zap"
)

const workerQueueSize = 64

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateService(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatal("Failed to init correlation store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Init Broker Session and Worker
	session := exchange.NewMetaApiSession(cfg.MetaApi, log.Named("metaapi"))
	worker := usecase.NewWorker(workerQueueSize, log)
	worker.Start(ctx)

	// 5. Init Service
	svc := usecase.NewSignalService(cfg, session, store, worker, log)
	hub := web.NewEventHub(log.Named("events"))
	svc.AddPublisher(hub)
	go hub.Run(ctx)

	// Connect ahead of the first signal.
	if err := worker.Submit("connect", func(ctx context.Context) {
		if err := session.Connect(ctx); err != nil {
			log.Warn("Initial broker connection failed, will retry on next request", zap.Error(err))
		}
	}); err != nil {
		log.Error("Failed to schedule initial connection", zap.Error(err))
	}

	// 6. Init Telegram
	bot, err := telegram.NewBot(cfg.Telegram, svc, log.Named("telegram"))
	if err != nil {
		log.Fatal("Failed to init telegram bot", zap.Error(err))
	}

	// 7. Init Web Server
	var webhook http.Handler
	if cfg.Telegram.WebhookURL != "" {
		webhook = bot
	}
	server := web.NewServer(cfg.Server.Port, svc, hub, webhook, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := bot.Start(ctx); err != nil {
			log.Error("Telegram bot stopped", zap.Error(err))
			stop()
		}
	}()

	log.Info("Signal copier started",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("webhook", webhook != nil),
		zap.String("level", cfg.Logging.Level))

	// 8. Wait for Shutdown
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	worker.Stop()
}
