package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yearn/vault_catalog/internal/config"
	"github.com/yearn/vault_catalog/internal/infrastructure/indexer"
	"github.com/yearn/vault_catalog/internal/infrastructure/logger"
	"github.com/yearn/vault_catalog/internal/infrastructure/storage"
	"github.com/yearn/vault_catalog/internal/usecase"
	"github.com/yearn/vault_catalog/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Indexer
	client, err := indexer.NewClient(cfg.Indexer.BaseURI, cfg.IndexerTimeout())
	if err != nil {
		log.Fatal("Failed to init indexer client", zap.Error(err))
	}

	// 5. Init Service
	catalog := usecase.NewCatalogService(
		client,
		store,
		store,
		usecase.NewNormalizer(log),
		usecase.NewPriceResolver(log),
		usecase.CatalogOptions{
			Chains:     cfg.Chains,
			Workers:    cfg.Polling.Workers,
			Categories: cfg.Catalog.Categories,
			Partners:   cfg.Catalog.Partners,
		},
		log,
	)
	defer catalog.Close()

	hub := web.NewHub(log)
	catalog.OnRefresh(hub.Broadcast)

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Refresh Loop
	go func() {
		ticker := time.NewTicker(cfg.RefreshInterval())
		defer ticker.Stop()

		for {
			ctx, cancel := context.WithTimeout(appCtx, cfg.RefreshInterval())
			if err := catalog.Refresh(ctx); err != nil {
				log.Error("Refresh incomplete", zap.Error(err))
			}
			cancel()

			select {
			case <-ticker.C:
				continue
			case <-appCtx.Done():
				return
			}
		}
	}()

	// 7. Start Server
	server := web.NewServer(cfg.Server.Port, catalog, hub, cfg.DefaultChainID, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-appCtx.Done()

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Shutdown failed", zap.Error(err))
	}
}
