package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yearn/vault_catalog/internal/config"
	"github.com/yearn/vault_catalog/internal/domain"
	"github.com/yearn/vault_catalog/internal/infrastructure/storage"
	"github.com/yearn/vault_catalog/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	wallet := flag.String("wallet", "", "also list holdings of this wallet")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	normalizer := usecase.NewNormalizer(zap.NewNop())
	kinds := []domain.PayloadKind{domain.PayloadVaults, domain.PayloadTokens, domain.PayloadRewards}

	for _, chainID := range cfg.Chains {
		fmt.Printf("- Chain %d\n", chainID)
		for _, kind := range kinds {
			snap, err := store.LatestSnapshot(ctx, chainID, kind)
			if err != nil {
				fmt.Printf("  ❌ %s: %v\n", kind, err)
				continue
			}
			if snap == nil {
				fmt.Printf("  ⚠️ %s: no snapshot\n", kind)
				continue
			}

			age := time.Since(snap.FetchedAt).Round(time.Second)
			if kind != domain.PayloadVaults {
				fmt.Printf("  ✅ %s: %d bytes, age %s\n", kind, len(snap.Payload), age)
				continue
			}
			vaults, results, err := normalizer.NormalizeVaults(snap.Payload)
			if err != nil {
				fmt.Printf("  ❌ %s: %v\n", kind, err)
				continue
			}
			degraded := 0
			for _, r := range results {
				if !r.IsValid() {
					degraded++
				}
			}
			fmt.Printf("  ✅ %s: %d records (%d degraded), age %s\n", kind, len(vaults), degraded, age)
		}
	}

	if *wallet == "" {
		return
	}
	holdings, err := store.ListHoldings(ctx, *wallet)
	if err != nil {
		fmt.Printf("Failed to list holdings: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d holdings for %s:\n", len(holdings), *wallet)
	for _, h := range holdings {
		fmt.Printf("- %s (since %s)\n", h.Vault, h.CreatedAt.Format(time.RFC3339))
	}
}
