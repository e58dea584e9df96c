package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yearn/vault_catalog/internal/config"
	"github.com/yearn/vault_catalog/internal/infrastructure/indexer"
	"github.com/yearn/vault_catalog/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("v", false, "log every schema mismatch")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := zap.NewNop()
	if *verbose {
		log, _ = zap.NewDevelopment()
	}

	client, err := indexer.NewClient(cfg.Indexer.BaseURI, cfg.IndexerTimeout())
	if err != nil {
		fmt.Printf("Failed to init indexer client: %v\n", err)
		os.Exit(1)
	}
	normalizer := usecase.NewNormalizer(log)
	ctx := context.Background()

	fmt.Printf("Testing indexer at %s...\n", cfg.Indexer.BaseURI)

	for _, chainID := range cfg.Chains {
		payload, err := client.FetchVaults(ctx, chainID)
		if err != nil {
			fmt.Printf("❌ Chain %d: failed to fetch vaults: %v\n", chainID, err)
			continue
		}

		vaults, results, err := normalizer.NormalizeVaults(payload)
		if err != nil {
			fmt.Printf("❌ Chain %d: %v\n", chainID, err)
			continue
		}

		degraded := 0
		for _, r := range results {
			if !r.IsValid() {
				degraded++
			}
		}
		eligible := usecase.FilterEligible(vaults, nil)

		fmt.Printf("✅ Chain %d: %d vaults, %d degraded, %d eligible\n", chainID, len(vaults), degraded, len(eligible))
	}
}
