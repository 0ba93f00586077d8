package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/esgrun/internal/cache"
	"github.com/sawpanic/esgrun/internal/config"
	"github.com/sawpanic/esgrun/internal/prices"
	"github.com/sawpanic/esgrun/internal/ratings"
)

// runPrices downloads the configured close window for every long and short
// candidate named by the processed ratings CSV.
func runPrices(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	ratingsPath, _ := cmd.Flags().GetString("ratings")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	refresh, _ := cmd.Flags().GetBool("refresh")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if ratingsPath != "" {
		cfg.Analysis.RatingsCSV = ratingsPath
	}
	if start != "" {
		cfg.Prices.Start = start
	}
	if end != "" {
		cfg.Prices.End = end
	}

	startDate, endDate, err := cfg.PriceWindow()
	if err != nil {
		return err
	}
	if cfg.Prices.APIKey == "" {
		return fmt.Errorf("DATABENTO_API_KEY is not set")
	}

	records, err := ratings.LoadCSV(cfg.Analysis.RatingsCSV)
	if err != nil {
		return fmt.Errorf("loading ratings: %w", err)
	}
	symbols := candidateSymbols(cfg, records)
	if len(symbols) == 0 {
		return fmt.Errorf("no long or short candidates in %s", cfg.Analysis.RatingsCSV)
	}

	log.Info().
		Int("symbols", len(symbols)).
		Str("start", cfg.Prices.Start).
		Str("end", cfg.Prices.End).
		Msg("Starting price download")

	store := prices.NewStore(cfg.Prices.CacheDir, prices.NewClient(clientConfig(cfg)), cache.NewAuto(), cfg.WarmTTL())
	if refresh {
		if err := store.Invalidate(cfg.Prices.CacheName); err != nil {
			return fmt.Errorf("invalidating cache: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	rows, err := store.Load(ctx, cfg.Prices.CacheName, prices.FetchRequest{
		Symbols: symbols,
		Start:   startDate,
		End:     endDate,
	})
	if err != nil {
		return fmt.Errorf("loading prices: %w", err)
	}

	fmt.Printf("✅ Prices loaded: %d rows for %d candidates\n", len(rows), len(symbols))
	fmt.Printf("📄 CSV cache: %s\n", filepath.Join(cfg.Prices.CacheDir, cfg.Prices.CacheName+".csv"))

	return nil
}
