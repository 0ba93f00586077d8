package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/esgrun/internal/config"
	"github.com/sawpanic/esgrun/internal/persistence"
	"github.com/sawpanic/esgrun/internal/ratings"
	"github.com/sawpanic/esgrun/internal/scrape"
)

// runScrape walks the ratings listing, then processes the raw table and
// writes the processed CSV the analysis consumes.
func runScrape(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	startPage, _ := cmd.Flags().GetInt("start-page")
	endPage, _ := cmd.Flags().GetInt("end-page")
	outDir, _ := cmd.Flags().GetString("out")
	useDB, _ := cmd.Flags().GetBool("db")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if startPage > 0 {
		cfg.Scrape.StartPage = startPage
	}
	if endPage > 0 {
		cfg.Scrape.EndPage = endPage
	}
	if outDir != "" {
		cfg.Scrape.OutputDir = outDir
	}

	log.Info().
		Int("start_page", cfg.Scrape.StartPage).
		Int("end_page", cfg.Scrape.EndPage).
		Str("out", cfg.Scrape.OutputDir).
		Msg("Starting ratings scrape")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	browserCfg := scrape.DefaultBrowserConfig()
	browserCfg.SettleDelay = cfg.SettleDelay()
	browser, err := scrape.NewBrowser(ctx, browserCfg)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer browser.Close()

	scraper := scrape.New(browser, scrape.Config{
		BaseURL:   cfg.Scrape.BaseURL,
		StartPage: cfg.Scrape.StartPage,
		EndPage:   cfg.Scrape.EndPage,
		SaveEvery: cfg.Scrape.SaveEvery,
		OutputDir: cfg.Scrape.OutputDir,
		RPS:       cfg.Scrape.RPS,
	})

	raw, err := scraper.Run(ctx)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	processed := ratings.NewProcessor(cfg.Analysis.Exchanges).Process(raw)
	if err := os.MkdirAll(filepath.Dir(cfg.Analysis.RatingsCSV), 0755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}
	if err := ratings.SaveCSV(cfg.Analysis.RatingsCSV, processed.Records); err != nil {
		return fmt.Errorf("saving processed ratings: %w", err)
	}

	fmt.Printf("✅ Scrape completed: %d companies, %d after cleanup\n", len(raw), len(processed.Records))
	fmt.Printf("📄 Raw CSV: %s\n", filepath.Join(cfg.Scrape.OutputDir, "esg_ratings_final.csv"))
	fmt.Printf("📄 Processed CSV: %s\n", cfg.Analysis.RatingsCSV)
	for _, bucket := range ratings.Distribution(processed.Records) {
		fmt.Printf("   %-12s %4d companies, mean score %.2f\n", bucket.Bucket, bucket.Count, bucket.MeanScore)
	}

	if useDB {
		if err := persistRatings(ctx, cfg, processed.Records); err != nil {
			return err
		}
	}

	return nil
}

// persistRatings upserts the processed table into Postgres.
func persistRatings(ctx context.Context, cfg config.Config, records []ratings.Record) error {
	manager, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	rows := persistence.FromRecords(records, time.Now().UTC())
	if err := manager.Repository().Ratings.Upsert(ctx, rows); err != nil {
		return fmt.Errorf("upserting ratings: %w", err)
	}

	count, err := manager.Repository().Ratings.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting ratings: %w", err)
	}
	fmt.Printf("💾 Ratings upserted: %d rows in Postgres\n", count)
	return nil
}
