package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/esgrun/internal/cache"
	"github.com/sawpanic/esgrun/internal/config"
	"github.com/sawpanic/esgrun/internal/db"
	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/persistence"
	"github.com/sawpanic/esgrun/internal/pipeline"
	"github.com/sawpanic/esgrun/internal/prices"
	"github.com/sawpanic/esgrun/internal/ratings"
	"github.com/sawpanic/esgrun/internal/report"
)

// runSettings is one invocation's pipeline configuration after flag
// overrides.
type runSettings struct {
	cfg        config.Config
	pricesPath string // explicit price CSV, skips the Databento path
	topN       int
	useDB      bool
}

// loadRunSettings merges the config file with the shared run flags.
func loadRunSettings(cmd *cobra.Command) (runSettings, error) {
	configPath, _ := cmd.Flags().GetString("config")
	ratingsPath, _ := cmd.Flags().GetString("ratings")
	pricesPath, _ := cmd.Flags().GetString("prices")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	exchanges, _ := cmd.Flags().GetStringSlice("exchanges")
	topN, _ := cmd.Flags().GetInt("top-n")
	useDB, _ := cmd.Flags().GetBool("db")

	cfg, err := config.Load(configPath)
	if err != nil {
		return runSettings{}, err
	}
	if ratingsPath != "" {
		cfg.Analysis.RatingsCSV = ratingsPath
	}
	if threshold > 0 {
		cfg.Analysis.MissingThreshold = threshold
	}
	if len(exchanges) > 0 {
		cfg.Analysis.Exchanges = exchanges
	}
	if err := cfg.Validate(); err != nil {
		return runSettings{}, err
	}

	useDB = useDB || cfg.Database.Enabled
	if useDB && cfg.Database.DSN == "" {
		return runSettings{}, fmt.Errorf("run persistence requires PG_DSN to be set")
	}

	return runSettings{cfg: cfg, pricesPath: pricesPath, topN: topN, useDB: useDB}, nil
}

// runOptions maps the settings onto pipeline options.
func (s runSettings) runOptions() pipeline.Options {
	return pipeline.Options{
		MissingThreshold: s.cfg.Analysis.MissingThreshold,
		Exchanges:        s.cfg.Analysis.Exchanges,
		TopN:             s.topN,
	}
}

// loadRunInputs reads the ratings table and the price rows one run
// consumes. Prices come from an explicit CSV when given, otherwise through
// the cache-first store.
func (s runSettings) loadRunInputs(ctx context.Context) (pipeline.Inputs, error) {
	records, err := ratings.LoadCSV(s.cfg.Analysis.RatingsCSV)
	if err != nil {
		return pipeline.Inputs{}, fmt.Errorf("loading ratings: %w", err)
	}

	var rows []panel.PriceRow
	if s.pricesPath != "" {
		rows, err = panel.NewCSVReader().LoadPrices(s.pricesPath)
	} else {
		rows, err = s.loadStoredPrices(ctx, records)
	}
	if err != nil {
		return pipeline.Inputs{}, fmt.Errorf("loading prices: %w", err)
	}

	return pipeline.Inputs{Ratings: records, Prices: rows}, nil
}

func (s runSettings) loadStoredPrices(ctx context.Context, records []ratings.Record) ([]panel.PriceRow, error) {
	startDate, endDate, err := s.cfg.PriceWindow()
	if err != nil {
		return nil, err
	}
	symbols := candidateSymbols(s.cfg, records)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no long or short candidates in %s", s.cfg.Analysis.RatingsCSV)
	}

	store := prices.NewStore(s.cfg.Prices.CacheDir, prices.NewClient(clientConfig(s.cfg)), cache.NewAuto(), s.cfg.WarmTTL())
	return store.Load(ctx, s.cfg.Prices.CacheName, prices.FetchRequest{
		Symbols: symbols,
		Start:   startDate,
		End:     endDate,
	})
}

// candidateSymbols returns the union of both candidate books, sorted.
func candidateSymbols(cfg config.Config, records []ratings.Record) []string {
	processed := ratings.NewProcessor(cfg.Analysis.Exchanges).Process(records)
	long, _ := ratings.Candidates(processed.Records, ratings.BucketLow)
	short, _ := ratings.Candidates(processed.Records, ratings.BucketHigh)

	symbols := make([]string, 0, len(long)+len(short))
	for sym := range long {
		symbols = append(symbols, sym)
	}
	for sym := range short {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// clientConfig builds the Databento client settings from config.
func clientConfig(cfg config.Config) prices.Config {
	c := prices.DefaultConfig(cfg.Prices.APIKey)
	if cfg.Prices.RPS > 0 {
		c.RPS = cfg.Prices.RPS
	}
	return c
}

// openDatabase connects with persistence enabled.
func openDatabase(cfg config.Config) (*db.Manager, error) {
	dbCfg := db.DefaultConfig()
	dbCfg.DSN = cfg.Database.DSN
	dbCfg.Enabled = true
	return db.NewManager(dbCfg)
}

// persistRun stores the run, its per-side metrics and all three value
// series.
func persistRun(ctx context.Context, cfg config.Config, res *pipeline.Result) error {
	manager, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	run, summaries, points := persistence.FromResult(res)
	repos := manager.Repository()
	if err := repos.Runs.Insert(ctx, run, summaries); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	if err := repos.Series.InsertPoints(ctx, points); err != nil {
		return fmt.Errorf("inserting series: %w", err)
	}

	fmt.Printf("💾 Run %s persisted to Postgres\n", res.RunID)
	return nil
}

// runAnalyze executes the pipeline once and prints the text summary.
func runAnalyze(cmd *cobra.Command, args []string) error {
	settings, err := loadRunSettings(cmd)
	if err != nil {
		return err
	}

	log.Info().
		Str("ratings", settings.cfg.Analysis.RatingsCSV).
		Float64("threshold", settings.cfg.Analysis.MissingThreshold).
		Int("top_n", settings.topN).
		Msg("Starting analysis")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	inputs, err := settings.loadRunInputs(ctx)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(inputs, settings.runOptions())
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	report.RenderText(os.Stdout, res)

	if settings.useDB {
		if err := persistRun(ctx, settings.cfg, res); err != nil {
			return err
		}
	}

	return nil
}
