// Package config loads the pipeline configuration from YAML with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Prices   PricesConfig   `yaml:"prices"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Report   ReportConfig   `yaml:"report"`
	Database DatabaseConfig `yaml:"database"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScrapeConfig controls the Sustainalytics scrape.
type ScrapeConfig struct {
	BaseURL       string  `yaml:"base_url"`
	StartPage     int     `yaml:"start_page"`
	EndPage       int     `yaml:"end_page"` // 0 discovers the page count
	SaveEvery     int     `yaml:"save_every"`
	OutputDir     string  `yaml:"output_dir"`
	RPS           float64 `yaml:"rps"`
	SettleSeconds int     `yaml:"settle_seconds"`
}

// PricesConfig controls the Databento price window.
type PricesConfig struct {
	APIKey      string  `yaml:"-"` // DATABENTO_API_KEY only, never from file
	Start       string  `yaml:"start"`
	End         string  `yaml:"end"`
	CacheDir    string  `yaml:"cache_dir"`
	CacheName   string  `yaml:"cache_name"`
	WarmTTLMins int     `yaml:"warm_ttl_minutes"`
	RPS         float64 `yaml:"rps"`
}

// AnalysisConfig controls cleaning and book construction.
type AnalysisConfig struct {
	RatingsCSV       string   `yaml:"ratings_csv"`
	MissingThreshold float64  `yaml:"missing_threshold"`
	Exchanges        []string `yaml:"exchanges"`
}

// ReportConfig controls run artifacts.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Charts    bool   `yaml:"charts"`
}

// DatabaseConfig controls optional Postgres persistence.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"-"` // PG_DSN only, never from file
}

// MonitorConfig controls the HTTP monitoring server.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

// ScheduleConfig controls recurring pipeline runs.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// Default returns the settings a fresh checkout runs with.
func Default() Config {
	return Config{
		Scrape: ScrapeConfig{
			BaseURL:       "https://www.sustainalytics.com/esg-ratings",
			StartPage:     1,
			SaveEvery:     10,
			OutputDir:     "data/raw",
			RPS:           0.5,
			SettleSeconds: 3,
		},
		Prices: PricesConfig{
			Start:       "2023-01-01",
			End:         "2024-09-30",
			CacheDir:    "data/processed",
			CacheName:   "stock_data",
			WarmTTLMins: 60,
			RPS:         2.0,
		},
		Analysis: AnalysisConfig{
			RatingsCSV:       "data/processed/esg_ratings_processed.csv",
			MissingThreshold: 0.10,
			Exchanges:        []string{"NAS", "NYS"},
		},
		Report: ReportConfig{
			OutputDir: "out/reports",
			Charts:    true,
		},
		Monitor: MonitorConfig{
			Addr: ":8088",
		},
		Schedule: ScheduleConfig{
			Cron: "0 6 * * 1", // Monday 06:00
		},
	}
}

// Load reads a YAML config file over the defaults, then applies env
// overrides. An empty path loads defaults plus env only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABENTO_API_KEY"); v != "" {
		c.Prices.APIKey = v
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("ESGRUN_MONITOR_ADDR"); v != "" {
		c.Monitor.Addr = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Analysis.MissingThreshold < 0 || c.Analysis.MissingThreshold >= 1 {
		return fmt.Errorf("analysis.missing_threshold %v out of range [0,1)", c.Analysis.MissingThreshold)
	}
	if len(c.Analysis.Exchanges) == 0 {
		return fmt.Errorf("analysis.exchanges must not be empty")
	}
	if _, _, err := c.PriceWindow(); err != nil {
		return err
	}
	if c.Scrape.StartPage < 1 {
		return fmt.Errorf("scrape.start_page must be >= 1, got %d", c.Scrape.StartPage)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.enabled is set but PG_DSN is empty")
	}
	return nil
}

// PriceWindow parses the configured fetch window.
func (c *Config) PriceWindow() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", c.Prices.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("prices.start: %w", err)
	}
	end, err = time.Parse("2006-01-02", c.Prices.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("prices.end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("prices.end %s must be after prices.start %s", c.Prices.End, c.Prices.Start)
	}
	return start, end, nil
}

// WarmTTL returns the warm-cache TTL as a duration.
func (c *Config) WarmTTL() time.Duration {
	return time.Duration(c.Prices.WarmTTLMins) * time.Minute
}

// SettleDelay returns the scrape settle delay as a duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Scrape.SettleSeconds) * time.Second
}
