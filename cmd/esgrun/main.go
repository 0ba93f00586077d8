package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "ESGRun"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// Secrets (DATABENTO_API_KEY, PG_DSN, REDIS_ADDR) come from the
	// environment; a missing .env is fine.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env")
	}

	rootCmd := &cobra.Command{
		Use:     "esgrun",
		Short:   "ESG-rated long-short equity research pipeline",
		Version: version,
		Long: `ESGRun builds a score-weighted long book of low-ESG-risk names and a
score-weighted short book of high-ESG-risk names from Sustainalytics
ratings and Databento daily closes, compounds both over the sample and
summarizes Long, Short and the Long-Short spread.

THE INTERACTIVE MENU IS THE PRIMARY INTERFACE
   Run 'esgrun' in a terminal for the guided experience.
   Subcommands and flags are automation shims for non-interactive use.`,
		Run: runDefaultEntry, // TTY detection and menu routing
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (built-in defaults when empty)")

	// Menu command for explicit invocation
	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "Launch interactive menu interface",
		Long:  "Launch the interactive menu system covering every pipeline step",
		Run:   runMenu,
	}

	// Add scrape command for ratings acquisition
	scrapeCmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape Sustainalytics ESG ratings",
		Long:  "Walk the paginated Sustainalytics listing in a headless browser and write the raw and processed ratings CSVs",
		RunE:  runScrape,
	}
	scrapeCmd.Flags().Int("start-page", 0, "First listing page (config default when 0)")
	scrapeCmd.Flags().Int("end-page", 0, "Last listing page (0 discovers the count from the pagination widget)")
	scrapeCmd.Flags().String("out", "", "Raw output directory override")
	scrapeCmd.Flags().Bool("db", false, "Upsert the processed ratings into Postgres (needs PG_DSN)")

	// Add prices command for the Databento window download
	pricesCmd := &cobra.Command{
		Use:   "prices",
		Short: "Download daily close prices from Databento",
		Long:  "Fetch the configured daily close window for every long and short candidate, cache-first (warm cache, CSV, then network)",
		RunE:  runPrices,
	}
	pricesCmd.Flags().String("ratings", "", "Processed ratings CSV naming the candidates")
	pricesCmd.Flags().String("start", "", "Window start override (YYYY-MM-DD)")
	pricesCmd.Flags().String("end", "", "Window end override (YYYY-MM-DD)")
	pricesCmd.Flags().Bool("refresh", false, "Drop the cached window and refetch")

	// Add analyze command for the full pipeline with a stdout summary
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the long-short analysis",
		Long:  "Run the full pipeline (clean ratings, clean returns, reconcile, weight, compound, summarize) and print the performance summary",
		RunE:  runAnalyze,
	}
	addRunFlags(analyzeCmd.Flags())

	// Add report command for the artifact bundle
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run the analysis and write the report bundle",
		Long:  "Run the full pipeline and write summary.json, series.csv, diagnostics.jsonl, report.md and PNG charts to a dated directory",
		RunE:  runReport,
	}
	addRunFlags(reportCmd.Flags())
	reportCmd.Flags().String("out", "", "Report output directory override")
	reportCmd.Flags().Bool("charts", true, "Render PNG charts alongside the report")

	// Add monitor command for HTTP endpoints
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start the monitoring HTTP server",
		Long:  "Serve /health, /status and Prometheus /metrics until interrupted",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().String("addr", "", "Listen address override (host:port)")

	// Add schedule command for the recurring daemon
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the analysis on a cron schedule",
		Long:  "Daemon mode: run the full pipeline on the configured cron spec, refresh metrics and the status endpoint, and write a report bundle per run",
		RunE:  runSchedule,
	}
	addRunFlags(scheduleCmd.Flags())
	scheduleCmd.Flags().String("cron", "", "Cron spec override (five fields)")
	scheduleCmd.Flags().Bool("now", false, "Trigger one run immediately after starting")

	// Add commands in Menu-first order
	rootCmd.AddCommand(menuCmd)     // Menu first
	rootCmd.AddCommand(scrapeCmd)   // Ratings acquisition
	rootCmd.AddCommand(pricesCmd)   // Price acquisition
	rootCmd.AddCommand(analyzeCmd)  // Primary functionality
	rootCmd.AddCommand(reportCmd)   // Artifact bundle
	rootCmd.AddCommand(monitorCmd)  // Monitoring
	rootCmd.AddCommand(scheduleCmd) // Recurring runs

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// addRunFlags declares the flags shared by every command that executes the
// analysis pipeline.
func addRunFlags(flags *pflag.FlagSet) {
	flags.String("ratings", "", "Processed ratings CSV override")
	flags.String("prices", "", "Price CSV override (skips the Databento fetch)")
	flags.Float64("threshold", 0, "Missing-return drop threshold override (0 uses config)")
	flags.StringSlice("exchanges", nil, "Exchange codes kept during ratings cleanup")
	flags.Int("top-n", 0, "Cap each book at its N strongest names (0 keeps all)")
	flags.Bool("db", false, "Persist the run to Postgres (needs PG_DSN)")
}

// runDefaultEntry implements TTY detection and routing to menu or help
func runDefaultEntry(cmd *cobra.Command, args []string) {
	// Check if we have a TTY (interactive terminal)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// Non-interactive environment - show guidance
		fmt.Fprintf(os.Stderr, "❌ Interactive menu requires a TTY terminal.\n")
		fmt.Fprintf(os.Stderr, "   Use subcommands and flags for non-interactive automation:\n\n")
		fmt.Fprintf(os.Stderr, "   esgrun scrape --end-page 5\n")
		fmt.Fprintf(os.Stderr, "   esgrun analyze --top-n 50 --db\n")
		fmt.Fprintf(os.Stderr, "   esgrun --help\n\n")
		os.Exit(2)
	}

	// Interactive terminal - launch menu as canonical interface
	runMenu(cmd, args)
}

// runMenu starts the interactive menu interface
func runMenu(cmd *cobra.Command, args []string) {
	menuUI := NewMenuUI()
	if err := menuUI.Run(); err != nil {
		log.Error().Err(err).Msg("menu interface failed")
		os.Exit(1)
	}
}

// Handler functions are implemented in their respective *_main.go files
