package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/esgrun/internal/pipeline"
	"github.com/sawpanic/esgrun/internal/report"
)

// runReport executes the pipeline once and writes the artifact bundle.
func runReport(cmd *cobra.Command, args []string) error {
	settings, err := loadRunSettings(cmd)
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("out")
	if outDir != "" {
		settings.cfg.Report.OutputDir = outDir
	}
	charts := settings.cfg.Report.Charts
	if cmd.Flags().Changed("charts") {
		charts, _ = cmd.Flags().GetBool("charts")
	}

	log.Info().
		Str("out", settings.cfg.Report.OutputDir).
		Bool("charts", charts).
		Msg("Starting report run")

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

	writer := report.NewWriter(settings.cfg.Report.OutputDir, charts)
	if err := writer.Write(res); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Printf("✅ Report written: %s\n", writer.OutputDir())
	for _, s := range res.Summaries {
		fmt.Printf("   %-18s total return %+.4f, sharpe %s\n", s.Label, s.TotalReturn, s.SharpeString())
	}

	if settings.useDB {
		if err := persistRun(ctx, settings.cfg, res); err != nil {
			return err
		}
	}

	return nil
}
