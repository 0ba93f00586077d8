package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/esgrun/internal/metrics"
	"github.com/sawpanic/esgrun/internal/monitor"
	"github.com/sawpanic/esgrun/internal/pipeline"
	"github.com/sawpanic/esgrun/internal/report"
	"github.com/sawpanic/esgrun/internal/sched"
)

// runSchedule starts the recurring-analysis daemon: cron-driven pipeline
// runs with the monitoring server alongside.
func runSchedule(cmd *cobra.Command, args []string) error {
	settings, err := loadRunSettings(cmd)
	if err != nil {
		return err
	}
	cronSpec, _ := cmd.Flags().GetString("cron")
	if cronSpec != "" {
		settings.cfg.Schedule.Cron = cronSpec
	}
	runNow, _ := cmd.Flags().GetBool("now")

	registry := metrics.NewRegistry()
	serverCfg := monitor.DefaultServerConfig()
	serverCfg.Addr = settings.cfg.Monitor.Addr
	server, err := monitor.NewServer(serverCfg, registry)
	if err != nil {
		return fmt.Errorf("creating monitor server: %w", err)
	}

	job := analysisJob(settings, registry, server)

	scheduler := sched.New(30 * time.Minute)
	if err := scheduler.Schedule(settings.cfg.Schedule.Cron, "analysis", job); err != nil {
		return err
	}
	scheduler.Start()

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	if runNow {
		scheduler.RunNow("analysis", job)
	}

	log.Info().
		Str("cron", settings.cfg.Schedule.Cron).
		Str("monitor", settings.cfg.Monitor.Addr).
		Msg("Scheduler daemon running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		scheduler.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	// Let an in-flight cron run finish before closing the server.
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Scheduler daemon stopped")
	return nil
}

// analysisJob builds the recurring job: load inputs, run the pipeline,
// refresh metrics and the status endpoint, write the report bundle.
func analysisJob(settings runSettings, registry *metrics.Registry, server *monitor.Server) sched.Job {
	opts := settings.runOptions()
	opts.StageObserver = registry.ObserveStage

	return func(ctx context.Context) error {
		inputs, err := settings.loadRunInputs(ctx)
		if err != nil {
			registry.ObserveRunError()
			return err
		}

		res, err := pipeline.Run(inputs, opts)
		if err != nil {
			registry.ObserveRunError()
			return err
		}
		registry.ObserveRun(res)
		server.SetLastRun(report.NewRunSummary(res))

		writer := report.NewWriter(settings.cfg.Report.OutputDir, settings.cfg.Report.Charts)
		if err := writer.Write(res); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}

		if settings.useDB {
			if err := persistRun(ctx, settings.cfg, res); err != nil {
				return err
			}
		}
		return nil
	}
}
