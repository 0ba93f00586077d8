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

	"github.com/sawpanic/esgrun/internal/config"
	"github.com/sawpanic/esgrun/internal/metrics"
	"github.com/sawpanic/esgrun/internal/monitor"
)

// runMonitor starts the monitoring HTTP server
func runMonitor(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Monitor.Addr = addr
	}

	log.Info().Str("addr", cfg.Monitor.Addr).Msg("Starting monitoring server")

	registry := metrics.NewRegistry()
	serverCfg := monitor.DefaultServerConfig()
	serverCfg.Addr = cfg.Monitor.Addr
	server, err := monitor.NewServer(serverCfg, registry)
	if err != nil {
		return fmt.Errorf("creating monitor server: %w", err)
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("health", fmt.Sprintf("http://%s/health", cfg.Monitor.Addr)).
			Str("status", fmt.Sprintf("http://%s/status", cfg.Monitor.Addr)).
			Str("metrics", fmt.Sprintf("http://%s/metrics", cfg.Monitor.Addr)).
			Msg("Monitor endpoints available")

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Monitor server shutdown complete")
	return nil
}
