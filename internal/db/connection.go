// Package db manages the optional PostgreSQL connection and repositories.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/esgrun/internal/persistence"
	"github.com/sawpanic/esgrun/internal/persistence/postgres"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string
	Enabled         bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultConfig returns pool defaults with the database disabled. Runs
// work fully without one; history persistence is opt-in.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Manager owns the connection pool and the repository set.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
}

// NewManager opens and verifies the connection when enabled. A disabled
// config yields a manager whose Repository() is nil.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config}, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Int("max_open", config.MaxOpenConns).
		Dur("query_timeout", config.QueryTimeout).
		Msg("Database connected")

	return &Manager{
		db:     db,
		config: config,
		repos: &persistence.Repository{
			Runs:    postgres.NewRunsRepo(db, config.QueryTimeout),
			Ratings: postgres.NewRatingsRepo(db, config.QueryTimeout),
			Series:  postgres.NewSeriesRepo(db, config.QueryTimeout),
		},
	}, nil
}

// Repository returns the repository set, nil when the database is disabled.
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// Enabled reports whether a database connection is active.
func (m *Manager) Enabled() bool {
	return m.db != nil
}

// Ping verifies the connection is still alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return fmt.Errorf("database is disabled")
	}
	ctx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	return m.db.PingContext(ctx)
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
