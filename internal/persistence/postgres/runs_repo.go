// Package postgres implements the persistence interfaces on PostgreSQL
// through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/esgrun/internal/persistence"
)

// runsRepo implements RunsRepo for PostgreSQL.
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a PostgreSQL runs repository.
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{db: db, timeout: timeout}
}

// Insert adds a run header and its summaries in one transaction.
func (r *runsRepo) Insert(ctx context.Context, run persistence.Run, summaries []persistence.SummaryRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	longJSON, err := json.Marshal(run.LongWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal long weights: %w", err)
	}
	shortJSON, err := json.Marshal(run.ShortWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal short weights: %w", err)
	}
	droppedJSON, err := json.Marshal(run.DroppedSymbols)
	if err != nil {
		return fmt.Errorf("failed to marshal dropped symbols: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs (run_id, started_at, finished_at, window_start, window_end,
			long_weights, short_weights, dropped_symbols)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.ExecContext(ctx, query,
		run.RunID, run.StartedAt, run.FinishedAt, run.WindowStart, run.WindowEnd,
		longJSON, shortJSON, droppedJSON)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate run %s: %w", run.RunID, persistence.ErrConflict)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_summaries (run_id, label, trading_days, total_return,
			period_return, period_vol, sharpe)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare summary statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range summaries {
		_, err = stmt.ExecContext(ctx,
			run.RunID, s.Label, s.TradingDays, s.TotalReturn,
			s.PeriodReturn, s.PeriodVol, s.Sharpe)
		if err != nil {
			return fmt.Errorf("failed to insert summary %s: %w", s.Label, err)
		}
	}

	return tx.Commit()
}

// GetLatest returns the most recently finished run.
func (r *runsRepo) GetLatest(ctx context.Context) (*persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, started_at, finished_at, window_start, window_end,
			long_weights, short_weights, dropped_symbols, created_at
		FROM runs
		ORDER BY finished_at DESC
		LIMIT 1`

	var run persistence.Run
	var longJSON, shortJSON, droppedJSON []byte
	err := r.db.QueryRowxContext(ctx, query).Scan(
		&run.RunID, &run.StartedAt, &run.FinishedAt, &run.WindowStart, &run.WindowEnd,
		&longJSON, &shortJSON, &droppedJSON, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	if err := json.Unmarshal(longJSON, &run.LongWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal long weights: %w", err)
	}
	if err := json.Unmarshal(shortJSON, &run.ShortWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal short weights: %w", err)
	}
	if err := json.Unmarshal(droppedJSON, &run.DroppedSymbols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dropped symbols: %w", err)
	}

	return &run, nil
}

// ListSummaries returns the per-component summaries of one run.
func (r *runsRepo) ListSummaries(ctx context.Context, runID string) ([]persistence.SummaryRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, label, trading_days, total_return, period_return, period_vol, sharpe
		FROM run_summaries
		WHERE run_id = $1
		ORDER BY label`

	rows, err := r.db.QueryxContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []persistence.SummaryRow
	for rows.Next() {
		var s persistence.SummaryRow
		if err := rows.StructScan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
