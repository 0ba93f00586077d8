package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/esgrun/internal/persistence"
)

// seriesRepo implements SeriesRepo for PostgreSQL.
type seriesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSeriesRepo creates a PostgreSQL series repository.
func NewSeriesRepo(db *sqlx.DB, timeout time.Duration) persistence.SeriesRepo {
	return &seriesRepo{db: db, timeout: timeout}
}

// InsertPoints adds a run's series observations atomically.
func (r *seriesRepo) InsertPoints(ctx context.Context, points []persistence.SeriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(points)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series_points (run_id, label, date, value)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.RunID, p.Label, p.Date, p.Value); err != nil {
			return fmt.Errorf("failed to insert point %s/%s: %w", p.Label, p.Date.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// ListByRun returns one component's series in date order.
func (r *seriesRepo) ListByRun(ctx context.Context, runID, label string) ([]persistence.SeriesPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, label, date, value
		FROM series_points
		WHERE run_id = $1 AND label = $2
		ORDER BY date ASC`

	rows, err := r.db.QueryxContext(ctx, query, runID, label)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []persistence.SeriesPoint
	for rows.Next() {
		var p persistence.SeriesPoint
		if err := rows.StructScan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
