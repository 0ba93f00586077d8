package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/esgrun/internal/persistence"
)

// ratingsRepo implements RatingsRepo for PostgreSQL.
type ratingsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRatingsRepo creates a PostgreSQL ratings repository.
func NewRatingsRepo(db *sqlx.DB, timeout time.Duration) persistence.RatingsRepo {
	return &ratingsRepo{db: db, timeout: timeout}
}

// Upsert inserts or refreshes ratings keyed by ticker. A re-scrape of the
// same ticker replaces its score and risk fields.
func (r *ratingsRepo) Upsert(ctx context.Context, rows []persistence.RatingRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rows)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ratings (ticker, company, exchange, esg_score, risk_level, risk_bucket, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker) DO UPDATE SET
			company = EXCLUDED.company,
			exchange = EXCLUDED.exchange,
			esg_score = EXCLUDED.esg_score,
			risk_level = EXCLUDED.risk_level,
			risk_bucket = EXCLUDED.risk_bucket,
			scraped_at = EXCLUDED.scraped_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.Ticker, row.Company, row.Exchange, row.ESGScore,
			row.RiskLevel, row.RiskBucket, row.ScrapedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert rating %s: %w", row.Ticker, err)
		}
	}

	return tx.Commit()
}

// ListByBucket returns ratings in one risk bucket, best score first.
func (r *ratingsRepo) ListByBucket(ctx context.Context, bucket string) ([]persistence.RatingRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ticker, company, exchange, esg_score, risk_level, risk_bucket, scraped_at
		FROM ratings
		WHERE risk_bucket = $1
		ORDER BY esg_score ASC, ticker`

	rows, err := r.db.QueryxContext(ctx, query, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var out []persistence.RatingRow
	for rows.Next() {
		var row persistence.RatingRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Count returns the number of stored ratings.
func (r *ratingsRepo) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM ratings`); err != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return count, nil
}
