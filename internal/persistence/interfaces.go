// Package persistence defines the storage contracts for run history,
// ratings snapshots and portfolio series.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrConflict reports an insert that collided with an existing row.
var ErrConflict = errors.New("row already exists")

// Run is one completed analysis run: its window, both books and the
// symbols cleaning removed.
type Run struct {
	RunID          string             `json:"run_id" db:"run_id"`
	StartedAt      time.Time          `json:"started_at" db:"started_at"`
	FinishedAt     time.Time          `json:"finished_at" db:"finished_at"`
	WindowStart    time.Time          `json:"window_start" db:"window_start"`
	WindowEnd      time.Time          `json:"window_end" db:"window_end"`
	LongWeights    map[string]float64 `json:"long_weights" db:"-"`
	ShortWeights   map[string]float64 `json:"short_weights" db:"-"`
	DroppedSymbols []string           `json:"dropped_symbols" db:"-"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// SummaryRow is one component's performance for a run. Sharpe is nil when
// the component's volatility was zero.
type SummaryRow struct {
	RunID        string   `json:"run_id" db:"run_id"`
	Label        string   `json:"label" db:"label"`
	TradingDays  int      `json:"trading_days" db:"trading_days"`
	TotalReturn  float64  `json:"total_return" db:"total_return"`
	PeriodReturn float64  `json:"period_return" db:"period_return"`
	PeriodVol    float64  `json:"period_vol" db:"period_vol"`
	Sharpe       *float64 `json:"sharpe,omitempty" db:"sharpe"`
}

// RatingRow is one company's ESG rating keyed by clean ticker.
type RatingRow struct {
	Ticker     string    `json:"ticker" db:"ticker"`
	Company    string    `json:"company" db:"company"`
	Exchange   string    `json:"exchange" db:"exchange"`
	ESGScore   float64   `json:"esg_score" db:"esg_score"`
	RiskLevel  string    `json:"risk_level" db:"risk_level"`
	RiskBucket string    `json:"risk_bucket" db:"risk_bucket"`
	ScrapedAt  time.Time `json:"scraped_at" db:"scraped_at"`
}

// SeriesPoint is one daily observation of a portfolio component.
type SeriesPoint struct {
	RunID string    `json:"run_id" db:"run_id"`
	Label string    `json:"label" db:"label"`
	Date  time.Time `json:"date" db:"date"`
	Value float64   `json:"value" db:"value"`
}

// RunsRepo stores run headers and their performance summaries.
type RunsRepo interface {
	// Insert adds a run and its summaries atomically.
	Insert(ctx context.Context, run Run, summaries []SummaryRow) error

	// GetLatest returns the most recently finished run.
	GetLatest(ctx context.Context) (*Run, error)

	// ListSummaries returns the per-component summaries of one run.
	ListSummaries(ctx context.Context, runID string) ([]SummaryRow, error)
}

// RatingsRepo stores the latest scraped rating per ticker.
type RatingsRepo interface {
	// Upsert inserts or refreshes ratings keyed by ticker.
	Upsert(ctx context.Context, rows []RatingRow) error

	// ListByBucket returns ratings in one risk bucket, best score first.
	ListByBucket(ctx context.Context, bucket string) ([]RatingRow, error)

	// Count returns the number of stored ratings.
	Count(ctx context.Context) (int, error)
}

// SeriesRepo stores daily portfolio values per run and component.
type SeriesRepo interface {
	// InsertPoints adds a run's series observations atomically.
	InsertPoints(ctx context.Context, points []SeriesPoint) error

	// ListByRun returns one component's series in date order.
	ListByRun(ctx context.Context, runID, label string) ([]SeriesPoint, error)
}

// Repository aggregates all storage interfaces.
type Repository struct {
	Runs    RunsRepo
	Ratings RatingsRepo
	Series  SeriesRepo
}
