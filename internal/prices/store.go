package prices

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/esgrun/internal/cache"
	"github.com/sawpanic/esgrun/internal/panel"
)

// Fetcher is the upstream a Store falls back to on a cache miss.
type Fetcher interface {
	FetchDaily(ctx context.Context, req FetchRequest) ([]panel.PriceRow, error)
}

// Store serves price rows cache-first: warm cache, then the local CSV
// file, then the network. Fetched data is written back to both layers so
// a rerun of the same window never leaves the machine.
type Store struct {
	dir     string
	fetcher Fetcher
	warm    cache.Cache
	ttl     time.Duration
}

// NewStore creates a store writing CSV files under dir.
func NewStore(dir string, fetcher Fetcher, warm cache.Cache, ttl time.Duration) *Store {
	return &Store{dir: dir, fetcher: fetcher, warm: warm, ttl: ttl}
}

// Load returns the rows for a named window.
func (s *Store) Load(ctx context.Context, name string, req FetchRequest) ([]panel.PriceRow, error) {
	key := "prices:" + name
	if payload, ok := s.warm.Get(key); ok {
		var rows []panel.PriceRow
		if err := json.Unmarshal(payload, &rows); err == nil {
			log.Debug().Str("window", name).Int("rows", len(rows)).Msg("Price cache hit")
			return rows, nil
		}
		s.warm.Delete(key)
	}

	path := s.csvPath(name)
	if _, err := os.Stat(path); err == nil {
		rows, err := panel.NewCSVReader().LoadPrices(path)
		if err != nil {
			return nil, fmt.Errorf("cached price file %s: %w", path, err)
		}
		log.Info().Str("file", path).Int("rows", len(rows)).Msg("Loading cached price data")
		s.putWarm(key, rows)
		return rows, nil
	}

	if s.fetcher == nil {
		return nil, fmt.Errorf("no cached prices for %q and no fetcher configured", name)
	}

	rows, err := s.fetcher.FetchDaily(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.save(path, rows); err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Int("rows", len(rows)).Msg("Saved price data to cache")
	s.putWarm(key, rows)
	return rows, nil
}

// Invalidate drops both cache layers for a named window.
func (s *Store) Invalidate(name string) error {
	s.warm.Delete("prices:" + name)
	err := os.Remove(s.csvPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cached price file: %w", err)
	}
	return nil
}

func (s *Store) csvPath(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

func (s *Store) putWarm(key string, rows []panel.PriceRow) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	s.warm.Set(key, payload, s.ttl)
}

func (s *Store) save(path string, rows []panel.PriceRow) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create price cache dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create price cache file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"ts_event", "symbol", "close"}); err != nil {
		return fmt.Errorf("write price header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.Symbol,
			strconv.FormatFloat(row.Close, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write price row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
