package scrape

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/esgrun/internal/net/ratelimit"
	"github.com/sawpanic/esgrun/internal/ratings"
)

// DefaultBaseURL is the public ratings listing.
const DefaultBaseURL = "https://www.sustainalytics.com/esg-ratings"

// Config controls a scrape run.
type Config struct {
	BaseURL   string  `yaml:"base_url"`
	StartPage int     `yaml:"start_page"`
	EndPage   int     `yaml:"end_page"`   // 0 means discover from the pagination widget
	SaveEvery int     `yaml:"save_every"` // checkpoint frequency in pages
	OutputDir string  `yaml:"output_dir"` // where checkpoint and final CSVs land
	RPS       float64 `yaml:"rps"`        // page navigation rate
}

// DefaultConfig returns the production scrape settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		StartPage: 1,
		SaveEvery: 10,
		OutputDir: "data/raw",
		RPS:       0.5,
	}
}

// Scraper walks the paginated ratings listing and accumulates records,
// checkpointing to disk as it goes so a crashed run loses at most
// SaveEvery pages.
type Scraper struct {
	cfg     Config
	src     PageSource
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// New creates a scraper over the given page source.
func New(src PageSource, cfg Config) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.StartPage < 1 {
		cfg.StartPage = 1
	}
	if cfg.SaveEvery < 1 {
		cfg.SaveEvery = 10
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 0.5
	}

	settings := gobreaker.Settings{
		Name:        ratelimit.SourceSustainalytics,
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}

	return &Scraper{
		cfg:     cfg,
		src:     src,
		limiter: ratelimit.NewLimiter(cfg.RPS, 1),
		breaker: gobreaker.NewCircuitBreaker(settings),
		now:     time.Now,
	}
}

// Run scrapes the configured page range. Whatever was collected is written
// to a final CSV even when the run dies partway through.
func (s *Scraper) Run(ctx context.Context) ([]ratings.Record, error) {
	html, err := s.fetch(ctx, func() (string, error) {
		return s.src.Open(ctx, s.cfg.BaseURL)
	})
	if err != nil {
		return nil, fmt.Errorf("opening ratings listing: %w", err)
	}

	endPage := s.cfg.EndPage
	if endPage == 0 {
		endPage, err = ParseTotalPages(html)
		if err != nil {
			return nil, fmt.Errorf("discovering page count: %w", err)
		}
	}

	log.Info().
		Int("start", s.cfg.StartPage).
		Int("end", endPage).
		Msg("Starting ratings scrape")

	var all []ratings.Record
	defer func() {
		if len(all) > 0 {
			s.saveFinal(all)
		}
	}()

	for page := s.cfg.StartPage; page <= endPage; page++ {
		if page > s.cfg.StartPage {
			html, err = s.navigate(ctx, page)
			if err != nil {
				log.Error().Err(err).Int("page", page).Msg("Skipping page after failed navigation")
				s.saveCheckpoint(all)
				continue
			}
		}

		records, err := ParseCompanies(html)
		if err != nil {
			log.Error().Err(err).Int("page", page).Msg("Skipping unparseable page")
			s.saveCheckpoint(all)
			continue
		}

		all = append(all, records...)
		log.Info().
			Int("page", page).
			Int("companies", len(records)).
			Msg("Scraped listing page")

		if (page-s.cfg.StartPage+1)%s.cfg.SaveEvery == 0 {
			s.saveCheckpoint(all)
		}

		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}
	}

	return all, nil
}

// navigate clicks to a page and verifies the pagination widget agrees. One
// recovery attempt reloads the listing from scratch before clicking again.
func (s *Scraper) navigate(ctx context.Context, page int) (string, error) {
	html, err := s.gotoAndVerify(ctx, page)
	if err == nil {
		return html, nil
	}

	log.Warn().Err(err).Int("page", page).Msg("Navigation failed, reloading listing")
	if _, err := s.fetch(ctx, func() (string, error) {
		return s.src.Open(ctx, s.cfg.BaseURL)
	}); err != nil {
		return "", err
	}
	return s.gotoAndVerify(ctx, page)
}

func (s *Scraper) gotoAndVerify(ctx context.Context, page int) (string, error) {
	html, err := s.fetch(ctx, func() (string, error) {
		return s.src.GotoPage(ctx, page)
	})
	if err != nil {
		return "", err
	}

	selected, err := ParseSelectedPage(html)
	if err != nil {
		return "", err
	}
	if selected != page {
		return "", fmt.Errorf("pagination shows page %d, expected %d", selected, page)
	}
	return html, nil
}

// fetch runs one page retrieval through the rate limiter and breaker.
func (s *Scraper) fetch(ctx context.Context, get func() (string, error)) (string, error) {
	if err := s.limiter.Wait(ctx, ratelimit.SourceSustainalytics); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return get()
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *Scraper) saveCheckpoint(records []ratings.Record) {
	if len(records) == 0 {
		return
	}
	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		log.Error().Err(err).Msg("Failed to create checkpoint dir")
		return
	}
	name := fmt.Sprintf("esg_ratings_checkpoint_%s.csv", s.now().Format("20060102_150405"))
	path := filepath.Join(s.cfg.OutputDir, name)
	if err := ratings.SaveCSV(path, records); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to save checkpoint")
		return
	}
	log.Info().Str("file", path).Int("records", len(records)).Msg("Checkpoint saved")
}

func (s *Scraper) saveFinal(records []ratings.Record) {
	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		log.Error().Err(err).Msg("Failed to create output dir")
		return
	}
	path := filepath.Join(s.cfg.OutputDir, "esg_ratings_final.csv")
	if err := ratings.SaveCSV(path, records); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to save final dataset")
		return
	}
	log.Info().Str("file", path).Int("records", len(records)).Msg("Final dataset saved")
}
