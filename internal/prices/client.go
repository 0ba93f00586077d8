// Package prices fetches daily OHLCV closes from Databento and keeps a
// local cache so a research run never refetches the same window.
package prices

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/esgrun/internal/net/ratelimit"
	"github.com/sawpanic/esgrun/internal/panel"
)

// DefaultBaseURL is the Databento historical timeseries endpoint.
const DefaultBaseURL = "https://hist.databento.com/v0/timeseries.get_range"

// Request params fixed by the strategy: Nasdaq ITCH daily bars, CSV with
// readable prices, timestamps and symbol mapping.
const (
	dataset = "XNAS.ITCH"
	schema  = "ohlcv-1d"
)

// Config holds the client's connection settings.
type Config struct {
	APIKey  string        // Databento API key, sent as the basic-auth user
	BaseURL string        // endpoint override, DefaultBaseURL when empty
	Timeout time.Duration // per-request timeout
	RPS     float64       // request rate toward Databento
	Burst   int
}

// DefaultConfig returns conservative connection settings.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Timeout: 60 * time.Second,
		RPS:     2.0,
		Burst:   2,
	}
}

// Client calls the Databento HTTP API with rate limiting and a circuit
// breaker in front of it.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	reader  *panel.CSVReader
}

// NewClient builds a client from config.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2.0
	}

	settings := gobreaker.Settings{
		Name:        ratelimit.SourceDatabento,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.NewLimiter(cfg.RPS, cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		reader:  panel.NewCSVReader(),
	}
}

// FetchRequest names the window to download.
type FetchRequest struct {
	Symbols []string
	Start   time.Time
	End     time.Time
}

// FetchDaily downloads daily close rows for the requested symbols. Symbols
// are deduplicated and sorted before the call; the response CSV is decoded
// through the shared price reader, which picks ts_event, symbol and close
// out of the OHLCV columns.
func (c *Client) FetchDaily(ctx context.Context, req FetchRequest) ([]panel.PriceRow, error) {
	if len(req.Symbols) == 0 {
		return nil, fmt.Errorf("fetch request has no symbols")
	}
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("databento API key is not set")
	}

	if err := c.limiter.Wait(ctx, ratelimit.SourceDatabento); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doFetch(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("databento fetch: %w", err)
	}
	return result.([]panel.PriceRow), nil
}

func (c *Client) doFetch(ctx context.Context, req FetchRequest) ([]panel.PriceRow, error) {
	form := url.Values{}
	form.Set("dataset", dataset)
	form.Set("symbols", strings.Join(dedupeSorted(req.Symbols), ","))
	form.Set("schema", schema)
	form.Set("start", req.Start.Format("2006-01-02"))
	form.Set("end", req.End.Format("2006-01-02"))
	form.Set("encoding", "csv")
	form.Set("pretty_px", "true")
	form.Set("pretty_ts", "true")
	form.Set("map_symbols", "true")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.APIKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("databento returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	rows, err := c.reader.ReadPrices(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	log.Info().
		Int("symbols", len(req.Symbols)).
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched daily bars from Databento")

	return rows, nil
}

func dedupeSorted(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
