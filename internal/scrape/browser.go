package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserConfig controls the headless Chrome session.
type BrowserConfig struct {
	UserAgent   string        `yaml:"user_agent"`
	WindowW     int           `yaml:"window_width"`
	WindowH     int           `yaml:"window_height"`
	SettleDelay time.Duration `yaml:"settle_delay"` // wait after navigation for the listing to render
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// DefaultBrowserConfig mirrors the production scrape settings.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		WindowW:     1920,
		WindowH:     1080,
		SettleDelay: 3 * time.Second,
		PageTimeout: 45 * time.Second,
	}
}

// PageSource supplies listing-page HTML. The production implementation is
// the headless browser; tests use a canned source.
type PageSource interface {
	Open(ctx context.Context, url string) (string, error)
	GotoPage(ctx context.Context, page int) (string, error)
	Close()
}

// Browser drives a headless Chrome via chromedp. The ratings listing is
// client-rendered, so plain HTTP GETs return an empty shell; pagination is
// driven by clicking the numbered buttons.
type Browser struct {
	cfg         BrowserConfig
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

// NewBrowser starts a headless Chrome session.
func NewBrowser(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("window-size", fmt.Sprintf("%d,%d", cfg.WindowW, cfg.WindowH)),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Spin the browser up front so a missing Chrome binary fails fast.
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start headless browser: %w", err)
	}

	return &Browser{
		cfg:         cfg,
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelCtx:   cancelCtx,
	}, nil
}

// Close tears the browser session down.
func (b *Browser) Close() {
	b.cancelCtx()
	b.cancelAlloc()
}

// Open navigates to a URL and returns the settled page HTML.
func (b *Browser) Open(ctx context.Context, url string) (string, error) {
	runCtx, cancel := context.WithTimeout(b.browserCtx, b.cfg.PageTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", url, err)
	}
	return html, nil
}

// GotoPage clicks the numbered pagination button and returns the page HTML
// after the listing settles. The caller verifies the selected page in the
// returned HTML.
func (b *Browser) GotoPage(ctx context.Context, page int) (string, error) {
	runCtx, cancel := context.WithTimeout(b.browserCtx, b.cfg.PageTimeout)
	defer cancel()

	clickJS := fmt.Sprintf(
		`Array.from(document.querySelectorAll('#victor-pagination a.pagination-page'))
			.filter(a => a.textContent.trim() === '%d')
			.forEach(a => a.click())`, page)

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(clickJS, nil),
		chromedp.Sleep(b.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("failed to go to page %d: %w", page, err)
	}
	return html, nil
}
