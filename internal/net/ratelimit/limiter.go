// Package ratelimit throttles outbound calls to the upstream data sources.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Source names for the pipeline's two upstreams.
const (
	SourceSustainalytics = "sustainalytics"
	SourceDatabento      = "databento"
)

// Limiter provides per-source token-bucket rate limiting. Each upstream
// gets its own bucket, so a scrape burst cannot starve price fetches.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64 // requests per second per source
	burst    int     // burst capacity per source
}

// NewLimiter creates a limiter with the given per-source RPS and burst.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

// getLimiter returns or creates the bucket for one source.
func (l *Limiter) getLimiter(source string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the write lock.
	if limiter, exists := l.limiters[source]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[source] = limiter
	return limiter
}

// Wait blocks until the source may issue a request or the context ends.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	return l.getLimiter(source).Wait(ctx)
}

// Allow reports whether the source may issue a request right now.
func (l *Limiter) Allow(source string) bool {
	return l.getLimiter(source).Allow()
}

// SetRPS updates the rate for every existing bucket and for new ones.
func (l *Limiter) SetRPS(rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = rps
	for _, limiter := range l.limiters {
		limiter.SetLimit(rate.Limit(rps))
	}
}

// SourceStats describes the current state of one source's bucket.
type SourceStats struct {
	Source          string        `json:"source"`
	RPS             float64       `json:"rps"`
	Burst           int           `json:"burst"`
	TokensAvailable float64       `json:"tokens_available"`
	Delay           time.Duration `json:"delay"`
}

// Throttled reports whether the source would have to wait right now.
func (s SourceStats) Throttled() bool { return s.Delay > 0 }

// Stats returns the state of every source bucket seen so far.
func (l *Limiter) Stats() map[string]SourceStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]SourceStats, len(l.limiters))
	for source, limiter := range l.limiters {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		stats[source] = SourceStats{
			Source:          source,
			RPS:             float64(limiter.Limit()),
			Burst:           limiter.Burst(),
			TokensAvailable: limiter.Tokens(),
			Delay:           delay,
		}
	}
	return stats
}
