// Package log carries the terminal progress UX for long-running stages:
// scrape page walks, price fetches and the analysis pipeline itself.
package log

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ProgressIndicator prints single-line progress for a counted loop.
type ProgressIndicator struct {
	mu        sync.Mutex
	name      string
	total     int
	current   int
	startTime time.Time
	spinner   *Spinner
	showETA   bool
}

// ProgressConfig configures indicator behavior.
type ProgressConfig struct {
	ShowSpinner bool
	ShowETA     bool
	Style       SpinnerStyle
}

// SpinnerStyle selects the animation character set.
type SpinnerStyle string

const (
	SpinnerDots SpinnerStyle = "dots"
	SpinnerLine SpinnerStyle = "line"
)

// NewProgressIndicator creates an indicator for a loop of total steps.
func NewProgressIndicator(name string, total int, config ProgressConfig) *ProgressIndicator {
	pi := &ProgressIndicator{
		name:      name,
		total:     total,
		startTime: time.Now(),
		showETA:   config.ShowETA,
	}
	if config.ShowSpinner {
		pi.spinner = NewSpinner(config.Style)
		pi.spinner.Start()
	}
	return pi
}

// Increment advances progress by one step.
func (pi *ProgressIndicator) Increment() {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.current++
	pi.print("")
}

// UpdateWithMessage sets progress and shows a message beside the bar.
func (pi *ProgressIndicator) UpdateWithMessage(current int, message string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.current = current
	pi.print(message)
}

// Finish completes the indicator.
func (pi *ProgressIndicator) Finish() {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	if pi.spinner != nil {
		pi.spinner.Stop()
	}
	duration := time.Since(pi.startTime)
	fmt.Printf("\r\033[K✅ %s completed (%d items, %v)\n", pi.name, pi.total, duration.Round(time.Millisecond))
}

// Fail marks the loop as failed.
func (pi *ProgressIndicator) Fail(reason string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	if pi.spinner != nil {
		pi.spinner.Stop()
	}
	duration := time.Since(pi.startTime)
	fmt.Printf("\r\033[K❌ %s failed: %s (%v)\n", pi.name, reason, duration.Round(time.Millisecond))
}

func (pi *ProgressIndicator) print(message string) {
	var out strings.Builder
	out.WriteString("\r\033[K")

	if pi.spinner != nil {
		out.WriteString(pi.spinner.Current() + " ")
	}
	fmt.Fprintf(&out, "%s: %d/%d", pi.name, pi.current, pi.total)
	if pi.total > 0 {
		fmt.Fprintf(&out, " (%.0f%%)", float64(pi.current)/float64(pi.total)*100)
	}
	if pi.showETA && pi.current > 0 && pi.current < pi.total {
		perStep := time.Since(pi.startTime) / time.Duration(pi.current)
		eta := perStep * time.Duration(pi.total-pi.current)
		fmt.Fprintf(&out, " ETA %v", eta.Round(time.Second))
	}
	if message != "" {
		out.WriteString(" " + message)
	}
	fmt.Print(out.String())
}

// Spinner provides rotating visual feedback while a stage runs.
type Spinner struct {
	chars    []string
	current  int
	interval time.Duration
	stop     chan bool
	running  bool
	mu       sync.Mutex
}

// NewSpinner creates a spinner with the given style.
func NewSpinner(style SpinnerStyle) *Spinner {
	s := &Spinner{
		interval: 100 * time.Millisecond,
		stop:     make(chan bool, 1),
	}
	switch style {
	case SpinnerLine:
		s.chars = []string{"-", "\\", "|", "/"}
	default:
		s.chars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	}
	return s
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.spin()
}

// Stop terminates the animation.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.stop <- true
}

func (s *Spinner) spin() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.current = (s.current + 1) % len(s.chars)
			s.mu.Unlock()
		}
	}
}

// Current returns the current spinner character.
func (s *Spinner) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[s.current]
}

// StepLogger logs named pipeline stages with timing, one line per step.
type StepLogger struct {
	mu      sync.Mutex
	run     string
	step    string
	started time.Time
}

// NewStepLogger creates a step logger for one named run.
func NewStepLogger(run string) *StepLogger {
	return &StepLogger{run: run}
}

// Step begins a named stage.
func (sl *StepLogger) Step(name string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.step = name
	sl.started = time.Now()
	log.Info().Str("run", sl.run).Str("step", name).Msg("Step started")
}

// Done completes the current stage.
func (sl *StepLogger) Done() {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	log.Info().
		Str("run", sl.run).
		Str("step", sl.step).
		Dur("elapsed", time.Since(sl.started)).
		Msg("Step completed")
}

// Fail reports the current stage as failed.
func (sl *StepLogger) Fail(err error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	log.Error().
		Err(err).
		Str("run", sl.run).
		Str("step", sl.step).
		Dur("elapsed", time.Since(sl.started)).
		Msg("Step failed")
}
