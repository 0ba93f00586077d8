// Package sched runs the pipeline on a cron schedule.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps cron with a per-run timeout, overlap protection and
// panic recovery. Schedule specs use the standard five-field format.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// New creates a scheduler whose jobs are cancelled after timeout.
func New(timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
	}
}

// Schedule registers a job under a cron spec.
func (s *Scheduler) Schedule(spec string, name string, job Job) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	log.Info().Str("job", name).Str("spec", spec).Msg("Job scheduled")
	return nil
}

// Start begins dispatching in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatching. The returned context closes once any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	log.Info().Msg("Scheduler stopping")
	return s.cron.Stop()
}

// RunNow executes a job immediately in the background.
func (s *Scheduler) RunNow(name string, job Job) {
	go s.wrap(name, job)()
}

// LastOutcome reports when the last job finished and how.
func (s *Scheduler) LastOutcome() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// wrap turns a Job into a cron-callable function with the run guards.
func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		if !s.begin() {
			log.Warn().Str("job", name).Msg("Previous run still active, skipping")
			return
		}

		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
				log.Error().Str("job", name).Interface("panic", r).Msg("Scheduled job panicked")
			}
			s.finish(err)

			if err != nil {
				log.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("Scheduled job failed")
			} else {
				log.Info().Str("job", name).Dur("elapsed", time.Since(start)).Msg("Scheduled job completed")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		log.Info().Str("job", name).Msg("Scheduled job starting")
		err = job(ctx)
	}
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = time.Now()
	s.lastErr = err
}
