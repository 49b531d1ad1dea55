// Package cron runs the bot's periodic maintenance tasks.
package cron

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mangabot/internal/logger"
)

// sweepSchedule is when the staging sweep fires
const sweepSchedule = "@hourly"

// Sweeper is the source of stale staging directories, normally the
// download manager
type Sweeper interface {
	SweepStaging(maxAge time.Duration) (int, error)
}

// Scheduler runs periodic maintenance on a cron timer
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	maxAge  time.Duration
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler that sweeps staging dirs older than maxAge
func NewScheduler(sweeper Sweeper, maxAge time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		maxAge:  maxAge,
	}
}

// Start begins the scheduler and runs one sweep immediately to clear
// leftovers from a previous crash
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(sweepSchedule, s.sweep); err != nil {
		return err
	}

	go s.sweep()
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logger.Infof("Maintenance scheduler started (staging max age %s)", s.maxAge)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	done := s.cron.Stop()
	<-done.Done()
	s.running = false
	logger.Infof("Maintenance scheduler stopped")
}

func (s *Scheduler) sweep() {
	removed, err := s.sweeper.SweepStaging(s.maxAge)
	if err != nil {
		logger.Errorf("Staging sweep failed: %v", err)
		return
	}
	if removed > 0 {
		logger.Infof("Staging sweep removed %d stale directories", removed)
	}
}
