// Package scheduler runs the time-driven side of the engine: the daily
// before-deadline sweep, the overdue sweep and the outbox drain.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/config"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/metrics"
)

// DeadlineSweeper scans for obligations approaching their deadline.
type DeadlineSweeper interface {
	SweepDeadlines(now time.Time) (int, error)
}

// OverdueMarker transitions past-deadline obligations to overdue.
type OverdueMarker interface {
	MarkOverdue(now time.Time) (int, error)
}

// Drainer sends the due notification jobs.
type Drainer interface {
	Drain(ctx context.Context, now time.Time) (int, error)
}

// Scheduler manages the periodic sweeps. Every job is single-flight: a
// cycle still running when the next tick fires makes the new tick a
// no-op instead of an overlapping run.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.SweepConfig
	deadlines DeadlineSweeper
	overdue   OverdueMarker
	drainer   Drainer
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	deadlineEntry cron.EntryID
	deadlineMu    sync.Mutex
	overdueMu     sync.Mutex
	drainMu       sync.Mutex

	isRunning bool
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SweepConfig, deadlines DeadlineSweeper, overdue OverdueMarker, drainer Drainer, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(),
		cfg:       cfg,
		deadlines: deadlines,
		overdue:   overdue,
		drainer:   drainer,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	deadlineSpec := fmt.Sprintf("0 %d * * *", s.cfg.DeadlineHour)
	entryID, err := s.cron.AddFunc(deadlineSpec, s.runDeadlineSweep)
	if err != nil {
		return fmt.Errorf("failed to add deadline sweep job: %w", err)
	}
	s.deadlineEntry = entryID

	overdueSpec := fmt.Sprintf("@every %dm", s.cfg.OverdueIntervalMinutes)
	if _, err := s.cron.AddFunc(overdueSpec, s.runOverdueSweep); err != nil {
		return fmt.Errorf("failed to add overdue sweep job: %w", err)
	}

	drainSpec := fmt.Sprintf("@every %ds", s.cfg.DispatchIntervalSecs)
	if _, err := s.cron.AddFunc(drainSpec, s.runDrain); err != nil {
		return fmt.Errorf("failed to add dispatch drain job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started: deadline sweep daily at %02d:00, overdue sweep every %dm, dispatch every %ds",
		s.cfg.DeadlineHour, s.cfg.OverdueIntervalMinutes, s.cfg.DispatchIntervalSecs)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runDeadlineSweep evaluates before_deadline rules once.
func (s *Scheduler) runDeadlineSweep() {
	if !s.deadlineMu.TryLock() {
		logrus.Warn("Deadline sweep still running, skipping this cycle")
		return
	}
	defer s.deadlineMu.Unlock()
	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	enqueued, err := s.deadlines.SweepDeadlines(start)
	if err != nil {
		logrus.Errorf("Deadline sweep failed: %v", err)
		return
	}
	if s.metrics != nil {
		s.metrics.SweepRuns.Inc()
	}
	logrus.Infof("Deadline sweep completed in %v, %d jobs enqueued", time.Since(start), enqueued)
}

// runOverdueSweep moves past-deadline obligations to overdue once.
func (s *Scheduler) runOverdueSweep() {
	if !s.overdueMu.TryLock() {
		logrus.Warn("Overdue sweep still running, skipping this cycle")
		return
	}
	defer s.overdueMu.Unlock()
	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.overdue.MarkOverdue(time.Now()); err != nil {
		logrus.Errorf("Overdue sweep failed: %v", err)
	}
	if s.metrics != nil {
		s.metrics.SweepRuns.Inc()
	}
}

// runDrain sends the currently due outbox jobs once.
func (s *Scheduler) runDrain() {
	if !s.drainMu.TryLock() {
		// The previous drain is still sending; due jobs stay claimed
		// for the next tick.
		return
	}
	defer s.drainMu.Unlock()
	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.drainer.Drain(s.ctx, time.Now()); err != nil {
		logrus.Errorf("Dispatch drain failed: %v", err)
	}
}

// RunDeadlineSweepOnce runs the deadline sweep once (manual trigger).
func (s *Scheduler) RunDeadlineSweepOnce() {
	s.runDeadlineSweep()
}

// RunOverdueSweepOnce runs the overdue sweep once (manual trigger).
func (s *Scheduler) RunOverdueSweepOnce() {
	s.runOverdueSweep()
}

// RunDrainOnce drains the outbox once (manual trigger).
func (s *Scheduler) RunDrainOnce() {
	s.runDrain()
}

// NextDeadlineSweep returns the time of the next scheduled deadline sweep
func (s *Scheduler) NextDeadlineSweep() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.deadlineEntry).Next
}

// LastDeadlineSweep returns the time of the last deadline sweep
func (s *Scheduler) LastDeadlineSweep() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.deadlineEntry).Prev
}

// Wait waits for in-flight sweep cycles to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
