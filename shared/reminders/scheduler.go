package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the reminder scheduler.
type SchedulerConfig struct {
	// Interval is how often a sweep runs.
	Interval time.Duration
	// Timeout bounds a single sweep.
	Timeout time.Duration
	// RunOnStart runs a sweep immediately instead of waiting one interval.
	RunOnStart bool
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   5 * time.Minute,
		Timeout:    4 * time.Minute,
		RunOnStart: true,
	}
}

// Scheduler runs sweeps on a fixed interval. When a Locker is set only one
// process sweeps at a time.
type Scheduler struct {
	config  SchedulerConfig
	sweeper Sweeper
	locker  Locker
	metrics *Metrics
	logger  Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	lastRun time.Time
}

// NewScheduler creates a new reminder scheduler. locker and metrics may be nil.
func NewScheduler(config SchedulerConfig, sweeper Sweeper, locker Locker, metrics *Metrics, logger Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Scheduler{
		config:  config,
		sweeper: sweeper,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start runs the scheduler loop until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("reminder scheduler started", "interval", s.config.Interval)

	if s.config.RunOnStart {
		s.RunNow(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.RunNow(ctx)
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// ErrSweepLocked is returned by Trigger when another process holds the
// sweep lock.
var ErrSweepLocked = errors.New("sweep already running")

// RunNow performs one sweep, honoring the lock. It reports whether the
// sweep ran.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	_, err := s.Trigger(ctx)
	switch {
	case errors.Is(err, ErrSweepLocked):
		s.logger.Debug("sweep already running elsewhere")
		return false
	case errors.Is(err, errLockFailed):
		s.logger.Error("failed to acquire sweep lock", "error", err)
		return false
	case err != nil:
		s.logger.Error("reminder sweep failed", "error", err)
	}
	return true
}

var errLockFailed = errors.New("acquire sweep lock")

// Trigger performs one sweep under the lock and returns its stats.
func (s *Scheduler) Trigger(ctx context.Context) (SweepStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return SweepStats{}, fmt.Errorf("%w: %v", errLockFailed, err)
		}
		if !ok {
			s.metrics.IncLocked()
			return SweepStats{}, ErrSweepLocked
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("failed to release sweep lock", "error", err)
			}
		}()
	}

	now := s.now()
	stats, err := s.sweeper.Sweep(ctx, now)

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
	return stats, err
}

// LastRun returns the start time of the last completed sweep.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
