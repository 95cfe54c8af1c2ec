package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"agriloan/internal/monitor"
)

const (
	JobHealthCheck = "health_check"
	JobCleanup     = "prediction_cleanup"
)

var (
	ErrSchedulerRunning = errors.New("scheduler already running")
	ErrStopTimeout      = errors.New("scheduler stop timed out")
)

type scheduler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (s *scheduler) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start launches the health check and daily cleanup loops. They run until
// Stop or until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.sched.mu.Lock()
	defer m.sched.mu.Unlock()
	if m.sched.cancel != nil {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.loop(gctx, JobHealthCheck, func(time.Time) time.Duration {
			return m.cfg.HealthInterval
		}, m.HealthCheck)
	})
	g.Go(func() error {
		return m.loop(gctx, JobCleanup, func(now time.Time) time.Duration {
			return nextDaily(now, m.cfg.CleanupHour, m.cfg.CleanupMinute)
		}, m.Cleanup)
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	m.sched.cancel = cancel
	m.sched.done = done

	slog.Info("model monitoring started",
		"health_interval", m.cfg.HealthInterval,
		"cleanup_at", fmt.Sprintf("%02d:%02d", m.cfg.CleanupHour, m.cfg.CleanupMinute))
	return nil
}

// Stop cancels the loops and waits for an in-flight run, at most StopTimeout.
func (m *Manager) Stop() error {
	m.sched.mu.Lock()
	cancel, done := m.sched.cancel, m.sched.done
	m.sched.cancel, m.sched.done = nil, nil
	m.sched.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	t := time.NewTimer(m.cfg.StopTimeout)
	defer t.Stop()
	select {
	case err := <-done:
		slog.Info("model monitoring stopped")
		return err
	case <-t.C:
		slog.Warn("model monitoring stop timed out", "timeout", m.cfg.StopTimeout)
		return ErrStopTimeout
	}
}

func (m *Manager) loop(ctx context.Context, job string, next func(time.Time) time.Duration, run func(context.Context) error) error {
	for {
		t := time.NewTimer(next(m.now()))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		m.runJob(ctx, job, run)
	}
}

// runJob isolates one run. A failure or panic is logged and the loop goes on.
// Runs are detached from loop cancellation so Stop joins them instead of
// aborting them mid-way.
func (m *Manager) runJob(ctx context.Context, job string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return run(ctx)
	}()
	m.metrics.IncJobRun(job, err == nil)
	if err != nil {
		slog.Error("scheduled job failed", "job", job, "error", err, "took", time.Since(start))
		return
	}
	slog.Debug("scheduled job done", "job", job, "took", time.Since(start))
}

// HealthCheck runs one health check. Only an unhealthy verdict is an error.
func (m *Manager) HealthCheck(ctx context.Context) error {
	snap := m.health.CheckHealth(ctx)
	switch snap.Status {
	case monitor.StatusHealthy:
		return nil
	case monitor.StatusDegraded:
		slog.Warn("health check warning", "checks", snap.Checks)
		return nil
	default:
		return fmt.Errorf("model unhealthy: %s", snap.Error)
	}
}

// Cleanup deletes prediction records older than the retention window.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.predictions == nil || m.cfg.Retention <= 0 {
		return nil
	}
	cutoff := m.now().Add(-m.cfg.Retention)
	n, err := m.predictions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "delete old predictions")
	}
	slog.Info("prediction cleanup done", "deleted", n, "cutoff", cutoff)
	return nil
}

// nextDaily is the wait from now until the next hh:mm in now's location.
func nextDaily(now time.Time, hh, mm int) time.Duration {
	t := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t.Sub(now)
}

// ParseClock parses an "HH:MM" time of day.
func ParseClock(s string) (hh, mm int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parse time of day %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
