package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"agriloan/internal/platform/metrics"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	CheckOK      = "healthy"
	CheckWarning = "warning"
)

// Check names reported in Snapshot.Checks.
const (
	CheckCPU          = "cpu"
	CheckMemory       = "memory"
	CheckDisk         = "disk"
	CheckErrorRate    = "error_rate"
	CheckResponseTime = "response_time"
)

type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	ErrorRate     float64
	AvgLatency    time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUPercent:    90,
		MemoryPercent: 85,
		DiskPercent:   90,
		ErrorRate:     0.1,
		AvgLatency:    5 * time.Second,
	}
}

type Performance struct {
	UptimeSeconds         float64 `json:"uptime_seconds"`
	TotalPredictions      int64   `json:"total_predictions"`
	TotalErrors           int64   `json:"total_errors"`
	ErrorRate             float64 `json:"error_rate"`
	AveragePredictionTime float64 `json:"average_prediction_time"`
	PredictionsPerMinute  float64 `json:"predictions_per_minute"`
}

type Snapshot struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Checks      map[string]string `json:"checks"`
	Performance *Performance      `json:"performance,omitempty"`
	System      *SystemStats      `json:"system,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// counters is replaced wholesale on Reset. An increment racing a reset lands
// in the discarded generation.
type counters struct {
	start     time.Time
	total     atomic.Int64
	errors    atomic.Int64
	latencyNs atomic.Int64
}

type Monitor struct {
	sampler    SystemSampler
	thresholds Thresholds
	metrics    *metrics.Metrics
	now        func() time.Time

	cur  atomic.Pointer[counters]
	last atomic.Pointer[Snapshot]
}

type Option func(*Monitor)

func WithThresholds(t Thresholds) Option { return func(m *Monitor) { m.thresholds = t } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Monitor) { m.metrics = mt } }

func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

func New(sampler SystemSampler, opts ...Option) *Monitor {
	m := &Monitor{
		sampler:    sampler,
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.cur.Store(&counters{start: m.now()})
	return m
}

// RecordPrediction is safe for concurrent callers.
func (m *Monitor) RecordPrediction(latency time.Duration, ok bool) {
	c := m.cur.Load()
	c.total.Add(1)
	c.latencyNs.Add(int64(latency))
	if !ok {
		c.errors.Add(1)
	}
	m.metrics.ObservePrediction(latency, ok)
	slog.Debug("prediction recorded", "latency", latency, "success", ok)
}

// Reset starts a new counter generation.
func (m *Monitor) Reset() {
	m.cur.Store(&counters{start: m.now()})
	slog.Info("performance metrics reset")
}

func (m *Monitor) Performance() Performance {
	c := m.cur.Load()
	total := c.total.Load()
	errs := c.errors.Load()
	latency := time.Duration(c.latencyNs.Load())

	p := Performance{
		UptimeSeconds:    m.now().Sub(c.start).Seconds(),
		TotalPredictions: total,
		TotalErrors:      errs,
	}
	if total > 0 {
		p.ErrorRate = float64(errs) / float64(total)
		p.AveragePredictionTime = latency.Seconds() / float64(total)
	}
	if p.UptimeSeconds > 0 {
		p.PredictionsPerMinute = float64(total) / (p.UptimeSeconds / 60)
	}
	return p
}

// System samples host resources without evaluating them.
func (m *Monitor) System(ctx context.Context) (SystemStats, error) {
	return m.sampler.Sample(ctx)
}

// CheckHealth aggregates resource and request checks into a verdict. It never
// returns an error; internal failures yield StatusUnhealthy.
func (m *Monitor) CheckHealth(ctx context.Context) (snap Snapshot) {
	snap = Snapshot{
		Status:    StatusHealthy,
		Timestamp: m.now(),
		Checks:    map[string]string{},
	}
	defer func() {
		if r := recover(); r != nil {
			snap.Status = StatusUnhealthy
			snap.Error = fmt.Sprint(r)
		}
		if snap.Status == StatusUnhealthy {
			slog.Error("health check failed", "error", snap.Error)
		}
		m.last.Store(&snap)
		m.metrics.SetHealth(snap.Status)
	}()

	sys, err := m.sampler.Sample(ctx)
	if err != nil {
		snap.Status = StatusUnhealthy
		snap.Error = err.Error()
		return snap
	}
	snap.System = &sys
	perf := m.Performance()
	snap.Performance = &perf

	t := m.thresholds
	snap.flag(CheckCPU, sys.CPUPercent > t.CPUPercent)
	snap.flag(CheckMemory, sys.MemoryPercent > t.MemoryPercent)
	snap.flag(CheckDisk, sys.DiskPercent > t.DiskPercent)
	snap.flag(CheckErrorRate, perf.ErrorRate > t.ErrorRate)
	snap.flag(CheckResponseTime, perf.AveragePredictionTime > t.AvgLatency.Seconds())
	return snap
}

func (s *Snapshot) flag(name string, warn bool) {
	if !warn {
		s.Checks[name] = CheckOK
		return
	}
	s.Checks[name] = CheckWarning
	s.Status = StatusDegraded
}

// LastCheck returns the most recent snapshot, or nil before the first check.
func (m *Monitor) LastCheck() *Snapshot {
	return m.last.Load()
}
