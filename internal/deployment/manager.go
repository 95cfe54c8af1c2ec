package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"agriloan/internal/artifactstore"
	"agriloan/internal/domain/apperr"
	"agriloan/internal/domain/prediction"
	"agriloan/internal/mlmodel"
	"agriloan/internal/monitor"
	"agriloan/internal/platform/metrics"
)

const (
	backupPattern = "backup_*.json"
	backupLayout  = "20060102_150405.000000000"
)

var ErrNoBackup = fmt.Errorf("%w: no backup available", apperr.ErrConflict)

// ModelServer is the slice of *mlmodel.Server the manager drives.
type ModelServer interface {
	Open(ctx context.Context, path string) (*mlmodel.Handle, error)
	Swap(h *mlmodel.Handle) *mlmodel.Handle
	Current() *mlmodel.Handle
	Info() mlmodel.Info
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) monitor.Snapshot
	Reset()
}

type Config struct {
	BackupDir      string
	HealthInterval time.Duration
	CleanupHour    int
	CleanupMinute  int
	Retention      time.Duration
	JobTimeout     time.Duration
	StopTimeout    time.Duration
}

// Backup is a safety copy of a previously active artifact. handle is kept
// for copies made by this process so rollback needs no disk read.
type Backup struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	handle    *mlmodel.Handle
}

type Manager struct {
	server      ModelServer
	health      HealthChecker
	store       artifactstore.Store
	predictions prediction.Repository
	metrics     *metrics.Metrics
	cfg         Config
	now         func() time.Time

	mu      sync.Mutex
	backups []Backup

	sched scheduler
}

type Option func(*Manager)

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(
	server ModelServer,
	health HealthChecker,
	store artifactstore.Store,
	predictions prediction.Repository,
	cfg Config,
	opts ...Option,
) *Manager {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 5 * time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	m := &Manager{
		server:      server,
		health:      health,
		store:       store,
		predictions: predictions,
		cfg:         cfg,
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// DiscoverBackups seeds the backup list from BackupDir, newest first.
func (m *Manager) DiscoverBackups(ctx context.Context) error {
	entries, err := m.store.List(ctx, m.cfg.BackupDir, backupPattern)
	if err != nil {
		return apperr.Dependency("list backups", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backups = m.backups[:0]
	for _, e := range entries {
		m.backups = append(m.backups, Backup{Path: e.Path, CreatedAt: e.ModTime})
	}
	slog.Info("model backups discovered", "dir", m.cfg.BackupDir, "count", len(entries))
	return nil
}

// Deploy activates the artifact at path. The active artifact is copied to
// BackupDir first and nothing is swapped if that copy fails.
func (m *Manager) Deploy(ctx context.Context, path string) (mlmodel.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.deploy(ctx, path)
	m.metrics.IncDeployment("deploy", err == nil)
	if err != nil {
		slog.Error("model deploy failed", "path", path, "error", err)
		return mlmodel.Info{}, err
	}
	slog.Info("model deployed", "path", path, "version", info.ModelVersion)
	return info, nil
}

func (m *Manager) deploy(ctx context.Context, path string) (mlmodel.Info, error) {
	next, err := m.server.Open(ctx, path)
	if err != nil {
		return mlmodel.Info{}, apperr.Dependency("load model", err)
	}

	if cur := m.server.Current(); cur != nil {
		now := m.now()
		dst := filepath.Join(m.cfg.BackupDir, "backup_"+now.Format(backupLayout)+".json")
		if err := m.store.Save(ctx, dst, cur.Raw); err != nil {
			return mlmodel.Info{}, apperr.Dependency("backup model", err)
		}
		m.backups = append([]Backup{{Path: dst, CreatedAt: now, handle: cur}}, m.backups...)
		slog.Info("current model backed up", "path", dst)
	} else {
		slog.Warn("no active model to back up", "path", path)
	}

	m.server.Swap(next)
	m.health.Reset()
	return m.server.Info(), nil
}

// Rollback reactivates the newest backup and drops it from the list.
func (m *Manager) Rollback(ctx context.Context) (mlmodel.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.rollback(ctx)
	m.metrics.IncDeployment("rollback", err == nil)
	if err != nil {
		slog.Error("model rollback failed", "error", err)
		return mlmodel.Info{}, err
	}
	slog.Info("model rolled back", "path", info.ModelPath, "version", info.ModelVersion)
	return info, nil
}

func (m *Manager) rollback(ctx context.Context) (mlmodel.Info, error) {
	if len(m.backups) == 0 {
		return mlmodel.Info{}, ErrNoBackup
	}
	b := m.backups[0]
	h := b.handle
	if h == nil {
		var err error
		if h, err = m.server.Open(ctx, b.Path); err != nil {
			return mlmodel.Info{}, apperr.Dependency("load backup", err)
		}
	}
	m.server.Swap(h)
	m.backups = m.backups[1:]
	m.health.Reset()
	return m.server.Info(), nil
}

// Backups returns a copy of the backup list, newest first.
func (m *Manager) Backups() []Backup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Backup(nil), m.backups...)
}

type Status struct {
	DeploymentStatus string       `json:"deployment_status"`
	ModelInfo        mlmodel.Info `json:"model_info"`
	HealthStatus     string       `json:"health_status"`
	MonitoringActive bool         `json:"monitoring_active"`
	Backups          []Backup     `json:"backups"`
}

func (m *Manager) Status(ctx context.Context) Status {
	info := m.server.Info()
	st := Status{
		DeploymentStatus: "inactive",
		ModelInfo:        info,
		HealthStatus:     m.health.CheckHealth(ctx).Status,
		MonitoringActive: m.sched.running(),
		Backups:          m.Backups(),
	}
	if info.ModelLoaded {
		st.DeploymentStatus = "active"
	}
	return st
}
