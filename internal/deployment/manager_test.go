package deployment

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agriloan/internal/artifactstore"
	"agriloan/internal/domain/apperr"
	"agriloan/internal/mlmodel"
	"agriloan/internal/monitor"
)

type fakeHealth struct {
	mu      sync.Mutex
	resets  int
	checks  int
	checkFn func(n int) monitor.Snapshot
}

func (f *fakeHealth) CheckHealth(context.Context) monitor.Snapshot {
	f.mu.Lock()
	f.checks++
	n, fn := f.checks, f.checkFn
	f.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	return monitor.Snapshot{Status: monitor.StatusHealthy}
}

func (f *fakeHealth) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeHealth) counts() (checks, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks, f.resets
}

type failingSave struct {
	artifactstore.Store
}

func (failingSave) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

// writeModel stores a linear artifact whose prediction is always intercept.
func writeModel(t *testing.T, dir, name string, intercept float64) string {
	t.Helper()
	a := mlmodel.Artifact{
		Format:   mlmodel.FormatLinear,
		Features: mlmodel.FeatureNames,
		Scaler:   mlmodel.Scaler{Mean: []float64{0, 0, 0, 0, 0}, Scale: []float64{1, 1, 1, 1, 1}},
		Linear:   &mlmodel.LinearHead{Intercept: intercept, Coefficients: make([]float64, 6)},
	}
	b, err := json.Marshal(a)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func predictAmount(t *testing.T, s *mlmodel.Server) float64 {
	t.Helper()
	p, err := s.Predict(context.Background(), mlmodel.Features{
		FarmSize: 1, Crop: "maize", ExpectedYieldKg: 1, ExpectedRevenue: 1,
	})
	require.NoError(t, err)
	return p.Amount
}

type fixture struct {
	dir     string
	server  *mlmodel.Server
	health  *fakeHealth
	manager *Manager
}

func newFixture(t *testing.T, store artifactstore.Store) *fixture {
	t.Helper()
	dir := t.TempDir()
	server := mlmodel.NewServer(artifactstore.NewFileStore(), mlmodel.Options{})
	require.NoError(t, server.Load(context.Background(), writeModel(t, dir, "v1.json", 100)))
	if store == nil {
		store = artifactstore.NewFileStore()
	}
	health := &fakeHealth{}
	m := NewManager(server, health, store, nil, Config{BackupDir: filepath.Join(dir, "backup")})
	return &fixture{dir: dir, server: server, health: health, manager: m}
}

func TestDeployThenRollback_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	before := f.server.Current()

	info, err := f.manager.Deploy(ctx, writeModel(t, f.dir, "v2.json", 200))
	require.NoError(t, err)
	assert.True(t, info.ModelLoaded)
	assert.NotSame(t, before, f.server.Current())
	assert.Equal(t, 200.0, predictAmount(t, f.server))

	backups := f.manager.Backups()
	require.Len(t, backups, 1)
	raw, err := os.ReadFile(backups[0].Path)
	require.NoError(t, err)
	assert.Equal(t, before.Raw, raw)

	_, err = f.manager.Rollback(ctx)
	require.NoError(t, err)
	assert.Same(t, before, f.server.Current())
	assert.Equal(t, 100.0, predictAmount(t, f.server))
	assert.Empty(t, f.manager.Backups())

	_, resets := f.health.counts()
	assert.Equal(t, 2, resets)
}

func TestRollback_NoBackupLeavesActive(t *testing.T) {
	f := newFixture(t, nil)
	before := f.server.Current()

	_, err := f.manager.Rollback(context.Background())
	require.ErrorIs(t, err, ErrNoBackup)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Same(t, before, f.server.Current())

	_, resets := f.health.counts()
	assert.Zero(t, resets)
}

func TestDeploy_BackupFailureAborts(t *testing.T) {
	f := newFixture(t, failingSave{artifactstore.NewFileStore()})
	before := f.server.Current()

	_, err := f.manager.Deploy(context.Background(), writeModel(t, f.dir, "v2.json", 200))
	require.ErrorIs(t, err, apperr.ErrDependency)
	assert.Contains(t, err.Error(), "disk full")
	assert.Same(t, before, f.server.Current())
	assert.Empty(t, f.manager.Backups())

	_, resets := f.health.counts()
	assert.Zero(t, resets)
}

func TestDeploy_InvalidArtifactLeavesActive(t *testing.T) {
	f := newFixture(t, nil)
	before := f.server.Current()
	bad := filepath.Join(f.dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"format":"svm"}`), 0o644))

	_, err := f.manager.Deploy(context.Background(), bad)
	require.ErrorIs(t, err, apperr.ErrDependency)
	assert.Same(t, before, f.server.Current())
	assert.Empty(t, f.manager.Backups())
}

func TestDeploy_NothingActiveSkipsBackup(t *testing.T) {
	dir := t.TempDir()
	server := mlmodel.NewServer(artifactstore.NewFileStore(), mlmodel.Options{})
	health := &fakeHealth{}
	m := NewManager(server, health, artifactstore.NewFileStore(), nil, Config{BackupDir: filepath.Join(dir, "backup")})

	_, err := m.Deploy(context.Background(), writeModel(t, dir, "v1.json", 5))
	require.NoError(t, err)
	assert.Empty(t, m.Backups())
	assert.Equal(t, 5.0, predictAmount(t, server))
}

func TestRollback_UsesNewestDiscoveredBackup(t *testing.T) {
	f := newFixture(t, nil)
	backupDir := filepath.Join(f.dir, "backup")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	old := writeModel(t, backupDir, "backup_a.json", 1)
	newer := writeModel(t, backupDir, "backup_b.json", 2)
	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)))

	require.NoError(t, f.manager.DiscoverBackups(context.Background()))
	require.Len(t, f.manager.Backups(), 2)

	info, err := f.manager.Rollback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newer, info.ModelPath)
	assert.Equal(t, 2.0, predictAmount(t, f.server))

	_, err = f.manager.Rollback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, predictAmount(t, f.server))

	_, err = f.manager.Rollback(context.Background())
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestRollback_UnreadableBackupKeepsList(t *testing.T) {
	f := newFixture(t, nil)
	backupDir := filepath.Join(f.dir, "backup")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "backup_x.json"), []byte("{"), 0o644))
	require.NoError(t, f.manager.DiscoverBackups(context.Background()))
	before := f.server.Current()

	_, err := f.manager.Rollback(context.Background())
	require.ErrorIs(t, err, apperr.ErrDependency)
	assert.Same(t, before, f.server.Current())
	assert.Len(t, f.manager.Backups(), 1)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.health.checkFn = func(int) monitor.Snapshot {
		return monitor.Snapshot{Status: monitor.StatusDegraded}
	}

	st := f.manager.Status(context.Background())
	assert.Equal(t, "active", st.DeploymentStatus)
	assert.True(t, st.ModelInfo.ModelLoaded)
	assert.Equal(t, monitor.StatusDegraded, st.HealthStatus)
	assert.False(t, st.MonitoringActive)
}
