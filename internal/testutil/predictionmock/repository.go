package predictionmock

import (
	"agriloan/internal/domain/prediction"
	"context"
	"sync"
	"time"
)

var _ prediction.Repository = (*Repo)(nil)

type Repo struct {
	CreateFn          func(ctx context.Context, r *prediction.Record) error
	DeleteOlderThanFn func(ctx context.Context, cutoff time.Time) (int64, error)

	mu      sync.Mutex
	Created []prediction.Record
}

func (m *Repo) Create(ctx context.Context, r *prediction.Record) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, *r)
	return nil
}

func (m *Repo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFn != nil {
		return m.DeleteOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}
