package applicationmock

import (
	domain "agriloan/internal/domain/application"
	"context"
	"time"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset read methods return context.Canceled, unset writes are no-ops.
type Repo struct {
	CreateFn                      func(ctx context.Context, a *domain.LoanApplication) error
	GetByApplicationIDFn          func(ctx context.Context, applicationID string) (*domain.LoanApplication, error)
	GetByApplicationIDForUpdateFn func(ctx context.Context, applicationID string) (*domain.LoanApplication, error)
	SaveTransitionFn              func(ctx context.Context, a *domain.LoanApplication, from domain.Status) error
	ListByFarmerFn                func(ctx context.Context, farmerID string, limit, offset int) ([]domain.LoanApplication, error)
	ListFn                        func(ctx context.Context, f domain.Filter) ([]domain.LoanApplication, error)
	PredictionStatsFn             func(ctx context.Context, since time.Time) (domain.PredictionStats, error)
}

func (m *Repo) Create(ctx context.Context, a *domain.LoanApplication) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}

func (m *Repo) GetByApplicationID(ctx context.Context, applicationID string) (*domain.LoanApplication, error) {
	if m.GetByApplicationIDFn != nil {
		return m.GetByApplicationIDFn(ctx, applicationID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByApplicationIDForUpdate(ctx context.Context, applicationID string) (*domain.LoanApplication, error) {
	if m.GetByApplicationIDForUpdateFn != nil {
		return m.GetByApplicationIDForUpdateFn(ctx, applicationID)
	}
	return nil, context.Canceled
}

func (m *Repo) SaveTransition(ctx context.Context, a *domain.LoanApplication, from domain.Status) error {
	if m.SaveTransitionFn != nil {
		return m.SaveTransitionFn(ctx, a, from)
	}
	return nil
}

func (m *Repo) ListByFarmer(ctx context.Context, farmerID string, limit, offset int) ([]domain.LoanApplication, error) {
	if m.ListByFarmerFn != nil {
		return m.ListByFarmerFn(ctx, farmerID, limit, offset)
	}
	return nil, context.Canceled
}

func (m *Repo) List(ctx context.Context, f domain.Filter) ([]domain.LoanApplication, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, f)
	}
	return nil, context.Canceled
}

func (m *Repo) PredictionStats(ctx context.Context, since time.Time) (domain.PredictionStats, error) {
	if m.PredictionStatsFn != nil {
		return m.PredictionStatsFn(ctx, since)
	}
	return domain.PredictionStats{}, context.Canceled
}

// ReviewRepo records appended reviews in order unless AppendFn is set.
type ReviewRepo struct {
	AppendFn            func(ctx context.Context, r *domain.ApplicationReview) error
	ListByApplicationFn func(ctx context.Context, applicationPK uint64) ([]domain.ApplicationReview, error)

	Appended []domain.ApplicationReview
}

func (m *ReviewRepo) Append(ctx context.Context, r *domain.ApplicationReview) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, r)
	}
	m.Appended = append(m.Appended, *r)
	return nil
}

func (m *ReviewRepo) ListByApplication(ctx context.Context, applicationPK uint64) ([]domain.ApplicationReview, error) {
	if m.ListByApplicationFn != nil {
		return m.ListByApplicationFn(ctx, applicationPK)
	}
	var out []domain.ApplicationReview
	for _, r := range m.Appended {
		if r.ApplicationID == applicationPK {
			out = append(out, r)
		}
	}
	return out, nil
}

type YieldHistoryRepo struct {
	CreateFn func(ctx context.Context, y *domain.YieldHistory) error
}

func (m *YieldHistoryRepo) Create(ctx context.Context, y *domain.YieldHistory) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, y)
	}
	return nil
}
