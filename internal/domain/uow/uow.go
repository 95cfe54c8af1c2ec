package uow

import (
	"agriloan/internal/domain/application"
	"agriloan/internal/domain/prediction"
	"context"
)

// Repos are bound to the same transaction.
type Repos struct {
	Applications application.Repository
	Reviews      application.ReviewRepository
	YieldHistory application.YieldHistoryRepository
	Predictions  prediction.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the application row first, then pass it in
	WithinApplicationTx(ctx context.Context, applicationID string, fn func(r Repos, a *application.LoanApplication) error) error
}
