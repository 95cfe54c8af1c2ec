package application

import (
	"context"
	"time"
)

type SortField string

const (
	SortByApplicationDate SortField = "application_date"
	SortByPredictedAmount SortField = "predicted_amount"
)

type Filter struct {
	DistrictIDs []string // required; an empty slice matches nothing
	Statuses    []Status
	SortBy      SortField
	Desc        bool
	Limit       int
	Offset      int
}

// PredictionStats summarises stored predictions since a point in time.
type PredictionStats struct {
	Count         int64   `json:"recent_predictions_count"`
	AvgAmount     float64 `json:"avg_predicted_amount"`
	MinAmount     float64 `json:"min_predicted_amount"`
	MaxAmount     float64 `json:"max_predicted_amount"`
	AvgConfidence float64 `json:"avg_confidence"`
	MinConfidence float64 `json:"min_confidence"`
	MaxConfidence float64 `json:"max_confidence"`
}

type Repository interface {
	Create(ctx context.Context, a *LoanApplication) error
	GetByApplicationID(ctx context.Context, applicationID string) (*LoanApplication, error)
	GetByApplicationIDForUpdate(ctx context.Context, applicationID string) (*LoanApplication, error)

	// SaveTransition persists a only while the stored status still equals from.
	// Returns ErrStaleStatus when another writer moved it first.
	SaveTransition(ctx context.Context, a *LoanApplication, from Status) error

	ListByFarmer(ctx context.Context, farmerID string, limit, offset int) ([]LoanApplication, error)
	List(ctx context.Context, f Filter) ([]LoanApplication, error)
	PredictionStats(ctx context.Context, since time.Time) (PredictionStats, error)
}

type ReviewRepository interface {
	Append(ctx context.Context, r *ApplicationReview) error
	// Ordered by review_date then id, oldest first.
	ListByApplication(ctx context.Context, applicationPK uint64) ([]ApplicationReview, error)
}

type YieldHistoryRepository interface {
	Create(ctx context.Context, y *YieldHistory) error
}
