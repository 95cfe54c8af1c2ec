package mysql

import (
	"context"
	"errors"
	"time"

	domain "agriloan/internal/domain/application"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApplicationRepository struct{ db *gorm.DB }

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, a *domain.LoanApplication) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ApplicationRepository) GetByApplicationID(ctx context.Context, applicationID string) (*domain.LoanApplication, error) {
	return r.first(r.db.WithContext(ctx), applicationID)
}

// GetByApplicationIDForUpdate takes a row lock; only meaningful inside a tx.
func (r *ApplicationRepository) GetByApplicationIDForUpdate(ctx context.Context, applicationID string) (*domain.LoanApplication, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), applicationID)
}

func (r *ApplicationRepository) first(q *gorm.DB, applicationID string) (*domain.LoanApplication, error) {
	var out domain.LoanApplication
	err := q.Where("application_id = ?", applicationID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveTransition writes every column except identity, guarded by the status
// the caller read.
func (r *ApplicationRepository) SaveTransition(ctx context.Context, a *domain.LoanApplication, from domain.Status) error {
	res := r.db.WithContext(ctx).
		Model(a).
		Where("status = ?", from).
		Select("*").
		Omit("ID", "ApplicationID", "CreatedAt").
		Updates(a)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleStatus
	}
	return nil
}

func (r *ApplicationRepository) ListByFarmer(ctx context.Context, farmerID string, limit, offset int) ([]domain.LoanApplication, error) {
	var out []domain.LoanApplication
	err := r.db.WithContext(ctx).
		Where("farmer_id = ?", farmerID).
		Order("application_date DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

var sortColumns = map[domain.SortField]string{
	domain.SortByApplicationDate: "application_date",
	domain.SortByPredictedAmount: "predicted_amount_mwk",
}

func (r *ApplicationRepository) List(ctx context.Context, f domain.Filter) ([]domain.LoanApplication, error) {
	out := []domain.LoanApplication{}
	if len(f.DistrictIDs) == 0 {
		return out, nil
	}

	q := r.db.WithContext(ctx).Where("district_id IN ?", f.DistrictIDs)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns[domain.SortByApplicationDate]
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: f.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: f.Desc})
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *ApplicationRepository) PredictionStats(ctx context.Context, since time.Time) (domain.PredictionStats, error) {
	var row struct {
		Count         int64
		AvgAmount     *float64
		MinAmount     *float64
		MaxAmount     *float64
		AvgConfidence *float64
		MinConfidence *float64
		MaxConfidence *float64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.LoanApplication{}).
		Select(`COUNT(*) AS count,
			AVG(predicted_amount_mwk) AS avg_amount,
			MIN(predicted_amount_mwk) AS min_amount,
			MAX(predicted_amount_mwk) AS max_amount,
			AVG(prediction_confidence) AS avg_confidence,
			MIN(prediction_confidence) AS min_confidence,
			MAX(prediction_confidence) AS max_confidence`).
		Where("prediction_date >= ? AND predicted_amount_mwk IS NOT NULL", since).
		Scan(&row).Error
	if err != nil {
		return domain.PredictionStats{}, err
	}
	return domain.PredictionStats{
		Count:         row.Count,
		AvgAmount:     orZero(row.AvgAmount),
		MinAmount:     orZero(row.MinAmount),
		MaxAmount:     orZero(row.MaxAmount),
		AvgConfidence: orZero(row.AvgConfidence),
		MinConfidence: orZero(row.MinConfidence),
		MaxConfidence: orZero(row.MaxConfidence),
	}, nil
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

type ReviewRepository struct{ db *gorm.DB }

func NewReviewRepository(db *gorm.DB) *ReviewRepository { return &ReviewRepository{db: db} }

func (r *ReviewRepository) Append(ctx context.Context, rv *domain.ApplicationReview) error {
	return r.db.WithContext(ctx).Create(rv).Error
}

func (r *ReviewRepository) ListByApplication(ctx context.Context, applicationPK uint64) ([]domain.ApplicationReview, error) {
	var out []domain.ApplicationReview
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationPK).
		Order("review_date ASC, id ASC").
		Find(&out).Error
	return out, err
}

type YieldHistoryRepository struct{ db *gorm.DB }

func NewYieldHistoryRepository(db *gorm.DB) *YieldHistoryRepository {
	return &YieldHistoryRepository{db: db}
}

func (r *YieldHistoryRepository) Create(ctx context.Context, y *domain.YieldHistory) error {
	return r.db.WithContext(ctx).Create(y).Error
}
