package mysql

import (
	"context"
	"time"

	"agriloan/internal/domain/prediction"

	"gorm.io/gorm"
)

type PredictionRepository struct{ db *gorm.DB }

func NewPredictionRepository(db *gorm.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) Create(ctx context.Context, rec *prediction.Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *PredictionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&prediction.Record{})
	return res.RowsAffected, res.Error
}
