package prediction

import (
	"context"
	"time"
)

// Table: prediction_records. One row per scoring attempt, pruned by retention.
type Record struct {
	ID            uint64    `gorm:"primaryKey;column:id"`
	RecordID      string    `gorm:"column:record_id;size:32;uniqueIndex"`
	ApplicationID string    `gorm:"column:application_id;size:32;index"`
	ModelVersion  string    `gorm:"column:model_version;size:32"`
	Amount        float64   `gorm:"column:amount_mwk;type:decimal(12,2)"`
	Confidence    float64   `gorm:"column:confidence;type:decimal(5,2)"`
	LatencyMS     int64     `gorm:"column:latency_ms"`
	Fallback      bool      `gorm:"column:fallback"`
	Error         string    `gorm:"column:error;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (Record) TableName() string { return "prediction_records" }

type Repository interface {
	Create(ctx context.Context, r *Record) error
	// DeleteOlderThan removes records created before cutoff and reports how many.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
