package mysql

import (
	"testing"
	"time"

	"agriloan/internal/domain/actor"
	"agriloan/internal/domain/application"
	"agriloan/internal/domain/prediction"
	"agriloan/internal/domain/reference"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// --- SQLite-friendly shadows for tables whose domain schema uses ENUM ---

type applicationSQLite struct {
	ID                   uint64     `gorm:"primaryKey;column:id"`
	ApplicationID        string     `gorm:"size:32;column:application_id;uniqueIndex"`
	FarmerID             string     `gorm:"size:32;column:farmer_id"`
	CropID               string     `gorm:"size:32;column:crop_id"`
	DistrictID           string     `gorm:"size:32;column:district_id"`
	FarmSizeHectares     float64    `gorm:"column:farm_size_hectares"`
	ExpectedYieldKg      float64    `gorm:"column:expected_yield_kg"`
	ExpectedRevenue      float64    `gorm:"column:expected_revenue_mwk"`
	PastYieldKg          *float64   `gorm:"column:past_yield_kg"`
	PastRevenue          *float64   `gorm:"column:past_revenue_mwk"`
	Status               string     `gorm:"type:text;column:status;default:'draft'"` // ← no enum
	PredictedAmount      *float64   `gorm:"column:predicted_amount_mwk"`
	PredictionConfidence *float64   `gorm:"column:prediction_confidence"`
	PredictionDate       *time.Time `gorm:"column:prediction_date"`
	PredictionFallback   bool       `gorm:"column:prediction_fallback;default:false"`
	ApprovedAmount       *float64   `gorm:"column:approved_amount_mwk"`
	ApprovalDate         *time.Time `gorm:"column:approval_date"`
	ApprovedBy           *string    `gorm:"column:approved_by"`
	OverrideReason       *string    `gorm:"column:override_reason"`
	CreatedAt            time.Time  `gorm:"column:application_date"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (applicationSQLite) TableName() string { return "loan_applications" }

type reviewSQLite struct {
	ID            uint64    `gorm:"primaryKey;column:id"`
	ReviewID      string    `gorm:"size:32;column:review_id"`
	ApplicationID uint64    `gorm:"column:application_id"`
	ReviewerID    string    `gorm:"size:32;column:reviewer_id"`
	ReviewDate    time.Time `gorm:"column:review_date"`
	Comments      string    `gorm:"type:text;column:comments"`
	Action        string    `gorm:"type:text;column:action"` // ← no enum
}

func (reviewSQLite) TableName() string { return "application_reviews" }

type userSQLite struct {
	ID         uint64         `gorm:"primaryKey;column:id"`
	UserID     string         `gorm:"size:32;column:user_id"`
	FirstName  string         `gorm:"column:first_name"`
	LastName   string         `gorm:"column:last_name"`
	Email      *string        `gorm:"column:email"`
	Role       string         `gorm:"type:text;column:role"` // ← no enum
	DistrictID *string        `gorm:"column:district_id"`
	IsActive   bool           `gorm:"column:is_active"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at"`
}

func (userSQLite) TableName() string { return "users" }

// openTestDB creates an in-memory sqlite DB with the sqlite-safe shadows plus
// the domain models that carry no ENUM columns.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every pooled connection to :memory: would be a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&applicationSQLite{},
		&reviewSQLite{},
		&userSQLite{},
		&application.YieldHistory{},
		&prediction.Record{},
		&reference.District{},
		&reference.CropType{},
		&actor.SupervisorAssignment{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func fptr(v float64) *float64 { return &v }

func sptr(v string) *string { return &v }
