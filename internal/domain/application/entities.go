package application

import (
	"time"
)

type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusDisbursed   Status = "disbursed"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusDisbursed:
		return st, true
	}
	return "", false
}

// Pending covers everything still waiting on a human decision.
func (s Status) Pending() bool { return s == StatusSubmitted || s == StatusUnderReview }

// Decided reports whether approval fields are expected to be stamped.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusDisbursed
}

// PendingStatuses is the "pending" listing filter.
var PendingStatuses = []Status{StatusSubmitted, StatusUnderReview}

type ReviewAction string

const (
	ActionRecommendApproval ReviewAction = "recommend_approval"
	ActionRequestChanges    ReviewAction = "request_changes"
	ActionReject            ReviewAction = "reject"
)

// Table: loan_applications
type LoanApplication struct {
	ID            uint64 `gorm:"primaryKey;column:id" json:"-"`
	ApplicationID string `gorm:"column:application_id;size:32;uniqueIndex" json:"application_id"`
	FarmerID      string `gorm:"column:farmer_id;size:32;index" json:"farmer_id"`
	CropID        string `gorm:"column:crop_id;size:32" json:"crop_id"`
	DistrictID    string `gorm:"column:district_id;size:32;index" json:"district_id"`

	FarmSizeHectares float64  `gorm:"column:farm_size_hectares;type:decimal(10,2)" json:"farm_size_hectares"`
	ExpectedYieldKg  float64  `gorm:"column:expected_yield_kg;type:decimal(10,2)" json:"expected_yield_kg"`
	ExpectedRevenue  float64  `gorm:"column:expected_revenue_mwk;type:decimal(12,2)" json:"expected_revenue_mwk"`
	PastYieldKg      *float64 `gorm:"column:past_yield_kg;type:decimal(10,2)" json:"past_yield_kg,omitempty"`
	PastRevenue      *float64 `gorm:"column:past_revenue_mwk;type:decimal(12,2)" json:"past_revenue_mwk,omitempty"`

	Status Status `gorm:"column:status;type:enum('draft','submitted','under_review','approved','rejected','disbursed');default:'draft';index" json:"status"`

	// Model prediction. A fallback amount is stored here when scoring failed.
	PredictedAmount      *float64   `gorm:"column:predicted_amount_mwk;type:decimal(12,2)" json:"predicted_amount_mwk,omitempty"`
	PredictionConfidence *float64   `gorm:"column:prediction_confidence;type:decimal(5,2)" json:"prediction_confidence,omitempty"`
	PredictionDate       *time.Time `gorm:"column:prediction_date;index" json:"prediction_date,omitempty"`
	PredictionFallback   bool       `gorm:"column:prediction_fallback;default:false" json:"prediction_fallback"`

	// Final decision
	ApprovedAmount *float64   `gorm:"column:approved_amount_mwk;type:decimal(12,2)" json:"approved_amount_mwk,omitempty"`
	ApprovalDate   *time.Time `gorm:"column:approval_date" json:"approval_date,omitempty"`
	ApprovedBy     *string    `gorm:"column:approved_by;size:32" json:"approved_by,omitempty"`
	OverrideReason *string    `gorm:"column:override_reason;type:text" json:"override_reason,omitempty"`

	CreatedAt time.Time `gorm:"column:application_date;autoCreateTime;index" json:"application_date"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (LoanApplication) TableName() string { return "loan_applications" }

// Table: application_reviews (append-only)
type ApplicationReview struct {
	ID            uint64       `gorm:"primaryKey;column:id;autoIncrement" json:"-"`
	ReviewID      string       `gorm:"column:review_id;size:32;uniqueIndex" json:"review_id"`
	ApplicationID uint64       `gorm:"column:application_id;not null;index" json:"-"`
	ReviewerID    string       `gorm:"column:reviewer_id;size:32;not null" json:"reviewer_id"`
	ReviewDate    time.Time    `gorm:"column:review_date;not null" json:"review_date"`
	Comments      string       `gorm:"column:comments;type:text" json:"comments"`
	Action        ReviewAction `gorm:"column:action;type:enum('recommend_approval','request_changes','reject');not null" json:"action"`
}

func (ApplicationReview) TableName() string { return "application_reviews" }

// Table: yield_history
type YieldHistory struct {
	ID         uint64    `gorm:"primaryKey;column:id" json:"-"`
	FarmerID   string    `gorm:"column:farmer_id;size:32;index" json:"farmer_id"`
	CropID     string    `gorm:"column:crop_id;size:32" json:"crop_id"`
	Year       int       `gorm:"column:year;not null" json:"year"`
	YieldKg    float64   `gorm:"column:yield_amount_kg;type:decimal(10,2)" json:"yield_amount_kg"`
	RevenueMWK float64   `gorm:"column:revenue_mwk;type:decimal(12,2)" json:"revenue_mwk"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (YieldHistory) TableName() string { return "yield_history" }
