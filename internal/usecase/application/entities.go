package application

import (
	"math"

	domain "agriloan/internal/domain/application"
)

type SubmitInput struct {
	Crop            string   `json:"crop" validate:"required"`
	FarmSize        float64  `json:"farm_size" validate:"gt=0"`
	ExpectedYieldKg float64  `json:"expected_yield_kgs" validate:"gt=0"`
	ExpectedRevenue float64  `json:"expected_yield_mk" validate:"gt=0"`
	PastYieldKg     *float64 `json:"past_yield_kgs,omitempty" validate:"omitempty,gte=0"`
	PastRevenue     *float64 `json:"past_yield_mk,omitempty" validate:"omitempty,gte=0"`
}

type AssignInput struct {
	ApplicationID string `json:"-"`
	OfficerID     string `json:"officer_id" validate:"required"`
}

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

type DecideInput struct {
	ApplicationID  string  `json:"-"`
	Verdict        Verdict `json:"decision" validate:"required,oneof=approve reject"`
	Override       bool    `json:"override"`
	Amount         float64 `json:"amount"`
	OverrideReason string  `json:"override_reason"`
	Comments       string  `json:"comments"`
}

type ListInput struct {
	DistrictID string `query:"district_id"`
	Status     string `query:"status"`
	SortBy     string `query:"sort_by"`
	SortOrder  string `query:"sort_order"`
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
}

const (
	defaultLimit = 50
	maxLimit     = 100
)

// ApplicationDTO is an application with its review history, oldest first.
type ApplicationDTO struct {
	domain.LoanApplication
	Reviews []domain.ApplicationReview `json:"reviews,omitempty"`
}

// FallbackPolicy prices a submission when scoring is unavailable.
type FallbackPolicy struct {
	RevenueRatio float64
	Ceiling      float64
	Confidence   float64
}

func DefaultFallback() FallbackPolicy {
	return FallbackPolicy{RevenueRatio: 0.5, Ceiling: 300_000, Confidence: 0.5}
}

func (p FallbackPolicy) Amount(expectedRevenue float64) float64 {
	return cents(math.Min(expectedRevenue*p.RevenueRatio, p.Ceiling))
}

func cents(v float64) float64 { return math.Round(v*100) / 100 }
