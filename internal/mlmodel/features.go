package mlmodel

import (
	"strings"

	"agriloan/internal/domain/apperr"
)

// Features is one scoring request. Past-yield fields default to 0 when the
// farmer has no history.
type Features struct {
	FarmSize        float64
	Crop            string
	PastYieldKg     float64
	PastRevenue     float64
	ExpectedYieldKg float64
	ExpectedRevenue float64
}

// Validate reports caller errors. These never count against the model.
func (f Features) Validate() error {
	switch {
	case f.FarmSize <= 0:
		return apperr.Invalid("farm size must be positive")
	case strings.TrimSpace(f.Crop) == "":
		return apperr.Invalid("crop is required")
	case f.PastYieldKg < 0 || f.PastRevenue < 0:
		return apperr.Invalid("past yield must not be negative")
	case f.ExpectedYieldKg <= 0:
		return apperr.Invalid("expected yield must be positive")
	case f.ExpectedRevenue <= 0:
		return apperr.Invalid("expected revenue must be positive")
	}
	return nil
}

func (f Features) hasHistory() bool {
	return f.PastYieldKg > 0 && f.PastRevenue > 0
}
