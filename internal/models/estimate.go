package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEstimate is the engine output for one evaluation. It is created
// fresh on each query and is not persisted by the engine; callers may
// cache it.
type PriceEstimate struct {
	EquipmentType  string          `json:"equipment_type"`
	Region         string          `json:"region"`
	Technology     *string         `json:"technology,omitempty"`
	WeightedPrice  decimal.Decimal `json:"weighted_price"`
	PriceRangeLow  decimal.Decimal `json:"price_range_low"`
	PriceRangeHigh decimal.Decimal `json:"price_range_high"`
	FloorPrice decimal.Decimal `json:"floor_price"`
	// CeilingPrice is nil when the policy has no guidance ceiling for
	// the equipment's unit key, so unbounded estimates omit the field
	// instead of reporting a ceiling of zero.
	CeilingPrice *decimal.Decimal `json:"ceiling_price,omitempty"`
	// SampleCount is how many matching observations were selected;
	// SurvivingCount is how many remained after outlier filtering. The
	// two differ when the filter removed rows, which lets callers tell
	// "nothing matched" apart from "everything was filtered".
	SampleCount    int             `json:"sample_count"`
	SurvivingCount int             `json:"surviving_count"`
	Confidence     decimal.Decimal `json:"confidence"`
	PolicyName     string          `json:"policy_name"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
