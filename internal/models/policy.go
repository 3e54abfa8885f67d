package models

import (
	"time"

	"github.com/gridquote/pricing-go/internal/utils"
)

// EquipmentTypeAll is the wildcard equipment type. An active policy for
// "all" is the second tier of policy resolution, before the built-in
// default.
const EquipmentTypeAll = "all"

// Unit keys used to look up guidance bounds in a policy's floor/ceiling
// maps. Each equipment type maps to one of these, for solar depending on
// project capacity.
const (
	UnitKeyPerKWh            = "per_kwh"
	UnitKeyPerWattUtility    = "per_watt_utility"
	UnitKeyPerWattCommercial = "per_watt_commercial"
	UnitKeyPerKW             = "per_kw"
)

// PricingPolicy is the versioned configuration governing aggregation for
// one equipment type (or the "all" wildcard). Weight maps are stored as
// JSONB but surface as typed maps so the evaluation path never touches
// untyped dictionaries.
type PricingPolicy struct {
	ID                     int64                     `json:"id" db:"id"`
	Name                   string                    `json:"name" db:"name"`
	EquipmentType          string                    `json:"equipment_type" db:"equipment_type"`
	SourceWeights          map[SourceType]float64    `json:"source_weights" db:"source_weights"`
	FrequencyWeights       map[DataFrequency]float64 `json:"frequency_weights" db:"frequency_weights"`
	ReliabilityMultiplier  float64                   `json:"reliability_multiplier" db:"reliability_multiplier"`
	AgeDecayFactor         float64                   `json:"age_decay_factor" db:"age_decay_factor"`
	IndustryFloor          map[string]float64        `json:"industry_floor" db:"industry_floor"`
	IndustryCeiling        map[string]float64        `json:"industry_ceiling" db:"industry_ceiling"`
	IndustryGuidanceWeight float64                   `json:"industry_guidance_weight" db:"industry_guidance_weight"`
	OutlierStdThreshold    float64                   `json:"outlier_std_threshold" db:"outlier_std_threshold"`
	MinDataPoints          int                       `json:"min_data_points" db:"min_data_points"`
	RegionalMultipliers    map[string]float64        `json:"regional_multipliers" db:"regional_multipliers"`
	IsActive               bool                      `json:"is_active" db:"is_active"`
	Priority               int                       `json:"priority" db:"priority"`
	CreatedAt              time.Time                 `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time                 `json:"updated_at" db:"updated_at"`
}

// DefaultPolicy returns the engine-internal policy used when no active
// row exists for the requested equipment type or the "all" wildcard.
// Policy resolution must terminate here; absent configuration is a
// normal state, not a fault.
func DefaultPolicy() *PricingPolicy {
	return &PricingPolicy{
		Name:          "engine_default",
		EquipmentType: EquipmentTypeAll,
		SourceWeights: map[SourceType]float64{
			SourceTypeGovernment:   35,
			SourceTypeDataProvider: 30,
			SourceTypeManufacturer: 20,
			SourceTypeRSSFeed:      10,
			SourceTypeWebScrape:    5,
			SourceTypeAPI:          0,
		},
		FrequencyWeights: map[DataFrequency]float64{
			FrequencyDaily:   0.95,
			FrequencyWeekly:  0.85,
			FrequencyMonthly: 0.70,
		},
		ReliabilityMultiplier:  1.0,
		AgeDecayFactor:         0.01,
		IndustryFloor:          map[string]float64{},
		IndustryCeiling:        map[string]float64{},
		IndustryGuidanceWeight: 0.40,
		OutlierStdThreshold:    2.0,
		MinDataPoints:          3,
		RegionalMultipliers:    map[string]float64{},
		IsActive:               true,
	}
}

// Validate enforces the write-time invariants for a policy row so the
// evaluation path never needs defensive checks beyond the documented
// per-key defaults.
func (p *PricingPolicy) Validate() error {
	if p.EquipmentType == "" {
		return utils.NewValidationError("equipment type is required")
	}
	for st := range p.SourceWeights {
		if !ValidSourceType(st) {
			return utils.NewValidationErrorf("unknown source type %q in source weights", st)
		}
	}
	for f, w := range p.FrequencyWeights {
		if !ValidDataFrequency(f) {
			return utils.NewValidationErrorf("unknown frequency %q in frequency weights", f)
		}
		if w <= 0 || w > 1 {
			return utils.NewValidationErrorf("frequency weight for %q must be in (0,1], got %v", f, w)
		}
	}
	if p.AgeDecayFactor < 0 {
		return utils.NewValidationErrorf("age decay factor must be non-negative, got %v", p.AgeDecayFactor)
	}
	if p.IndustryGuidanceWeight < 0 || p.IndustryGuidanceWeight > 1 {
		return utils.NewValidationErrorf("guidance weight must be within [0,1], got %v", p.IndustryGuidanceWeight)
	}
	if p.OutlierStdThreshold <= 0 {
		return utils.NewValidationErrorf("outlier std threshold must be positive, got %v", p.OutlierStdThreshold)
	}
	if p.MinDataPoints < 1 {
		return utils.NewValidationErrorf("min data points must be at least 1, got %d", p.MinDataPoints)
	}
	for region, m := range p.RegionalMultipliers {
		if m <= 0 {
			return utils.NewValidationErrorf("regional multiplier for %q must be positive, got %v", region, m)
		}
	}
	return nil
}

// RegionalMultiplier returns the multiplier for region, defaulting to 1.
func (p *PricingPolicy) RegionalMultiplier(region string) float64 {
	if m, ok := p.RegionalMultipliers[region]; ok {
		return m
	}
	return 1.0
}
