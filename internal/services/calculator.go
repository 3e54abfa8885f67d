package services

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridquote/pricing-go/internal/models"
)

const (
	// Per-observation weight defaults when a policy has no entry for a
	// source type or frequency.
	defaultSourceWeight    = 5.0
	defaultFrequencyWeight = 0.7

	// Fixed confidence for the sparse-data branch: too little evidence
	// to trust a weighted mean, so the estimate leans on guidance bounds.
	sparseDataConfidence = 0.3

	// Confidence saturates once this many observations back the estimate.
	confidenceSaturationCount = 10.0

	// Solar projects at or above this capacity use the utility-scale
	// guidance bound instead of the commercial one.
	solarUtilityThresholdKW = 5000.0

	// Presentation band around the final price. Not a statistical
	// interval.
	rangeBandFraction = 0.15
)

// FilterOutliers removes observations whose price lies further than
// stdThreshold sample standard deviations from the sample mean. The
// statistics are computed once over the full input, before any removal;
// secondary outliers revealed by the first pass are deliberately left
// uncaught in exchange for predictable, non-runaway filtering.
//
// With fewer than two observations, or when every price is identical
// (zero deviation), the input passes through unchanged.
func FilterOutliers(observations []models.PriceObservation, stdThreshold float64) []models.PriceObservation {
	if len(observations) < 2 {
		return observations
	}

	prices := make([]float64, len(observations))
	var sum float64
	for i, obs := range observations {
		prices[i], _ = obs.PricePerUnit.Float64()
		sum += prices[i]
	}
	mean := sum / float64(len(prices))

	var sqSum float64
	for _, p := range prices {
		sqSum += (p - mean) * (p - mean)
	}
	std := math.Sqrt(sqSum / float64(len(prices)-1))
	if std == 0 {
		return observations
	}

	limit := stdThreshold * std
	survivors := make([]models.PriceObservation, 0, len(observations))
	for i, obs := range observations {
		if math.Abs(prices[i]-mean) <= limit {
			survivors = append(survivors, obs)
		}
	}
	return survivors
}

// ObservationWeight computes the trust- and recency-weight of a single
// observation under a policy:
//
//	sourceWeight × frequencyWeight × (reliability/5) × 1/(1 + decay × ageDays)
//
// A single fresh, high-reliability government observation can outweigh
// dozens of scraped ones; volume is subordinate to trust and freshness.
func ObservationWeight(obs *models.PriceObservation, policy *models.PricingPolicy, now time.Time) float64 {
	if obs.Source == nil {
		return 0
	}

	sourceWeight := defaultSourceWeight
	if w, ok := policy.SourceWeights[obs.Source.SourceType]; ok {
		sourceWeight = w
	}

	frequencyWeight := defaultFrequencyWeight
	if w, ok := policy.FrequencyWeights[obs.Source.DataFrequency]; ok {
		frequencyWeight = w
	}

	reliability := float64(obs.Source.ReliabilityScore) / 5.0

	ageDays := now.Sub(obs.PriceDate).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	recency := 1 / (1 + policy.AgeDecayFactor*ageDays)

	return sourceWeight * frequencyWeight * reliability * recency
}

// Aggregate folds the surviving observations into a weighted sum and a
// total weight. The weighted mean is weightedSum/totalWeight; callers
// must route a zero total weight to the insufficient-data branch rather
// than dividing.
func Aggregate(observations []models.PriceObservation, policy *models.PricingPolicy, now time.Time) (weightedSum, totalWeight float64) {
	for i := range observations {
		weight := ObservationWeight(&observations[i], policy, now)
		if weight <= 0 {
			continue
		}
		price, _ := observations[i].PricePerUnit.Float64()
		weightedSum += weight * price
		totalWeight += weight
	}
	return weightedSum, totalWeight
}

// GuidanceBounds is the resolved floor/ceiling pair for one evaluation.
// Bounded is false when the policy carries no ceiling for the equipment
// type's unit key; the clamp then degrades to [floor, +inf) and the
// guidance midpoint is unusable.
type GuidanceBounds struct {
	Floor   float64
	Ceiling float64
	Bounded bool
}

// UnitKeyFor maps an equipment type and project capacity to the unit key
// used in a policy's floor/ceiling maps. Solar splits on the 5 MW
// utility-scale threshold. Unknown equipment types return an empty key,
// which resolves to unbounded guidance.
func UnitKeyFor(equipmentType string, capacityKW float64) string {
	switch equipmentType {
	case "bess":
		return models.UnitKeyPerKWh
	case "solar":
		if capacityKW >= solarUtilityThresholdKW {
			return models.UnitKeyPerWattUtility
		}
		return models.UnitKeyPerWattCommercial
	case "wind", "generator", "inverter", "ev-charger":
		return models.UnitKeyPerKW
	}
	return ""
}

// ResolveGuidanceBounds looks up the floor and ceiling for an equipment
// type under a policy. A missing floor defaults to 0; a missing ceiling
// leaves the bounds open so unknown equipment types degrade to an
// effectively unclamped result instead of failing.
func ResolveGuidanceBounds(policy *models.PricingPolicy, equipmentType string, capacityKW float64) GuidanceBounds {
	key := UnitKeyFor(equipmentType, capacityKW)
	if key == "" {
		return GuidanceBounds{Floor: 0, Ceiling: math.Inf(1), Bounded: false}
	}

	bounds := GuidanceBounds{Floor: 0, Ceiling: math.Inf(1), Bounded: false}
	if floor, ok := policy.IndustryFloor[key]; ok {
		bounds.Floor = floor
	}
	if ceiling, ok := policy.IndustryCeiling[key]; ok {
		bounds.Ceiling = ceiling
		bounds.Bounded = true
	}
	return bounds
}

// Evaluate runs the full consensus pipeline over pre-selected
// observations: outlier filtering, weighted aggregation, guidance
// blending, regional adjustment, clamping and confidence scoring. It is
// a pure function of its inputs; every input combination, including a
// total absence of data, yields a complete estimate.
func Evaluate(observations []models.PriceObservation, policy *models.PricingPolicy, equipmentType, region string, capacityKW float64, technology *string, now time.Time) *models.PriceEstimate {
	survivors := FilterOutliers(observations, policy.OutlierStdThreshold)
	weightedSum, totalWeight := Aggregate(survivors, policy, now)
	bounds := ResolveGuidanceBounds(policy, equipmentType, capacityKW)
	guidanceMid := (bounds.Floor + bounds.Ceiling) / 2

	var blended, confidence float64
	switch {
	case totalWeight > 0 && len(survivors) >= policy.MinDataPoints:
		mean := weightedSum / totalWeight
		if bounds.Bounded {
			g := policy.IndustryGuidanceWeight
			blended = mean*(1-g) + guidanceMid*g
		} else {
			blended = mean
		}
		confidence = math.Min(1.0, float64(len(survivors))/confidenceSaturationCount)
	default:
		// Sparse data: the engine must not emit a noisy weighted mean.
		// Fall back to the guidance midpoint where bounds exist.
		switch {
		case bounds.Bounded:
			blended = guidanceMid
		case totalWeight > 0:
			blended = weightedSum / totalWeight
		default:
			blended = bounds.Floor
		}
		confidence = sparseDataConfidence
	}

	// Regional multiplier is applied exactly once, regardless of branch.
	blended *= policy.RegionalMultiplier(region)

	// Guidance bounds act as hard business limits even when the market
	// consensus is well supported. Reviewable per policy, not assumed
	// correct for every deployment.
	final := math.Min(math.Max(blended, bounds.Floor), bounds.Ceiling)

	estimate := &models.PriceEstimate{
		EquipmentType:  equipmentType,
		Region:         region,
		Technology:     technology,
		WeightedPrice:  decimal.NewFromFloat(final),
		PriceRangeLow:  decimal.NewFromFloat(final * (1 - rangeBandFraction)),
		PriceRangeHigh: decimal.NewFromFloat(final * (1 + rangeBandFraction)),
		FloorPrice:     decimal.NewFromFloat(bounds.Floor),
		SampleCount:    len(observations),
		SurvivingCount: len(survivors),
		Confidence:     decimal.NewFromFloat(confidence),
		PolicyName:     policy.Name,
		GeneratedAt:    now,
	}
	if bounds.Bounded {
		ceiling := decimal.NewFromFloat(bounds.Ceiling)
		estimate.CeilingPrice = &ceiling
	}
	return estimate
}
