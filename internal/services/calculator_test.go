package services

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridquote/pricing-go/internal/models"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testObservation(price float64, sourceType models.SourceType, frequency models.DataFrequency, reliability int, ageDays int) models.PriceObservation {
	return models.PriceObservation{
		ID:            fmt.Sprintf("obs-%v-%d", price, ageDays),
		SourceID:      1,
		EquipmentType: "bess",
		PricePerUnit:  decimal.NewFromFloat(price),
		Unit:          "per_kwh",
		PriceDate:     testNow.AddDate(0, 0, -ageDays),
		Source: &models.DataSource{
			ID:               1,
			Name:             "test source",
			SourceType:       sourceType,
			ReliabilityScore: reliability,
			DataFrequency:    frequency,
			IsActive:         true,
		},
	}
}

func bessTestPolicy() *models.PricingPolicy {
	return &models.PricingPolicy{
		Name:          "bess_default",
		EquipmentType: "bess",
		SourceWeights: map[models.SourceType]float64{
			models.SourceTypeGovernment:   35,
			models.SourceTypeDataProvider: 30,
			models.SourceTypeManufacturer: 20,
			models.SourceTypeRSSFeed:      10,
			models.SourceTypeWebScrape:    5,
			models.SourceTypeAPI:          0,
		},
		FrequencyWeights: map[models.DataFrequency]float64{
			models.FrequencyDaily:   0.95,
			models.FrequencyWeekly:  0.85,
			models.FrequencyMonthly: 0.70,
			models.FrequencyAnnual:  0.40,
		},
		ReliabilityMultiplier:  1.0,
		AgeDecayFactor:         0.01,
		IndustryFloor:          map[string]float64{models.UnitKeyPerKWh: 100},
		IndustryCeiling:        map[string]float64{models.UnitKeyPerKWh: 175},
		IndustryGuidanceWeight: 0.45,
		OutlierStdThreshold:    2.0,
		MinDataPoints:          3,
		RegionalMultipliers:    map[string]float64{"north-america": 1.0, "europe": 1.08},
		IsActive:               true,
	}
}

func TestFilterOutliers_RemovesExtremeValue(t *testing.T) {
	observations := make([]models.PriceObservation, 0, 10)
	for i := 0; i < 9; i++ {
		observations = append(observations, testObservation(150+float64(i), models.SourceTypeDataProvider, models.FrequencyDaily, 4, i))
	}
	observations = append(observations, testObservation(10000, models.SourceTypeWebScrape, models.FrequencyDaily, 2, 1))

	survivors := FilterOutliers(observations, 2.0)

	require.Len(t, survivors, 9)
	for _, obs := range survivors {
		price, _ := obs.PricePerUnit.Float64()
		assert.Less(t, price, 1000.0)
	}
}

func TestFilterOutliers_IdenticalPricesPassThrough(t *testing.T) {
	observations := []models.PriceObservation{
		testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 1),
		testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 2),
	}

	survivors := FilterOutliers(observations, 2.0)

	assert.Equal(t, observations, survivors)
}

func TestFilterOutliers_FewerThanTwoObservations(t *testing.T) {
	single := []models.PriceObservation{testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0)}

	assert.Equal(t, single, FilterOutliers(single, 0.001))
	assert.Empty(t, FilterOutliers(nil, 2.0))
}

func TestFilterOutliers_TinyThresholdCanRemoveEverything(t *testing.T) {
	observations := []models.PriceObservation{
		testObservation(100, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(200, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
	}

	survivors := FilterOutliers(observations, 0.5)

	// Two equidistant points both sit exactly one deviation from the
	// mean, so a threshold of half a deviation removes both.
	assert.Empty(t, survivors)
}

func TestObservationWeight_Formula(t *testing.T) {
	policy := bessTestPolicy()
	obs := testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 10)

	weight := ObservationWeight(&obs, policy, testNow)

	// 35 × 0.95 × (5/5) × 1/(1 + 0.01×10)
	expected := 35 * 0.95 * 1.0 / 1.1
	assert.InDelta(t, expected, weight, 1e-9)
}

func TestObservationWeight_DefaultsForUnknownKeys(t *testing.T) {
	policy := bessTestPolicy()
	policy.SourceWeights = map[models.SourceType]float64{}
	policy.FrequencyWeights = map[models.DataFrequency]float64{}
	policy.AgeDecayFactor = 0

	obs := testObservation(120, models.SourceTypeManufacturer, models.FrequencyQuarterly, 5, 0)

	weight := ObservationWeight(&obs, policy, testNow)

	assert.InDelta(t, 5.0*0.7, weight, 1e-9)
}

func TestObservationWeight_MissingSource(t *testing.T) {
	obs := testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0)
	obs.Source = nil

	assert.Zero(t, ObservationWeight(&obs, bessTestPolicy(), testNow))
}

func TestAggregate_TrustOutweighsVolume(t *testing.T) {
	policy := bessTestPolicy()
	policy.AgeDecayFactor = 0

	observations := []models.PriceObservation{
		testObservation(100, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
	}
	for i := 0; i < 20; i++ {
		observations = append(observations, testObservation(200, models.SourceTypeWebScrape, models.FrequencyDaily, 1, 0))
	}

	weightedSum, totalWeight := Aggregate(observations, policy, testNow)
	require.Positive(t, totalWeight)
	mean := weightedSum / totalWeight

	// Government: 35×0.95×1.0 = 33.25. Scrape: 5×0.95×0.2 = 0.95 each,
	// 19 total for 20 rows. The single trusted row still dominates.
	assert.Less(t, mean, 150.0)
}

func TestAggregate_ZeroWeightObservationsExcluded(t *testing.T) {
	policy := bessTestPolicy()

	observations := []models.PriceObservation{
		testObservation(500, models.SourceTypeAPI, models.FrequencyDaily, 5, 0),
	}

	weightedSum, totalWeight := Aggregate(observations, policy, testNow)

	assert.Zero(t, weightedSum)
	assert.Zero(t, totalWeight)
}

func TestUnitKeyFor(t *testing.T) {
	tests := []struct {
		name          string
		equipmentType string
		capacityKW    float64
		want          string
	}{
		{"bess", "bess", 0, models.UnitKeyPerKWh},
		{"solar below utility threshold", "solar", 2000, models.UnitKeyPerWattCommercial},
		{"solar at utility threshold", "solar", 5000, models.UnitKeyPerWattUtility},
		{"solar above utility threshold", "solar", 80000, models.UnitKeyPerWattUtility},
		{"wind", "wind", 0, models.UnitKeyPerKW},
		{"generator", "generator", 0, models.UnitKeyPerKW},
		{"unknown type", "flux-capacitor", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnitKeyFor(tt.equipmentType, tt.capacityKW))
		})
	}
}

func TestResolveGuidanceBounds_UnknownTypeUnbounded(t *testing.T) {
	bounds := ResolveGuidanceBounds(bessTestPolicy(), "flux-capacitor", 0)

	assert.False(t, bounds.Bounded)
	assert.Zero(t, bounds.Floor)
	assert.True(t, math.IsInf(bounds.Ceiling, 1))
}

func TestEvaluate_NoObservationsFallsBackToGuidanceMidpoint(t *testing.T) {
	estimate := Evaluate(nil, bessTestPolicy(), "bess", "north-america", 0, nil, testNow)

	price, _ := estimate.WeightedPrice.Float64()
	confidence, _ := estimate.Confidence.Float64()

	assert.InDelta(t, 137.5, price, 1e-9)
	assert.InDelta(t, 0.3, confidence, 1e-9)
	assert.Zero(t, estimate.SampleCount)
	assert.Zero(t, estimate.SurvivingCount)
}

func TestEvaluate_FreshGovernmentObservationsBlendWithGuidance(t *testing.T) {
	observations := make([]models.PriceObservation, 0, 15)
	for i := 0; i < 15; i++ {
		observations = append(observations, testObservation(120, models.SourceTypeGovernment, models.FrequencyAnnual, 5, 0))
	}

	estimate := Evaluate(observations, bessTestPolicy(), "bess", "north-america", 0, nil, testNow)

	price, _ := estimate.WeightedPrice.Float64()
	confidence, _ := estimate.Confidence.Float64()

	// Weighted mean 120, blended 120×0.55 + 137.5×0.45 = 127.875,
	// already within [100, 175].
	assert.InDelta(t, 127.875, price, 1e-6)
	assert.InDelta(t, 1.0, confidence, 1e-9)
	assert.Equal(t, 15, estimate.SampleCount)
	assert.Equal(t, 15, estimate.SurvivingCount)

	require.NotNil(t, estimate.CeilingPrice)
	ceiling, _ := estimate.CeilingPrice.Float64()
	assert.InDelta(t, 175.0, ceiling, 1e-9)
}

func TestEvaluate_OutlierExcludedFromConsensus(t *testing.T) {
	policy := bessTestPolicy()
	policy.IndustryFloor = map[string]float64{models.UnitKeyPerWattCommercial: 0.5}
	policy.IndustryCeiling = map[string]float64{models.UnitKeyPerWattCommercial: 500}

	observations := make([]models.PriceObservation, 0, 10)
	for i := 0; i < 9; i++ {
		observations = append(observations, testObservation(150, models.SourceTypeDataProvider, models.FrequencyDaily, 4, 0))
	}
	observations = append(observations, testObservation(10000, models.SourceTypeWebScrape, models.FrequencyDaily, 2, 0))

	estimate := Evaluate(observations, policy, "solar", "north-america", 100, nil, testNow)

	assert.Equal(t, 10, estimate.SampleCount)
	assert.Equal(t, 9, estimate.SurvivingCount)

	price, _ := estimate.WeightedPrice.Float64()
	assert.Less(t, price, 500.0)
}

func TestEvaluate_RegionalMultiplierAppliedOnce(t *testing.T) {
	policy := bessTestPolicy()
	policy.RegionalMultipliers = map[string]float64{"europe": 1.10}

	estimate := Evaluate(nil, policy, "bess", "europe", 0, nil, testNow)

	price, _ := estimate.WeightedPrice.Float64()
	// Guidance midpoint 137.5 × 1.10 = 151.25.
	assert.InDelta(t, 151.25, price, 1e-9)
}

func TestEvaluate_ClampHoldsInEveryBranch(t *testing.T) {
	policy := bessTestPolicy()
	policy.RegionalMultipliers = map[string]float64{"expensive": 5.0}

	// Sufficient data far above ceiling, plus an aggressive multiplier.
	observations := []models.PriceObservation{
		testObservation(400, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(400, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(400, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
	}

	for _, region := range []string{"north-america", "expensive"} {
		estimate := Evaluate(observations, policy, "bess", region, 0, nil, testNow)
		price, _ := estimate.WeightedPrice.Float64()
		assert.GreaterOrEqual(t, price, 100.0)
		assert.LessOrEqual(t, price, 175.0)

		sparse := Evaluate(nil, policy, "bess", region, 0, nil, testNow)
		sparsePrice, _ := sparse.WeightedPrice.Float64()
		assert.GreaterOrEqual(t, sparsePrice, 100.0)
		assert.LessOrEqual(t, sparsePrice, 175.0)
	}
}

func TestEvaluate_InsufficientDataBelowMinimum(t *testing.T) {
	observations := []models.PriceObservation{
		testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(125, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
	}

	estimate := Evaluate(observations, bessTestPolicy(), "bess", "north-america", 0, nil, testNow)

	price, _ := estimate.WeightedPrice.Float64()
	confidence, _ := estimate.Confidence.Float64()

	// Two observations sit below min_data_points=3: guidance midpoint
	// wins over the (well-clustered) sample.
	assert.InDelta(t, 137.5, price, 1e-9)
	assert.InDelta(t, 0.3, confidence, 1e-9)
	assert.Equal(t, 2, estimate.SampleCount)
	assert.Equal(t, 2, estimate.SurvivingCount)
}

func TestEvaluate_UnknownEquipmentTypeDegradesGracefully(t *testing.T) {
	observations := []models.PriceObservation{
		testObservation(900, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(900, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(900, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
	}

	estimate := Evaluate(observations, bessTestPolicy(), "flux-capacitor", "north-america", 0, nil, testNow)

	price, _ := estimate.WeightedPrice.Float64()
	// No bounds for this type: the weighted mean passes through
	// unblended and unclamped.
	assert.InDelta(t, 900.0, price, 1e-6)
	assert.Nil(t, estimate.CeilingPrice)

	// An unbounded estimate must not advertise a zero ceiling on the
	// wire; the field disappears entirely.
	payload, err := json.Marshal(estimate)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "ceiling_price")
}

func TestEvaluate_ConfidenceAlwaysWithinUnitInterval(t *testing.T) {
	policy := bessTestPolicy()
	counts := []int{0, 1, 2, 3, 5, 10, 25}

	for _, n := range counts {
		observations := make([]models.PriceObservation, 0, n)
		for i := 0; i < n; i++ {
			observations = append(observations, testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, i))
		}

		estimate := Evaluate(observations, policy, "bess", "north-america", 0, nil, testNow)
		confidence, _ := estimate.Confidence.Float64()
		assert.GreaterOrEqual(t, confidence, 0.0, "count %d", n)
		assert.LessOrEqual(t, confidence, 1.0, "count %d", n)
	}
}

func TestEvaluate_ConfidenceGrowsWithSampleCount(t *testing.T) {
	policy := bessTestPolicy()

	observations := make([]models.PriceObservation, 0, 5)
	for i := 0; i < 5; i++ {
		observations = append(observations, testObservation(120, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0))
	}

	estimate := Evaluate(observations, policy, "bess", "north-america", 0, nil, testNow)
	confidence, _ := estimate.Confidence.Float64()
	assert.InDelta(t, 0.5, confidence, 1e-9)
}

func TestEvaluate_Deterministic(t *testing.T) {
	observations := []models.PriceObservation{
		testObservation(110, models.SourceTypeGovernment, models.FrequencyDaily, 5, 3),
		testObservation(130, models.SourceTypeDataProvider, models.FrequencyMonthly, 4, 20),
		testObservation(145, models.SourceTypeManufacturer, models.FrequencyQuarterly, 3, 45),
	}
	policy := bessTestPolicy()

	first := Evaluate(observations, policy, "bess", "europe", 0, nil, testNow)
	second := Evaluate(observations, policy, "bess", "europe", 0, nil, testNow)

	assert.Equal(t, first, second)
}

func TestEvaluate_PresentationBand(t *testing.T) {
	estimate := Evaluate(nil, bessTestPolicy(), "bess", "north-america", 0, nil, testNow)

	price, _ := estimate.WeightedPrice.Float64()
	low, _ := estimate.PriceRangeLow.Float64()
	high, _ := estimate.PriceRangeHigh.Float64()

	assert.InDelta(t, price*0.85, low, 1e-9)
	assert.InDelta(t, price*1.15, high, 1e-9)
}

func TestEvaluate_AllObservationsFiltered(t *testing.T) {
	policy := bessTestPolicy()
	policy.OutlierStdThreshold = 0.5

	observations := []models.PriceObservation{
		testObservation(100, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
		testObservation(200, models.SourceTypeGovernment, models.FrequencyDaily, 5, 0),
	}

	estimate := Evaluate(observations, policy, "bess", "north-america", 0, nil, testNow)

	// Zero survivors is distinguishable from zero matches.
	assert.Equal(t, 2, estimate.SampleCount)
	assert.Zero(t, estimate.SurvivingCount)

	price, _ := estimate.WeightedPrice.Float64()
	confidence, _ := estimate.Confidence.Float64()
	assert.InDelta(t, 137.5, price, 1e-9)
	assert.InDelta(t, 0.3, confidence, 1e-9)
}
