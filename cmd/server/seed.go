package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gridquote/pricing-go/internal/database"
	"github.com/gridquote/pricing-go/internal/models"
)

// runSeeder provisions reference data sources and the default pricing
// policies. Safe to run repeatedly; existing rows are left alone.
func runSeeder(ctx context.Context, db *database.PostgresDB, logger *logrus.Logger) error {
	sourceRepo := database.NewSourceRepository(db.Pool)
	policyRepo := database.NewPolicyRepository(db.Pool)

	seedSources := []models.DataSource{
		{
			Name:             "NREL Annual Technology Baseline",
			SourceType:       models.SourceTypeGovernment,
			URL:              "https://atb.nrel.gov",
			ReliabilityScore: 5,
			DataFrequency:    models.FrequencyAnnual,
			IsActive:         true,
		},
		{
			Name:             "BloombergNEF Price Survey",
			SourceType:       models.SourceTypeDataProvider,
			URL:              "https://about.bnef.com",
			ReliabilityScore: 4,
			DataFrequency:    models.FrequencyMonthly,
			IsActive:         true,
		},
		{
			Name:             "Manufacturer Price Sheets",
			SourceType:       models.SourceTypeManufacturer,
			ReliabilityScore: 3,
			DataFrequency:    models.FrequencyQuarterly,
			IsActive:         true,
		},
		{
			Name:             "Industry News Feeds",
			SourceType:       models.SourceTypeRSSFeed,
			ReliabilityScore: 2,
			DataFrequency:    models.FrequencyDaily,
			IsActive:         true,
		},
	}

	for i := range seedSources {
		var exists bool
		err := db.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM data_sources WHERE name=$1)", seedSources[i].Name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check existing source: %w", err)
		}
		if exists {
			continue
		}
		if _, err := sourceRepo.Create(ctx, &seedSources[i]); err != nil {
			return fmt.Errorf("failed to seed source %q: %w", seedSources[i].Name, err)
		}
		logger.WithField("source", seedSources[i].Name).Info("Seeded data source")
	}

	sharedSourceWeights := map[models.SourceType]float64{
		models.SourceTypeGovernment:   35,
		models.SourceTypeDataProvider: 30,
		models.SourceTypeManufacturer: 20,
		models.SourceTypeRSSFeed:      10,
		models.SourceTypeWebScrape:    5,
		models.SourceTypeAPI:          0,
	}
	sharedFrequencyWeights := map[models.DataFrequency]float64{
		models.FrequencyRealTime:  1.0,
		models.FrequencyDaily:     0.95,
		models.FrequencyWeekly:    0.85,
		models.FrequencyMonthly:   0.70,
		models.FrequencyQuarterly: 0.55,
		models.FrequencyAnnual:    0.40,
	}
	sharedRegionalMultipliers := map[string]float64{
		"north-america": 1.0,
		"europe":        1.08,
		"asia-pacific":  0.92,
		"latin-america": 1.05,
	}

	seedPolicies := []models.PricingPolicy{
		{
			Name:                   "bess_default",
			EquipmentType:          "bess",
			SourceWeights:          sharedSourceWeights,
			FrequencyWeights:       sharedFrequencyWeights,
			ReliabilityMultiplier:  1.0,
			AgeDecayFactor:         0.01,
			IndustryFloor:          map[string]float64{models.UnitKeyPerKWh: 100},
			IndustryCeiling:        map[string]float64{models.UnitKeyPerKWh: 175},
			IndustryGuidanceWeight: 0.45,
			OutlierStdThreshold:    2.0,
			MinDataPoints:          3,
			RegionalMultipliers:    sharedRegionalMultipliers,
			IsActive:               true,
			Priority:               100,
		},
		{
			Name:                   "solar_default",
			EquipmentType:          "solar",
			SourceWeights:          sharedSourceWeights,
			FrequencyWeights:       sharedFrequencyWeights,
			ReliabilityMultiplier:  1.0,
			AgeDecayFactor:         0.01,
			IndustryFloor: map[string]float64{
				models.UnitKeyPerWattUtility:    0.80,
				models.UnitKeyPerWattCommercial: 1.20,
			},
			IndustryCeiling: map[string]float64{
				models.UnitKeyPerWattUtility:    1.40,
				models.UnitKeyPerWattCommercial: 2.20,
			},
			IndustryGuidanceWeight: 0.40,
			OutlierStdThreshold:    2.0,
			MinDataPoints:          3,
			RegionalMultipliers:    sharedRegionalMultipliers,
			IsActive:               true,
			Priority:               100,
		},
		{
			Name:                   "all_fallback",
			EquipmentType:          models.EquipmentTypeAll,
			SourceWeights:          sharedSourceWeights,
			FrequencyWeights:       sharedFrequencyWeights,
			ReliabilityMultiplier:  1.0,
			AgeDecayFactor:         0.01,
			IndustryFloor:          map[string]float64{},
			IndustryCeiling:        map[string]float64{},
			IndustryGuidanceWeight: 0.40,
			OutlierStdThreshold:    2.0,
			MinDataPoints:          3,
			RegionalMultipliers:    sharedRegionalMultipliers,
			IsActive:               true,
			Priority:               0,
		},
	}

	for i := range seedPolicies {
		var exists bool
		err := db.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pricing_policies WHERE name=$1 AND is_active=true)", seedPolicies[i].Name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check existing policy: %w", err)
		}
		if exists {
			continue
		}
		if _, err := policyRepo.Create(ctx, &seedPolicies[i]); err != nil {
			return fmt.Errorf("failed to seed policy %q: %w", seedPolicies[i].Name, err)
		}
		logger.WithField("policy", seedPolicies[i].Name).Info("Seeded pricing policy")
	}

	logger.Info("Seeding complete")
	return nil
}
