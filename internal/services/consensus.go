package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gridquote/pricing-go/internal/database"
	"github.com/gridquote/pricing-go/internal/models"
	"github.com/gridquote/pricing-go/internal/utils"
)

// PolicyStore is the read-side policy lookup the consensus service
// depends on. The database repository implements it; tests use fakes.
type PolicyStore interface {
	GetActive(ctx context.Context, equipmentType string) (*models.PricingPolicy, error)
}

// ObservationStore is the read-side observation selection dependency.
type ObservationStore interface {
	Select(ctx context.Context, equipmentType, region string, technology *string, windowDays int, now time.Time) ([]models.PriceObservation, error)
}

// EstimateRequest identifies one consensus evaluation.
type EstimateRequest struct {
	EquipmentType string
	Region        string
	CapacityKW    float64
	Technology    *string
}

// ConsensusService orchestrates policy resolution, observation
// selection and the pure evaluation pipeline into one estimate per
// query. Evaluation is a read-only computation; concurrent calls share
// no mutable state.
type ConsensusService struct {
	policies     PolicyStore
	observations ObservationStore
	windowDays   int
	logger       *logrus.Logger

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewConsensusService creates a consensus service reading policies and
// observations through the given stores.
func NewConsensusService(policies PolicyStore, observations ObservationStore, windowDays int, logger *logrus.Logger) *ConsensusService {
	return &ConsensusService{
		policies:     policies,
		observations: observations,
		windowDays:   windowDays,
		logger:       logger,
		now:          time.Now,
	}
}

// ResolvePolicy selects the governing policy for an equipment type:
// the highest-priority active row for the exact type, then the active
// "all" wildcard, then the built-in default. It never returns nil for a
// missing configuration; only storage faults produce an error.
func (s *ConsensusService) ResolvePolicy(ctx context.Context, equipmentType string) (*models.PricingPolicy, error) {
	policy, err := s.policies.GetActive(ctx, equipmentType)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, database.ErrPolicyNotFound) {
		return nil, fmt.Errorf("%w: %v", utils.ErrUnavailable, err)
	}

	policy, err = s.policies.GetActive(ctx, models.EquipmentTypeAll)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, database.ErrPolicyNotFound) {
		return nil, fmt.Errorf("%w: %v", utils.ErrUnavailable, err)
	}

	s.logger.WithField("equipment_type", equipmentType).Debug("No active policy configured, using engine default")
	return models.DefaultPolicy(), nil
}

// GetPriceEstimate runs one consensus evaluation. Absent configuration
// and sparse data are normal, fully handled states; only a storage
// fault errors, wrapped in utils.ErrUnavailable so callers can tell
// "no data, low confidence" apart from "the engine could not run".
func (s *ConsensusService) GetPriceEstimate(ctx context.Context, req EstimateRequest) (*models.PriceEstimate, error) {
	if req.EquipmentType == "" {
		return nil, utils.NewValidationError("equipment type is required")
	}
	if req.Region == "" {
		return nil, utils.NewValidationError("region is required")
	}

	now := s.now()

	policy, err := s.ResolvePolicy(ctx, req.EquipmentType)
	if err != nil {
		return nil, err
	}

	observations, err := s.observations.Select(ctx, req.EquipmentType, req.Region, req.Technology, s.windowDays, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrUnavailable, err)
	}

	estimate := Evaluate(observations, policy, req.EquipmentType, req.Region, req.CapacityKW, req.Technology, now)

	s.logger.WithFields(logrus.Fields{
		"equipment_type": req.EquipmentType,
		"region":         req.Region,
		"policy":         policy.Name,
		"sample_count":   estimate.SampleCount,
		"survivors":      estimate.SurvivingCount,
		"price":          estimate.WeightedPrice,
		"confidence":     estimate.Confidence,
	}).Info("Computed price estimate")

	return estimate, nil
}
