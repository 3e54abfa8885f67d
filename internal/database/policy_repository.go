package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gridquote/pricing-go/internal/models"
)

// ErrPolicyNotFound is returned when no policy row matches a lookup.
// On the evaluation path this is a normal state handled by the
// resolution fallback, never surfaced to callers.
var ErrPolicyNotFound = errors.New("pricing policy not found")

// PolicyRepository handles database operations for pricing policies.
type PolicyRepository struct {
	pool DatabasePool
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(pool DatabasePool) *PolicyRepository {
	return &PolicyRepository{
		pool: pool,
	}
}

const policyColumns = `id, name, equipment_type, source_weights, frequency_weights,
		reliability_multiplier, age_decay_factor, industry_floor, industry_ceiling,
		industry_guidance_weight, outlier_std_threshold, min_data_points,
		regional_multipliers, is_active, priority, created_at, updated_at`

func scanPolicy(row pgx.Row) (*models.PricingPolicy, error) {
	var p models.PricingPolicy
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.EquipmentType,
		&p.SourceWeights,
		&p.FrequencyWeights,
		&p.ReliabilityMultiplier,
		&p.AgeDecayFactor,
		&p.IndustryFloor,
		&p.IndustryCeiling,
		&p.IndustryGuidanceWeight,
		&p.OutlierStdThreshold,
		&p.MinDataPoints,
		&p.RegionalMultipliers,
		&p.IsActive,
		&p.Priority,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActive returns the highest-priority active policy for an equipment
// type, or ErrPolicyNotFound when none exists. The caller owns the
// fallback to the "all" wildcard and the built-in default.
func (r *PolicyRepository) GetActive(ctx context.Context, equipmentType string) (*models.PricingPolicy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM pricing_policies
		WHERE equipment_type = $1 AND is_active = true
		ORDER BY priority DESC, id
		LIMIT 1
	`

	policy, err := scanPolicy(r.pool.QueryRow(ctx, query, equipmentType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to get active policy: %w", err)
	}
	return policy, nil
}

// Create inserts a new policy after validating its invariants.
func (r *PolicyRepository) Create(ctx context.Context, policy *models.PricingPolicy) (*models.PricingPolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO pricing_policies (
			name, equipment_type, source_weights, frequency_weights,
			reliability_multiplier, age_decay_factor, industry_floor, industry_ceiling,
			industry_guidance_weight, outlier_std_threshold, min_data_points,
			regional_multipliers, is_active, priority
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + policyColumns

	created, err := scanPolicy(r.pool.QueryRow(ctx, query,
		policy.Name, policy.EquipmentType, policy.SourceWeights, policy.FrequencyWeights,
		policy.ReliabilityMultiplier, policy.AgeDecayFactor, policy.IndustryFloor,
		policy.IndustryCeiling, policy.IndustryGuidanceWeight, policy.OutlierStdThreshold,
		policy.MinDataPoints, policy.RegionalMultipliers, policy.IsActive, policy.Priority))
	if err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}
	return created, nil
}

// Update replaces an existing policy row. Changes take effect on the
// next evaluation; policies are read fresh per call.
func (r *PolicyRepository) Update(ctx context.Context, policy *models.PricingPolicy) (*models.PricingPolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE pricing_policies
		SET name = $2, equipment_type = $3, source_weights = $4, frequency_weights = $5,
			reliability_multiplier = $6, age_decay_factor = $7, industry_floor = $8,
			industry_ceiling = $9, industry_guidance_weight = $10, outlier_std_threshold = $11,
			min_data_points = $12, regional_multipliers = $13, is_active = $14,
			priority = $15, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + policyColumns

	updated, err := scanPolicy(r.pool.QueryRow(ctx, query,
		policy.ID, policy.Name, policy.EquipmentType, policy.SourceWeights,
		policy.FrequencyWeights, policy.ReliabilityMultiplier, policy.AgeDecayFactor,
		policy.IndustryFloor, policy.IndustryCeiling, policy.IndustryGuidanceWeight,
		policy.OutlierStdThreshold, policy.MinDataPoints, policy.RegionalMultipliers,
		policy.IsActive, policy.Priority))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}
	return updated, nil
}

// Deactivate soft-deletes a policy so resolution stops selecting it.
func (r *PolicyRepository) Deactivate(ctx context.Context, id int64) error {
	query := `
		UPDATE pricing_policies
		SET is_active = false, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_active = true
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

// List returns all policies ordered by equipment type and priority.
func (r *PolicyRepository) List(ctx context.Context) ([]models.PricingPolicy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM pricing_policies
		ORDER BY equipment_type, priority DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []models.PricingPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}
	return policies, nil
}
