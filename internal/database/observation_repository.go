package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gridquote/pricing-go/internal/models"
)

// ObservationRepository handles the append-only store of raw price
// observations.
type ObservationRepository struct {
	pool DatabasePool
}

// NewObservationRepository creates a new observation repository.
func NewObservationRepository(pool DatabasePool) *ObservationRepository {
	return &ObservationRepository{
		pool: pool,
	}
}

// Insert appends one observation. Invariants are enforced here so
// malformed rows never reach the aggregation path. Returns the assigned
// observation id.
func (r *ObservationRepository) Insert(ctx context.Context, obs *models.PriceObservation) (string, error) {
	if err := obs.Validate(time.Now()); err != nil {
		return "", err
	}

	if obs.ID == "" {
		obs.ID = uuid.New().String()
	}

	query := `
		INSERT INTO price_observations (
			id, source_id, equipment_type, price_per_unit, unit, region, technology,
			price_date, raw_text, extraction_method, confidence_score, is_verified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		obs.ID, obs.SourceID, obs.EquipmentType, obs.PricePerUnit, obs.Unit,
		obs.Region, obs.Technology, obs.PriceDate, obs.RawText,
		obs.ExtractionMethod, obs.ConfidenceScore, obs.IsVerified)
	if err != nil {
		return "", fmt.Errorf("failed to insert observation: %w", err)
	}

	return obs.ID, nil
}

// MarkUnverified flags an existing observation as unverified. The row
// itself is immutable; this is the only sanctioned correction besides
// inserting a replacement.
func (r *ObservationRepository) MarkUnverified(ctx context.Context, id string) error {
	query := `UPDATE price_observations SET is_verified = false WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark observation unverified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("observation %s not found", id)
	}
	return nil
}

// Select returns observations matching an evaluation query: exact
// equipment type, region match or region-less rows, technology match or
// technology-less rows, reported within the trailing window. Rows from
// deactivated sources are excluded. An empty result is a valid outcome,
// not an error.
func (r *ObservationRepository) Select(ctx context.Context, equipmentType, region string, technology *string, windowDays int, now time.Time) ([]models.PriceObservation, error) {
	cutoff := now.AddDate(0, 0, -windowDays)

	query := `
		SELECT o.id, o.source_id, o.equipment_type, o.price_per_unit, o.unit,
			o.region, o.technology, o.price_date, o.raw_text, o.extraction_method,
			o.confidence_score, o.is_verified, o.created_at,
			s.id, s.name, s.source_type, s.url, s.reliability_score, s.data_frequency,
			s.is_active, s.last_fetch_at, s.last_fetch_status, s.fetch_error_count,
			s.total_data_points, s.created_at, s.updated_at
		FROM price_observations o
		JOIN data_sources s ON o.source_id = s.id
		WHERE o.equipment_type = $1
			AND (o.region = $2 OR o.region IS NULL)
			AND ($3::text IS NULL OR o.technology = $3 OR o.technology IS NULL)
			AND o.price_date >= $4
			AND s.is_active = true
		ORDER BY o.price_date DESC
	`

	rows, err := r.pool.Query(ctx, query, equipmentType, region, technology, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select observations: %w", err)
	}
	defer rows.Close()

	var observations []models.PriceObservation
	for rows.Next() {
		obs, err := scanObservationWithSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, *obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}
	return observations, nil
}

func scanObservationWithSource(row pgx.Row) (*models.PriceObservation, error) {
	var obs models.PriceObservation
	var source models.DataSource
	err := row.Scan(
		&obs.ID,
		&obs.SourceID,
		&obs.EquipmentType,
		&obs.PricePerUnit,
		&obs.Unit,
		&obs.Region,
		&obs.Technology,
		&obs.PriceDate,
		&obs.RawText,
		&obs.ExtractionMethod,
		&obs.ConfidenceScore,
		&obs.IsVerified,
		&obs.CreatedAt,
		&source.ID,
		&source.Name,
		&source.SourceType,
		&source.URL,
		&source.ReliabilityScore,
		&source.DataFrequency,
		&source.IsActive,
		&source.LastFetchAt,
		&source.LastFetchStatus,
		&source.FetchErrorCount,
		&source.TotalDataPoints,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	obs.Source = &source
	return &obs, nil
}
