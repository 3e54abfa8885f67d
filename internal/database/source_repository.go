package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gridquote/pricing-go/internal/models"
)

// ErrSourceNotFound is returned when a data source id does not exist.
var ErrSourceNotFound = errors.New("data source not found")

// SourceRepository handles database operations for the source registry,
// including the collector bookkeeping counters.
type SourceRepository struct {
	pool DatabasePool
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(pool DatabasePool) *SourceRepository {
	return &SourceRepository{
		pool: pool,
	}
}

const sourceColumns = `id, name, source_type, url, reliability_score, data_frequency,
		is_active, last_fetch_at, last_fetch_status, fetch_error_count, total_data_points,
		created_at, updated_at`

func scanSource(row pgx.Row) (*models.DataSource, error) {
	var s models.DataSource
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.SourceType,
		&s.URL,
		&s.ReliabilityScore,
		&s.DataFrequency,
		&s.IsActive,
		&s.LastFetchAt,
		&s.LastFetchStatus,
		&s.FetchErrorCount,
		&s.TotalDataPoints,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new data source after validating its invariants.
func (r *SourceRepository) Create(ctx context.Context, source *models.DataSource) (*models.DataSource, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO data_sources (name, source_type, url, reliability_score, data_frequency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sourceColumns

	created, err := scanSource(r.pool.QueryRow(ctx, query,
		source.Name, source.SourceType, source.URL,
		source.ReliabilityScore, source.DataFrequency, source.IsActive))
	if err != nil {
		return nil, fmt.Errorf("failed to create data source: %w", err)
	}
	return created, nil
}

// Get returns one data source by id.
func (r *SourceRepository) Get(ctx context.Context, id int64) (*models.DataSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM data_sources WHERE id = $1`

	source, err := scanSource(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}
	return source, nil
}

// List returns registered data sources, optionally restricted to active
// ones.
func (r *SourceRepository) List(ctx context.Context, activeOnly bool) ([]models.DataSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM data_sources`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	var sources []models.DataSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		sources = append(sources, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data sources: %w", err)
	}
	return sources, nil
}

// Update modifies the mutable metadata of a source. Counters are owned
// by the bookkeeping operations and are not touched here.
func (r *SourceRepository) Update(ctx context.Context, source *models.DataSource) (*models.DataSource, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE data_sources
		SET name = $2, source_type = $3, url = $4, reliability_score = $5,
			data_frequency = $6, is_active = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + sourceColumns

	updated, err := scanSource(r.pool.QueryRow(ctx, query,
		source.ID, source.Name, source.SourceType, source.URL,
		source.ReliabilityScore, source.DataFrequency, source.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to update data source: %w", err)
	}
	return updated, nil
}

// Deactivate soft-deletes a source. Sources are never physically removed
// so historical observations keep a valid reference.
func (r *SourceRepository) Deactivate(ctx context.Context, id int64) error {
	query := `
		UPDATE data_sources
		SET is_active = false, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_active = true
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate data source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// RecordFetchSuccess resets the error counter and credits the fetched
// data points in a single statement so concurrent collector workers
// cannot lose updates.
func (r *SourceRepository) RecordFetchSuccess(ctx context.Context, id int64, pointsAdded int) error {
	query := `
		UPDATE data_sources
		SET fetch_error_count = 0,
			last_fetch_status = $2,
			last_fetch_at = CURRENT_TIMESTAMP,
			total_data_points = total_data_points + $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, models.FetchStatusSuccess, pointsAdded)
	if err != nil {
		return fmt.Errorf("failed to record fetch success: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// RecordFetchFailure increments the error counter atomically.
func (r *SourceRepository) RecordFetchFailure(ctx context.Context, id int64) error {
	query := `
		UPDATE data_sources
		SET fetch_error_count = fetch_error_count + 1,
			last_fetch_status = $2,
			last_fetch_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, models.FetchStatusError)
	if err != nil {
		return fmt.Errorf("failed to record fetch failure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}
