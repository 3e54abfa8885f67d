package models

import (
	"time"

	"github.com/gridquote/pricing-go/internal/utils"
)

// SourceType classifies the provenance of a data source. It is the key
// into a pricing policy's source weight map.
type SourceType string

const (
	SourceTypeGovernment   SourceType = "government"
	SourceTypeDataProvider SourceType = "data_provider"
	SourceTypeRSSFeed      SourceType = "rss_feed"
	SourceTypeWebScrape    SourceType = "web_scrape"
	SourceTypeManufacturer SourceType = "manufacturer"
	SourceTypeAPI          SourceType = "api"
)

// DataFrequency is how often a source publishes new prices.
type DataFrequency string

const (
	FrequencyRealTime  DataFrequency = "real-time"
	FrequencyDaily     DataFrequency = "daily"
	FrequencyWeekly    DataFrequency = "weekly"
	FrequencyMonthly   DataFrequency = "monthly"
	FrequencyQuarterly DataFrequency = "quarterly"
	FrequencyAnnual    DataFrequency = "annual"
)

// FetchStatus values recorded by the collector bookkeeping operations.
const (
	FetchStatusSuccess = "success"
	FetchStatusError   = "error"
)

// DataSource describes one registered price source. Sources are never
// physically deleted; deactivation is a soft flag so the observation
// audit trail stays intact.
type DataSource struct {
	ID               int64         `json:"id" db:"id"`
	Name             string        `json:"name" db:"name"`
	SourceType       SourceType    `json:"source_type" db:"source_type"`
	URL              string        `json:"url,omitempty" db:"url"`
	ReliabilityScore int           `json:"reliability_score" db:"reliability_score"`
	DataFrequency    DataFrequency `json:"data_frequency" db:"data_frequency"`
	IsActive         bool          `json:"is_active" db:"is_active"`
	LastFetchAt      *time.Time    `json:"last_fetch_at,omitempty" db:"last_fetch_at"`
	LastFetchStatus  *string       `json:"last_fetch_status,omitempty" db:"last_fetch_status"`
	FetchErrorCount  int           `json:"fetch_error_count" db:"fetch_error_count"`
	TotalDataPoints  int           `json:"total_data_points" db:"total_data_points"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// ValidSourceType reports whether t is one of the known source types.
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeGovernment, SourceTypeDataProvider, SourceTypeRSSFeed,
		SourceTypeWebScrape, SourceTypeManufacturer, SourceTypeAPI:
		return true
	}
	return false
}

// ValidDataFrequency reports whether f is one of the known frequencies.
func ValidDataFrequency(f DataFrequency) bool {
	switch f {
	case FrequencyRealTime, FrequencyDaily, FrequencyWeekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual:
		return true
	}
	return false
}

// Validate enforces the write-time invariants for a data source. Rows
// violating these never reach the aggregation path.
func (s *DataSource) Validate() error {
	if s.Name == "" {
		return utils.NewValidationError("source name is required")
	}
	if !ValidSourceType(s.SourceType) {
		return utils.NewValidationErrorf("unknown source type %q", s.SourceType)
	}
	if s.ReliabilityScore < 1 || s.ReliabilityScore > 5 {
		return utils.NewValidationErrorf("reliability score must be between 1 and 5, got %d", s.ReliabilityScore)
	}
	if !ValidDataFrequency(s.DataFrequency) {
		return utils.NewValidationErrorf("unknown data frequency %q", s.DataFrequency)
	}
	return nil
}
