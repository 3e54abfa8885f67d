package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridquote/pricing-go/internal/utils"
)

// PriceObservation is one reported price tied to a registered source.
// Observations are append-only: corrections are made by inserting a new
// row and optionally flagging the old one unverified.
type PriceObservation struct {
	ID               string          `json:"id" db:"id"`
	SourceID         int64           `json:"source_id" db:"source_id"`
	EquipmentType    string          `json:"equipment_type" db:"equipment_type"`
	PricePerUnit     decimal.Decimal `json:"price_per_unit" db:"price_per_unit"`
	Unit             string          `json:"unit" db:"unit"`
	Region           *string         `json:"region,omitempty" db:"region"`
	Technology       *string         `json:"technology,omitempty" db:"technology"`
	PriceDate        time.Time       `json:"price_date" db:"price_date"`
	RawText          *string         `json:"raw_text,omitempty" db:"raw_text"`
	ExtractionMethod *string         `json:"extraction_method,omitempty" db:"extraction_method"`
	ConfidenceScore  decimal.Decimal `json:"confidence_score" db:"confidence_score"`
	IsVerified       bool            `json:"is_verified" db:"is_verified"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`

	// Source is populated when observations are selected for evaluation;
	// the weight formula needs the source's type, frequency and reliability.
	Source *DataSource `json:"source,omitempty"`
}

// Validate enforces the write-time invariants for an observation.
func (o *PriceObservation) Validate(now time.Time) error {
	if o.SourceID <= 0 {
		return utils.NewValidationError("source id is required")
	}
	if o.EquipmentType == "" {
		return utils.NewValidationError("equipment type is required")
	}
	if !o.PricePerUnit.IsPositive() {
		return utils.NewValidationErrorf("price per unit must be positive, got %s", o.PricePerUnit)
	}
	if o.Unit == "" {
		return utils.NewValidationError("unit is required")
	}
	if o.PriceDate.After(now) {
		return utils.NewValidationErrorf("price date %s is in the future", o.PriceDate.Format("2006-01-02"))
	}
	one := decimal.NewFromInt(1)
	if o.ConfidenceScore.IsNegative() || o.ConfidenceScore.GreaterThan(one) {
		return utils.NewValidationErrorf("confidence score must be within [0,1], got %s", o.ConfidenceScore)
	}
	return nil
}
