package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gridquote/pricing-go/internal/database"
	"github.com/gridquote/pricing-go/internal/models"
	"github.com/gridquote/pricing-go/internal/utils"
)

// ObservationWriter is the append-only observation store dependency.
type ObservationWriter interface {
	Insert(ctx context.Context, obs *models.PriceObservation) (string, error)
}

// SourceBookkeeper records collector fetch outcomes against the source
// registry.
type SourceBookkeeper interface {
	RecordFetchSuccess(ctx context.Context, id int64, pointsAdded int) error
	RecordFetchFailure(ctx context.Context, id int64) error
}

// IngestHandler exposes the ingestion interface consumed by the
// external collector.
type IngestHandler struct {
	observations ObservationWriter
	sources      SourceBookkeeper
	logger       *logrus.Logger
}

// NewIngestHandler creates the ingestion handler.
func NewIngestHandler(observations ObservationWriter, sources SourceBookkeeper, logger *logrus.Logger) *IngestHandler {
	return &IngestHandler{
		observations: observations,
		sources:      sources,
		logger:       logger,
	}
}

// InsertObservationRequest is the body for POST /api/v1/observations.
type InsertObservationRequest struct {
	SourceID         int64           `json:"source_id" binding:"required"`
	EquipmentType    string          `json:"equipment_type" binding:"required"`
	PricePerUnit     decimal.Decimal `json:"price_per_unit"`
	Unit             string          `json:"unit" binding:"required"`
	Region           *string         `json:"region,omitempty"`
	Technology       *string         `json:"technology,omitempty"`
	PriceDate        string          `json:"price_date" binding:"required"`
	RawText          *string         `json:"raw_text,omitempty"`
	ExtractionMethod *string         `json:"extraction_method,omitempty"`
	ConfidenceScore  decimal.Decimal `json:"confidence_score"`
}

// InsertObservation handles POST /api/v1/observations. Invariant
// violations are rejected here and never reach the aggregation path.
func (h *IngestHandler) InsertObservation(c *gin.Context) {
	var req InsertObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	priceDate, err := time.Parse("2006-01-02", req.PriceDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price_date must be formatted as YYYY-MM-DD"})
		return
	}

	obs := &models.PriceObservation{
		SourceID:         req.SourceID,
		EquipmentType:    req.EquipmentType,
		PricePerUnit:     req.PricePerUnit,
		Unit:             req.Unit,
		Region:           req.Region,
		Technology:       req.Technology,
		PriceDate:        priceDate,
		RawText:          req.RawText,
		ExtractionMethod: req.ExtractionMethod,
		ConfidenceScore:  req.ConfidenceScore,
	}

	id, err := h.observations.Insert(c.Request.Context(), obs)
	if err != nil {
		if utils.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to insert observation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to insert observation"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"observation_id": id,
		"source_id":      req.SourceID,
		"equipment_type": req.EquipmentType,
	}).Info("Observation ingested")

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// FetchSuccessRequest is the body for POST /api/v1/sources/:id/fetch-success.
type FetchSuccessRequest struct {
	PointsAdded int `json:"points_added"`
}

// RecordFetchSuccess handles POST /api/v1/sources/:id/fetch-success.
func (h *IngestHandler) RecordFetchSuccess(c *gin.Context) {
	id, ok := parseSourceID(c)
	if !ok {
		return
	}

	var req FetchSuccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.PointsAdded < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points_added must be non-negative"})
		return
	}

	if err := h.sources.RecordFetchSuccess(c.Request.Context(), id, req.PointsAdded); err != nil {
		h.respondBookkeepingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// RecordFetchFailure handles POST /api/v1/sources/:id/fetch-failure.
func (h *IngestHandler) RecordFetchFailure(c *gin.Context) {
	id, ok := parseSourceID(c)
	if !ok {
		return
	}

	if err := h.sources.RecordFetchFailure(c.Request.Context(), id); err != nil {
		h.respondBookkeepingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *IngestHandler) respondBookkeepingError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrSourceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Data source not found"})
		return
	}
	h.logger.WithError(err).Error("Failed to record fetch outcome")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record fetch outcome"})
}

func parseSourceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source id"})
		return 0, false
	}
	return id, true
}
