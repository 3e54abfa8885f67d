package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gridquote/pricing-go/internal/database"
	"github.com/gridquote/pricing-go/internal/models"
	"github.com/gridquote/pricing-go/internal/services"
	"github.com/gridquote/pricing-go/internal/utils"
)

// estimateCachePrefix namespaces cached estimate responses so admin
// writes can invalidate them as a group.
const estimateCachePrefix = "price_estimate:"

// ConsensusEstimator is the evaluation entry point the pricing handler
// depends on.
type ConsensusEstimator interface {
	GetPriceEstimate(ctx context.Context, req services.EstimateRequest) (*models.PriceEstimate, error)
}

// PricingHandler serves the price estimate query interface consumed by
// the quote generator and the admin dashboard.
type PricingHandler struct {
	consensus ConsensusEstimator
	redis     *database.RedisClient
	cacheTTL  time.Duration
	logger    *logrus.Logger
}

// NewPricingHandler creates the pricing query handler. redis may be nil;
// caching is then skipped.
func NewPricingHandler(consensus ConsensusEstimator, redis *database.RedisClient, cacheTTL time.Duration, logger *logrus.Logger) *PricingHandler {
	return &PricingHandler{
		consensus: consensus,
		redis:     redis,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// GetPriceEstimate handles GET /api/v1/prices/estimate. Estimates are
// cached briefly per query; stale-by-minutes data is acceptable for a
// periodically-recomputed estimate.
func (h *PricingHandler) GetPriceEstimate(c *gin.Context) {
	equipmentType := c.Query("equipment_type")
	region := c.Query("region")
	if equipmentType == "" || region == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "equipment_type and region are required"})
		return
	}

	capacity := 0.0
	if raw := c.Query("capacity"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must be a non-negative number"})
			return
		}
		capacity = parsed
	}

	var technology *string
	if raw := c.Query("technology"); raw != "" {
		technology = &raw
	}

	cacheKey := fmt.Sprintf("%s%s:%s:%g:%s", estimateCachePrefix, equipmentType, region, capacity, c.Query("technology"))
	if cached, found := h.getCachedEstimate(c.Request.Context(), cacheKey); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	estimate, err := h.consensus.GetPriceEstimate(c.Request.Context(), services.EstimateRequest{
		EquipmentType: equipmentType,
		Region:        region,
		CapacityKW:    capacity,
		Technology:    technology,
	})
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pricing engine is currently unavailable"})
		case utils.IsValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Price estimate failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute price estimate"})
		}
		return
	}

	h.cacheEstimate(c.Request.Context(), cacheKey, estimate)
	c.JSON(http.StatusOK, estimate)
}

func (h *PricingHandler) cacheEstimate(ctx context.Context, cacheKey string, estimate *models.PriceEstimate) {
	if h.redis == nil {
		return
	}

	data, err := json.Marshal(estimate)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to marshal estimate for caching")
		return
	}
	if err := h.redis.Set(ctx, cacheKey, string(data), h.cacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache estimate")
	}
}

func (h *PricingHandler) getCachedEstimate(ctx context.Context, cacheKey string) (*models.PriceEstimate, bool) {
	if h.redis == nil {
		return nil, false
	}

	cached, err := h.redis.Get(ctx, cacheKey)
	if err != nil {
		return nil, false
	}

	var estimate models.PriceEstimate
	if err := json.Unmarshal([]byte(cached), &estimate); err != nil {
		h.logger.WithError(err).Warn("Failed to unmarshal cached estimate")
		return nil, false
	}
	return &estimate, true
}
