package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gridquote/pricing-go/internal/database"
	"github.com/gridquote/pricing-go/internal/models"
	"github.com/gridquote/pricing-go/internal/utils"
)

// PolicyAdminStore is the policy CRUD dependency for the admin surface.
type PolicyAdminStore interface {
	List(ctx context.Context) ([]models.PricingPolicy, error)
	Create(ctx context.Context, policy *models.PricingPolicy) (*models.PricingPolicy, error)
	Update(ctx context.Context, policy *models.PricingPolicy) (*models.PricingPolicy, error)
	Deactivate(ctx context.Context, id int64) error
}

// SourceAdminStore is the source registry CRUD dependency.
type SourceAdminStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.DataSource, error)
	Get(ctx context.Context, id int64) (*models.DataSource, error)
	Create(ctx context.Context, source *models.DataSource) (*models.DataSource, error)
	Update(ctx context.Context, source *models.DataSource) (*models.DataSource, error)
	Deactivate(ctx context.Context, id int64) error
}

// AdminHandler serves pricing policy and data source administration.
// Policy writes take effect on the next evaluation; policies are read
// fresh per call. Writes that change evaluation results also drop the
// cached estimate responses.
type AdminHandler struct {
	policies PolicyAdminStore
	sources  SourceAdminStore
	cache    *database.RedisClient
	logger   *logrus.Logger
}

// NewAdminHandler creates the administration handler. cache may be nil;
// estimate invalidation is then skipped and entries expire by TTL.
func NewAdminHandler(policies PolicyAdminStore, sources SourceAdminStore, cache *database.RedisClient, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		policies: policies,
		sources:  sources,
		cache:    cache,
		logger:   logger,
	}
}

// invalidateEstimateCache drops all cached estimate responses after a
// write that changes what an evaluation would return. Failures are
// logged, not surfaced: the entries still expire by TTL.
func (h *AdminHandler) invalidateEstimateCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.DeletePattern(ctx, estimateCachePrefix+"*"); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate cached estimates")
	}
}

// ListPolicies handles GET /api/v1/admin/policies.
func (h *AdminHandler) ListPolicies(c *gin.Context) {
	policies, err := h.policies.List(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list policies")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list policies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies, "total": len(policies)})
}

// CreatePolicy handles POST /api/v1/admin/policies.
func (h *AdminHandler) CreatePolicy(c *gin.Context) {
	var policy models.PricingPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	created, err := h.policies.Create(c.Request.Context(), &policy)
	if err != nil {
		if utils.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to create policy")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create policy"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"policy_id":      created.ID,
		"equipment_type": created.EquipmentType,
	}).Info("Pricing policy created")

	h.invalidateEstimateCache(c.Request.Context())
	c.JSON(http.StatusCreated, created)
}

// UpdatePolicy handles PUT /api/v1/admin/policies/:id.
func (h *AdminHandler) UpdatePolicy(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}

	var policy models.PricingPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	policy.ID = id

	updated, err := h.policies.Update(c.Request.Context(), &policy)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrPolicyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found"})
		case utils.IsValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Failed to update policy")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update policy"})
		}
		return
	}

	h.invalidateEstimateCache(c.Request.Context())
	c.JSON(http.StatusOK, updated)
}

// DeactivatePolicy handles DELETE /api/v1/admin/policies/:id. Policies
// are soft-deleted so superseded versions stay auditable.
func (h *AdminHandler) DeactivatePolicy(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}

	if err := h.policies.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrPolicyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to deactivate policy")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate policy"})
		return
	}

	h.invalidateEstimateCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// ListSources handles GET /api/v1/admin/sources.
func (h *AdminHandler) ListSources(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	sources, err := h.sources.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sources")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources, "total": len(sources)})
}

// GetSource handles GET /api/v1/admin/sources/:id.
func (h *AdminHandler) GetSource(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}

	source, err := h.sources.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Data source not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to get source")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get source"})
		return
	}
	c.JSON(http.StatusOK, source)
}

// CreateSource handles POST /api/v1/admin/sources.
func (h *AdminHandler) CreateSource(c *gin.Context) {
	var source models.DataSource
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	created, err := h.sources.Create(c.Request.Context(), &source)
	if err != nil {
		if utils.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to create source")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"source_id":   created.ID,
		"source_name": created.Name,
	}).Info("Data source registered")

	c.JSON(http.StatusCreated, created)
}

// UpdateSource handles PUT /api/v1/admin/sources/:id.
func (h *AdminHandler) UpdateSource(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}

	var source models.DataSource
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	source.ID = id

	updated, err := h.sources.Update(c.Request.Context(), &source)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrSourceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Data source not found"})
		case utils.IsValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Failed to update source")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		}
		return
	}

	// A reliability or frequency change shifts observation weights.
	h.invalidateEstimateCache(c.Request.Context())
	c.JSON(http.StatusOK, updated)
}

// DeactivateSource handles DELETE /api/v1/admin/sources/:id. Sources
// are never physically deleted; the observation audit trail keeps its
// references.
func (h *AdminHandler) DeactivateSource(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}

	if err := h.sources.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Data source not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to deactivate source")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate source"})
		return
	}

	// Deactivation removes the source's observations from selection.
	h.invalidateEstimateCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func parseRecordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}
