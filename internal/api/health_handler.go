package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"profile-analytics/internal/cache"
	"profile-analytics/internal/classifier"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cacheService *cache.CacheService
	classifier   *classifier.SpamClassifier
	logger       *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	cacheService *cache.CacheService,
	spamClassifier *classifier.SpamClassifier,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		cacheService: cacheService,
		classifier:   spamClassifier,
		logger:       logger,
	}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "profile-analytics",
		"version":   "1.0.0",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Ready checks if the service is ready to handle requests
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	start := time.Now()

	checks := make(map[string]interface{})
	allHealthy := true

	// Check cache connectivity
	cacheCtx, cacheCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cacheCancel()

	cacheStart := time.Now()
	if err := h.cacheService.Ping(cacheCtx); err != nil {
		checks["cache"] = map[string]interface{}{
			"status":   "unhealthy",
			"error":    err.Error(),
			"duration": time.Since(cacheStart).Milliseconds(),
		}
		allHealthy = false
		h.logger.Warn("cache health check failed", zap.Error(err))
	} else {
		checks["cache"] = map[string]interface{}{
			"status":   "healthy",
			"duration": time.Since(cacheStart).Milliseconds(),
		}
	}

	// Check classifier state. An untrained classifier is not a readiness
	// failure: predictions degrade rather than error.
	mlStart := time.Now()
	checks["classifier"] = map[string]interface{}{
		"status":         "healthy",
		"trained":        h.classifier.IsTrained(),
		"trained_models": h.classifier.TrainedModels(),
		"duration":       time.Since(mlStart).Milliseconds(),
	}

	// Overall status
	status := http.StatusOK
	overallStatus := "ready"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		overallStatus = "not_ready"
	}

	response := gin.H{
		"status":         overallStatus,
		"service":        "profile-analytics",
		"checks":         checks,
		"total_duration": time.Since(start).Milliseconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}

	c.JSON(status, response)
}

// Live checks if the service is alive (minimal check)
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   "profile-analytics",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
