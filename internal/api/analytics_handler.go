package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"profile-analytics/internal/classifier"
	"profile-analytics/internal/models"
	"profile-analytics/internal/services"
)

// analyticsBackend is the service surface the handler depends on
type analyticsBackend interface {
	AnalyzeCall(ctx context.Context, req *models.AnalyzeCallRequest) (*models.AnalyzeCallResponse, error)
	TrainFromCorpus(ctx context.Context, req *models.TrainRequest) (*classifier.TrainingResult, error)
	UpdateFromBatch(ctx context.Context, corpus []models.LabeledCall) (bool, error)
	EvaluateModel(corpus []models.LabeledCall, modelName string) (*classifier.PerformanceMetrics, error)
	Models() *services.ModelsOverview
	FeatureImportance(modelName string) map[string]float64
	GetSpamProfile(ctx context.Context, phoneNumber string) (*models.SpamProfile, error)
	IsTrained() bool
}

// AnalyticsHandler handles HTTP requests for call risk analysis and model
// lifecycle operations
type AnalyticsHandler struct {
	analyticsService analyticsBackend
	logger           *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	analyticsService *services.AnalyticsService,
	logger *zap.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// UpdateRequest is the payload for degradation-checked model updates
type UpdateRequest struct {
	Corpus []models.LabeledCall `json:"corpus" binding:"required,min=1"`
}

// EvaluateRequest is the payload for explicit model evaluation
type EvaluateRequest struct {
	Corpus []models.LabeledCall `json:"corpus" binding:"required,min=1"`
	Model  string               `json:"model" binding:"required"`
}

// AnalyzeCall assesses the spam risk of one screened call
// POST /api/v1/analytics/calls/analyze
func (h *AnalyticsHandler) AnalyzeCall(c *gin.Context) {
	var req models.AnalyzeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid analyze request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	start := time.Now()
	resp, err := h.analyticsService.AnalyzeCall(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("call analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze call"})
		return
	}

	h.logger.Debug("call analyzed",
		zap.String("call_id", req.Call.ID.String()),
		zap.String("risk_level", string(resp.Prediction.RiskLevel)),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Duration("duration", time.Since(start)))

	c.JSON(http.StatusOK, gin.H{
		"result": resp,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
		},
	})
}

// Train trains the full model set on a labeled corpus
// POST /api/v1/analytics/train
func (h *AnalyticsHandler) Train(c *gin.Context) {
	var req models.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid train request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	start := time.Now()
	result, err := h.analyticsService.TrainFromCorpus(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("training failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Training failed"})
		return
	}

	h.logger.Info("training completed via API",
		zap.Int("corpus_size", len(req.Corpus)),
		zap.Strings("trained", result.Trained),
		zap.Duration("duration", time.Since(start)))

	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"corpus_size":        len(req.Corpus),
		},
	})
}

// Update checks model performance on fresh labels and retrains on degradation
// POST /api/v1/analytics/update
func (h *AnalyticsHandler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	start := time.Now()
	retrained, err := h.analyticsService.UpdateFromBatch(c.Request.Context(), req.Corpus)
	if err != nil {
		h.logger.Error("model update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Model update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"retrained": retrained,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"batch_size":         len(req.Corpus),
		},
	})
}

// Evaluate scores a named model against a labeled corpus
// POST /api/v1/analytics/evaluate
func (h *AnalyticsHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid evaluate request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	perf, err := h.analyticsService.EvaluateModel(req.Corpus, req.Model)
	if err != nil {
		h.logger.Warn("evaluation failed", zap.Error(err), zap.String("model", req.Model))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"performance": perf})
}

// GetModels returns the trained model inventory with performance and history
// GET /api/v1/analytics/models
func (h *AnalyticsHandler) GetModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  h.analyticsService.Models(),
		"trained": h.analyticsService.IsTrained(),
	})
}

// GetFeatureImportance returns the most important features of a model
// GET /api/v1/analytics/models/:model/importance
func (h *AnalyticsHandler) GetFeatureImportance(c *gin.Context) {
	model := c.Param("model")
	importance := h.analyticsService.FeatureImportance(model)
	if len(importance) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No importances available for model"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":      model,
		"importance": importance,
	})
}

// GetProfile returns the persisted risk profile for a caller phone
// GET /api/v1/analytics/profiles/:phone
func (h *AnalyticsHandler) GetProfile(c *gin.Context) {
	phone := c.Param("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone number is required"})
		return
	}

	profile, err := h.analyticsService.GetSpamProfile(c.Request.Context(), phone)
	if err != nil {
		h.logger.Error("failed to get spam profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		return
	}

	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
