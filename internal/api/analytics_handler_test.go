package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"profile-analytics/internal/classifier"
	"profile-analytics/internal/models"
	"profile-analytics/internal/services"
)

// MockAnalyticsService is a mock implementation of the analytics backend
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) AnalyzeCall(ctx context.Context, req *models.AnalyzeCallRequest) (*models.AnalyzeCallResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyzeCallResponse), args.Error(1)
}

func (m *MockAnalyticsService) TrainFromCorpus(ctx context.Context, req *models.TrainRequest) (*classifier.TrainingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classifier.TrainingResult), args.Error(1)
}

func (m *MockAnalyticsService) UpdateFromBatch(ctx context.Context, corpus []models.LabeledCall) (bool, error) {
	args := m.Called(ctx, corpus)
	return args.Bool(0), args.Error(1)
}

func (m *MockAnalyticsService) EvaluateModel(corpus []models.LabeledCall, modelName string) (*classifier.PerformanceMetrics, error) {
	args := m.Called(corpus, modelName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classifier.PerformanceMetrics), args.Error(1)
}

func (m *MockAnalyticsService) Models() *services.ModelsOverview {
	args := m.Called()
	return args.Get(0).(*services.ModelsOverview)
}

func (m *MockAnalyticsService) FeatureImportance(modelName string) map[string]float64 {
	args := m.Called(modelName)
	return args.Get(0).(map[string]float64)
}

func (m *MockAnalyticsService) GetSpamProfile(ctx context.Context, phoneNumber string) (*models.SpamProfile, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SpamProfile), args.Error(1)
}

func (m *MockAnalyticsService) IsTrained() bool {
	args := m.Called()
	return args.Bool(0)
}

func setupTestHandler() (*AnalyticsHandler, *MockAnalyticsService) {
	mockService := &MockAnalyticsService{}
	handler := &AnalyticsHandler{
		analyticsService: mockService,
		logger:           zap.NewNop(),
	}
	return handler, mockService
}

func TestAnalyzeCall(t *testing.T) {
	handler, mockService := setupTestHandler()

	expectedResponse := &models.AnalyzeCallResponse{
		Prediction: &models.PredictionResult{
			IsSpam:          true,
			SpamProbability: 0.91,
			ConfidenceScore: 0.91,
			RiskLevel:       models.RiskLevelHigh,
			ModelUsed:       "ensemble",
			Timestamp:       time.Now(),
		},
		CacheHit:       false,
		ProcessingTime: time.Millisecond * 12,
	}

	mockService.On("AnalyzeCall", mock.Anything, mock.AnythingOfType("*models.AnalyzeCallRequest")).
		Return(expectedResponse, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/analytics/calls/analyze", handler.AnalyzeCall)

	requestBody := models.AnalyzeCallRequest{
		Call: models.CallRecord{
			ID:              uuid.New(),
			UserID:          uuid.New(),
			CallerPhone:     "+1234567890",
			StartTime:       "2025-06-16T14:30:00Z",
			DurationSeconds: 45,
		},
		Transcript: "congratulations you won a free cruise",
	}

	jsonBody, _ := json.Marshal(requestBody)
	req, _ := http.NewRequest("POST", "/api/v1/analytics/calls/analyze", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	result := response["result"].(map[string]interface{})
	prediction := result["prediction"].(map[string]interface{})
	assert.Equal(t, true, prediction["is_spam"])
	assert.Equal(t, 0.91, prediction["spam_probability"])
	assert.Equal(t, "high", prediction["risk_level"])
	assert.Equal(t, "ensemble", prediction["model_used"])

	mockService.AssertExpectations(t)
}

func TestAnalyzeCallInvalidBody(t *testing.T) {
	handler, _ := setupTestHandler()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/analytics/calls/analyze", handler.AnalyzeCall)

	req, _ := http.NewRequest("POST", "/api/v1/analytics/calls/analyze", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateReportsRetrain(t *testing.T) {
	handler, mockService := setupTestHandler()

	mockService.On("UpdateFromBatch", mock.Anything, mock.AnythingOfType("[]models.LabeledCall")).
		Return(true, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/analytics/update", handler.Update)

	requestBody := UpdateRequest{
		Corpus: []models.LabeledCall{
			{
				Call: models.CallRecord{
					ID:          uuid.New(),
					CallerPhone: "+1234567890",
					StartTime:   "2025-06-16T09:00:00Z",
				},
				IsSpam: true,
			},
		},
	}

	jsonBody, _ := json.Marshal(requestBody)
	req, _ := http.NewRequest("POST", "/api/v1/analytics/update", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, true, response["retrained"])

	mockService.AssertExpectations(t)
}

func TestGetModels(t *testing.T) {
	handler, mockService := setupTestHandler()

	overview := &services.ModelsOverview{
		Trained: []string{"random_forest", "logistic_regression", "ensemble"},
		Performance: map[string]*classifier.PerformanceMetrics{
			"ensemble": {ModelName: "ensemble", Accuracy: 0.92, F1: 0.9, Samples: 40},
		},
	}
	mockService.On("Models").Return(overview)
	mockService.On("IsTrained").Return(true)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/analytics/models", handler.GetModels)

	req, _ := http.NewRequest("GET", "/api/v1/analytics/models", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, true, response["trained"])

	modelsField := response["models"].(map[string]interface{})
	trained := modelsField["trained_models"].([]interface{})
	assert.Len(t, trained, 3)

	mockService.AssertExpectations(t)
}

func TestGetFeatureImportanceNotFound(t *testing.T) {
	handler, mockService := setupTestHandler()

	mockService.On("FeatureImportance", "unknown_model").Return(map[string]float64{})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/analytics/models/:model/importance", handler.GetFeatureImportance)

	req, _ := http.NewRequest("GET", "/api/v1/analytics/models/unknown_model/importance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	mockService.AssertExpectations(t)
}

func TestGetProfileNotFound(t *testing.T) {
	handler, mockService := setupTestHandler()

	mockService.On("GetSpamProfile", mock.Anything, "+1987654321").Return(nil, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/analytics/profiles/:phone", handler.GetProfile)

	req, _ := http.NewRequest("GET", "/api/v1/analytics/profiles/+1987654321", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	mockService.AssertExpectations(t)
}
