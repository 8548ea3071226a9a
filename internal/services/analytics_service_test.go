package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"profile-analytics/internal/classifier"
	"profile-analytics/internal/config"
	"profile-analytics/internal/features"
	"profile-analytics/internal/metrics"
	"profile-analytics/internal/models"
)

func newTestService(t *testing.T) *AnalyticsService {
	t.Helper()

	cfg := &config.Config{
		ML: config.MLConfig{
			Enabled:             true,
			ModelPath:           t.TempDir(),
			UseEnsemble:         true,
			MinTrainingSamples:  10,
			RetrainThreshold:    0.05,
			ConfidenceThreshold: 0.7,
			TopFeatures:         20,
		},
		Metrics: config.MetricsConfig{Enabled: false},
	}
	logger := zap.NewNop()

	return &AnalyticsService{
		config:     cfg,
		logger:     logger,
		processor:  features.NewProcessor(logger),
		classifier: classifier.NewSpamClassifier(&cfg.ML, logger),
		metrics:    metrics.NewMetricsCollector(&cfg.Metrics, logger),
	}
}

func spamCorpus(n int) []models.LabeledCall {
	corpus := make([]models.LabeledCall, n)
	for i := range corpus {
		call := models.CallRecord{
			ID:        uuid.New(),
			UserID:    uuid.New(),
			StartTime: fmt.Sprintf("2025-06-%02dT10:00:00Z", i%28+1),
		}
		if i%2 == 0 {
			call.CallerPhone = fmt.Sprintf("+1999%07d", i)
			call.DurationSeconds = 15
			corpus[i] = models.LabeledCall{
				Call:       call,
				Transcript: "congratulations you won a free cruise act now limited time offer expires today",
				IsSpam:     true,
			}
		} else {
			call.CallerPhone = fmt.Sprintf("+1555%07d", i)
			call.DurationSeconds = 120
			corpus[i] = models.LabeledCall{
				Call:       call,
				Transcript: "hey are we still on for dinner tonight see you at seven",
				IsSpam:     false,
			}
		}
	}
	return corpus
}

func TestAnalyzeCallDegradesWhenUntrained(t *testing.T) {
	service := newTestService(t)

	resp, err := service.AnalyzeCall(context.Background(), &models.AnalyzeCallRequest{
		Call: models.CallRecord{
			ID:          uuid.New(),
			CallerPhone: "+1234567890",
			StartTime:   "2025-06-16T14:30:00Z",
		},
	})
	require.NoError(t, err, "degradation is not an error")

	assert.False(t, resp.CacheHit)
	assert.Equal(t, models.RiskLevelUnknown, resp.Prediction.RiskLevel)
	assert.Equal(t, "error", resp.Prediction.ModelUsed)
	assert.Equal(t, 0.5, resp.Prediction.SpamProbability)
}

func TestTrainAndAnalyzeEndToEnd(t *testing.T) {
	service := newTestService(t)

	result, err := service.TrainFromCorpus(context.Background(), &models.TrainRequest{
		Corpus:          spamCorpus(60),
		ValidationSplit: 0.2,
	})
	require.NoError(t, err)
	assert.True(t, result.EnsembleBuilt)
	assert.True(t, service.IsTrained())

	spam := &models.AnalyzeCallRequest{
		Call: models.CallRecord{
			ID:              uuid.New(),
			CallerPhone:     "+19990000099",
			StartTime:       "2025-06-16T10:00:00Z",
			DurationSeconds: 15,
		},
		Transcript: "you won a free cruise act now before the offer expires",
	}
	ham := &models.AnalyzeCallRequest{
		Call: models.CallRecord{
			ID:              uuid.New(),
			CallerPhone:     "+15550000099",
			StartTime:       "2025-06-16T10:00:00Z",
			DurationSeconds: 120,
		},
		Transcript: "are we still on for dinner tonight",
	}

	spamResp, err := service.AnalyzeCall(context.Background(), spam)
	require.NoError(t, err)
	hamResp, err := service.AnalyzeCall(context.Background(), ham)
	require.NoError(t, err)

	assert.Empty(t, spamResp.Prediction.Error)
	assert.Empty(t, hamResp.Prediction.Error)
	assert.Greater(t, spamResp.Prediction.SpamProbability, hamResp.Prediction.SpamProbability)
	assert.NotEmpty(t, spamResp.Features, "feature vector returned on cache miss")

	overview := service.Models()
	assert.Contains(t, overview.Trained, classifier.ModelEnsemble)
	assert.NotEmpty(t, overview.History)

	importance := service.FeatureImportance(classifier.ModelEnsemble)
	assert.NotEmpty(t, importance)
	assert.LessOrEqual(t, len(importance), service.config.ML.TopFeatures)
}

func TestEvaluateModelRequiresTraining(t *testing.T) {
	service := newTestService(t)

	_, err := service.EvaluateModel(spamCorpus(10), classifier.ModelEnsemble)
	assert.Error(t, err)

	_, err = service.EvaluateModel(nil, classifier.ModelEnsemble)
	assert.Error(t, err)
}

func TestUpdateFromBatchValidation(t *testing.T) {
	service := newTestService(t)

	_, err := service.UpdateFromBatch(context.Background(), nil)
	assert.Error(t, err)

	_, err = service.UpdateFromBatch(context.Background(), spamCorpus(10))
	assert.Error(t, err, "update requires a trained model")
}

func TestSplitCorpusStride(t *testing.T) {
	vectors := make([]map[string]float64, 10)
	labels := make([]int, 10)
	for i := range vectors {
		vectors[i] = map[string]float64{"x": float64(i)}
		labels[i] = i % 2
	}

	trainV, trainY, valV, valY := splitCorpus(vectors, labels, 0.2)
	assert.Len(t, valV, 2, "every fifth sample held out")
	assert.Len(t, trainV, 8)
	assert.Len(t, trainY, 8)
	assert.Len(t, valY, 2)
	assert.Equal(t, 0.0, valV[0]["x"])
	assert.Equal(t, 5.0, valV[1]["x"])

	// Both labels land in both partitions despite the grouped ordering
	assert.Contains(t, trainY, 0)
	assert.Contains(t, trainY, 1)
}

func TestSplitCorpusBounds(t *testing.T) {
	vectors := []map[string]float64{{"x": 1}, {"x": 2}}
	labels := []int{0, 1}

	trainV, _, valV, _ := splitCorpus(vectors, labels, 0)
	assert.Len(t, trainV, 2)
	assert.Nil(t, valV, "zero split disables validation")

	trainV, _, valV, _ = splitCorpus(vectors, labels, 0.9)
	assert.Len(t, trainV, 1, "split clamps to one half")
	assert.Len(t, valV, 1)

	// Degenerate split that would empty the training set falls back
	trainV, _, valV, _ = splitCorpus(vectors[:1], labels[:1], 0.5)
	assert.Len(t, trainV, 1)
	assert.Nil(t, valV)
}

func TestVectorizeCorpus(t *testing.T) {
	service := newTestService(t)

	vectors, labels := service.vectorizeCorpus(spamCorpus(4))
	require.Len(t, vectors, 4)
	assert.Equal(t, []int{1, 0, 1, 0}, labels)
	for _, vector := range vectors {
		assert.Contains(t, vector, "temporal_call_duration")
		assert.Contains(t, vector, "text_word_count")
	}
}
