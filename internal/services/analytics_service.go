package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"profile-analytics/internal/cache"
	"profile-analytics/internal/classifier"
	"profile-analytics/internal/config"
	"profile-analytics/internal/features"
	"profile-analytics/internal/integration"
	"profile-analytics/internal/metrics"
	"profile-analytics/internal/models"
	"profile-analytics/internal/monitoring"
)

// AnalyticsService orchestrates feature extraction, classification, caching
// and profile persistence for call risk analysis.
//
// Training is serialized through trainMu so concurrent train requests cannot
// interleave; prediction stays lock-free here because the classifier guards
// its own model set.
type AnalyticsService struct {
	config          *config.Config
	logger          *zap.Logger
	processor       *features.Processor
	classifier      *classifier.SpamClassifier
	cacheService    *cache.CacheService
	whitelistClient *integration.WhitelistClient
	metrics         *metrics.MetricsCollector
	audit           *monitoring.AuditLogger

	trainMu sync.Mutex
}

// ModelsOverview summarizes the current model state for the API
type ModelsOverview struct {
	Trained     []string                                  `json:"trained_models"`
	Performance map[string]*classifier.PerformanceMetrics `json:"performance"`
	History     []classifier.TrainingHistoryRecord        `json:"training_history"`
}

// AnalyzeCall produces a spam risk assessment for one screened call. The
// memoization cache is consulted first; on a miss the feature vector is
// built, classified, memoized and folded into the caller's persisted profile.
func (s *AnalyticsService) AnalyzeCall(ctx context.Context, req *models.AnalyzeCallRequest) (*models.AnalyzeCallResponse, error) {
	start := time.Now()

	if s.cacheService != nil {
		cached, key := s.cacheService.CachedPrediction(ctx, req)
		if cached != nil {
			s.metrics.RecordPrediction(string(cached.RiskLevel), cached.ModelUsed, "cache", time.Since(start))
			return &models.AnalyzeCallResponse{
				Prediction:     cached,
				CacheHit:       true,
				ProcessingTime: time.Since(start),
			}, nil
		}
		return s.analyzeAndMemoize(ctx, req, key, start)
	}
	return s.analyzeAndMemoize(ctx, req, "", start)
}

func (s *AnalyticsService) analyzeAndMemoize(ctx context.Context, req *models.AnalyzeCallRequest, cacheKey string, start time.Time) (*models.AnalyzeCallResponse, error) {
	extractStart := time.Now()
	vector := s.processor.CreateFeatureVector(req.Call, req.History, req.Transcript)
	s.metrics.RecordFeatureExtraction("vector", time.Since(extractStart), len(vector))

	prediction := s.classifier.PredictSpamProbability(vector, s.classifier.FeatureNamesInUse())

	if prediction.Error != "" {
		s.metrics.RecordDegradedPrediction()
		s.logger.Warn("prediction degraded",
			zap.String("reason", prediction.Error),
			zap.String("call_id", req.Call.ID.String()))
		if s.audit != nil {
			s.audit.LogEvent(monitoring.EventDegradedAnalysis, "analyze_call", "prediction fell back to neutral result").
				Resource(req.Call.ID.String(), "call").
				Severity("low").
				Status("failure").
				Detail("reason", prediction.Error).
				Commit()
		}
	} else {
		if s.cacheService != nil {
			s.cacheService.StorePrediction(cacheKey, prediction)
			go s.recordProfile(req.Call.CallerPhone, prediction, vector)
		}
		s.reportHighRisk(req.Call, prediction)
	}

	s.metrics.RecordPrediction(string(prediction.RiskLevel), prediction.ModelUsed, "model", time.Since(start))

	return &models.AnalyzeCallResponse{
		Prediction:     prediction,
		Features:       vector,
		CacheHit:       false,
		ProcessingTime: time.Since(start),
	}, nil
}

// recordProfile folds a prediction into the caller's persisted spam profile
func (s *AnalyticsService) recordProfile(callerPhone string, prediction *models.PredictionResult, vector map[string]float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.cacheService.RecordPrediction(ctx, callerPhone, prediction, vector); err != nil {
		s.logger.Warn("failed to record prediction in spam profile", zap.Error(err))
	}
}

// reportHighRisk pushes high-risk callers to the whitelist service so they
// can be blocked before the next screening
func (s *AnalyticsService) reportHighRisk(call models.CallRecord, prediction *models.PredictionResult) {
	if s.whitelistClient == nil || prediction.RiskLevel != models.RiskLevelHigh {
		return
	}
	if prediction.ConfidenceScore < s.config.ML.ConfidenceThreshold {
		return
	}

	if s.audit != nil {
		s.audit.LogEvent(monitoring.EventHighRiskDetection, "report_high_risk", "high-risk caller reported to whitelist service").
			Actor(call.UserID.String(), "user").
			Resource(call.ID.String(), "call").
			Severity("high").
			Detail("spam_probability", prediction.SpamProbability).
			Detail("model_used", prediction.ModelUsed).
			SensitiveData(call.CallerPhone).
			Commit()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Integration.RequestTimeout)
		defer cancel()

		report := &integration.SpamReport{
			UserID:          call.UserID,
			CallerPhone:     call.CallerPhone,
			SpamProbability: prediction.SpamProbability,
			RiskLevel:       prediction.RiskLevel,
			ModelUsed:       prediction.ModelUsed,
			ReportedAt:      time.Now(),
		}
		if err := s.whitelistClient.ReportSpam(ctx, report); err != nil {
			s.logger.Warn("failed to report high-risk caller", zap.Error(err))
		}
	}()
}

// TrainFromCorpus trains the full model set on a labeled corpus. The corpus
// is vectorized, split into train and validation partitions, trained,
// evaluated, persisted, and the prediction cache is invalidated since the
// old model's memoized results are stale.
func (s *AnalyticsService) TrainFromCorpus(ctx context.Context, req *models.TrainRequest) (*classifier.TrainingResult, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := time.Now()

	if len(req.Corpus) < s.config.ML.MinTrainingSamples {
		s.logger.Warn("corpus below configured minimum, training anyway",
			zap.Int("corpus_size", len(req.Corpus)),
			zap.Int("min_samples", s.config.ML.MinTrainingSamples))
	}

	// Fit the transcript vocabulary first so corpus vectors carry tfidf terms
	transcripts := make([]string, len(req.Corpus))
	for i, sample := range req.Corpus {
		transcripts[i] = sample.Transcript
	}
	s.processor.FitTextVectorizer(transcripts)

	vectors, labels := s.vectorizeCorpus(req.Corpus)
	featureNames := classifier.FeatureNames(vectors)
	if len(featureNames) == 0 {
		s.metrics.RecordTrainingRun("error", time.Since(start), 0)
		return nil, fmt.Errorf("corpus produced no features")
	}

	trainVectors, trainLabels, valVectors, valLabels := splitCorpus(vectors, labels, req.ValidationSplit)

	opts := classifier.TrainOptions{UseEnsemble: s.config.ML.UseEnsemble}
	if req.UseEnsemble != nil {
		opts.UseEnsemble = *req.UseEnsemble
	}
	if len(valVectors) > 0 {
		opts.XVal = classifier.BuildMatrix(valVectors, featureNames)
		opts.YVal = valLabels
	}

	X := classifier.BuildMatrix(trainVectors, featureNames)
	result, err := s.classifier.Train(X, trainLabels, featureNames, opts)
	if err != nil {
		s.metrics.RecordTrainingRun("error", time.Since(start), len(req.Corpus))
		return nil, err
	}

	// Refresh processor state from the new model set
	if err := s.processor.FitScaler(vectors, features.ScalerStandard); err != nil {
		s.logger.Warn("failed to fit feature scaler", zap.Error(err))
	}
	importanceModel := classifier.ModelEnsemble
	if !result.EnsembleBuilt {
		importanceModel = result.Trained[0]
	}
	s.processor.SetFeatureImportance(s.classifier.FeatureImportance(importanceModel, 0), featureNames)

	// Evaluate on the held-out partition
	if len(valVectors) > 0 {
		perf, evalErr := s.classifier.Evaluate(opts.XVal, opts.YVal, importanceModel)
		if evalErr != nil {
			s.logger.Warn("post-training evaluation failed", zap.Error(evalErr))
		} else if importanceModel == classifier.ModelEnsemble {
			s.metrics.UpdateEnsembleF1(perf.F1)
		}
	}

	if path, saveErr := s.classifier.SaveModels(""); saveErr != nil {
		s.logger.Error("failed to persist trained models", zap.Error(saveErr))
	} else {
		s.logger.Info("trained models persisted", zap.String("path", path))
	}

	if s.cacheService != nil {
		if invErr := s.cacheService.InvalidatePredictions(ctx); invErr != nil {
			s.logger.Warn("failed to invalidate prediction cache after training", zap.Error(invErr))
		}
	}

	s.metrics.RecordTrainingRun("success", time.Since(start), len(req.Corpus))

	if s.audit != nil {
		s.audit.LogEvent(monitoring.EventModelTraining, "train", "model set trained from labeled corpus").
			Actor("analytics-service", "service").
			Resource(importanceModel, "model").
			Detail("corpus_size", len(req.Corpus)).
			Detail("trained_models", result.Trained).
			Detail("ensemble_built", result.EnsembleBuilt).
			Commit()
	}

	return result, nil
}

// UpdateFromBatch checks the model against freshly labeled calls and retrains
// when performance degraded beyond the configured threshold. Returns whether
// a retrain happened.
func (s *AnalyticsService) UpdateFromBatch(ctx context.Context, corpus []models.LabeledCall) (bool, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	if len(corpus) == 0 {
		return false, fmt.Errorf("empty update batch")
	}

	featureNames := s.classifier.FeatureNamesInUse()
	if len(featureNames) == 0 {
		return false, fmt.Errorf("no trained model to update")
	}

	vectors, labels := s.vectorizeCorpus(corpus)
	X := classifier.BuildMatrix(vectors, featureNames)

	retrained := s.classifier.UpdateModel(X, labels, s.config.ML.RetrainThreshold)
	if !retrained {
		return false, nil
	}

	s.metrics.RecordRetrain()

	if s.audit != nil {
		s.audit.LogEvent(monitoring.EventModelUpdate, "update", "performance degraded, model set retrained").
			Actor("analytics-service", "service").
			Detail("batch_size", len(corpus)).
			Detail("retrain_threshold", s.config.ML.RetrainThreshold).
			Commit()
	}

	if path, err := s.classifier.SaveModels(""); err != nil {
		s.logger.Error("failed to persist retrained models", zap.Error(err))
	} else {
		s.logger.Info("retrained models persisted", zap.String("path", path))
	}

	if s.cacheService != nil {
		if err := s.cacheService.InvalidatePredictions(ctx); err != nil {
			s.logger.Warn("failed to invalidate prediction cache after retrain", zap.Error(err))
		}
	}

	return true, nil
}

// EvaluateModel scores the named model against a labeled corpus
func (s *AnalyticsService) EvaluateModel(corpus []models.LabeledCall, modelName string) (*classifier.PerformanceMetrics, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("empty evaluation corpus")
	}

	featureNames := s.classifier.FeatureNamesInUse()
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("no trained model to evaluate")
	}

	vectors, labels := s.vectorizeCorpus(corpus)
	X := classifier.BuildMatrix(vectors, featureNames)

	perf, err := s.classifier.Evaluate(X, labels, modelName)
	if err != nil {
		return nil, err
	}
	if modelName == classifier.ModelEnsemble {
		s.metrics.UpdateEnsembleF1(perf.F1)
	}
	return perf, nil
}

// Models returns the current model state for the API
func (s *AnalyticsService) Models() *ModelsOverview {
	overview := &ModelsOverview{
		Trained:     s.classifier.TrainedModels(),
		Performance: make(map[string]*classifier.PerformanceMetrics),
		History:     s.classifier.TrainingHistory(),
	}
	for _, name := range overview.Trained {
		if perf, ok := s.classifier.Performance(name); ok {
			overview.Performance[name] = perf
		}
	}
	return overview
}

// FeatureImportance returns the top configured features of the named model
func (s *AnalyticsService) FeatureImportance(modelName string) map[string]float64 {
	return s.classifier.FeatureImportance(modelName, s.config.ML.TopFeatures)
}

// GetSpamProfile returns the persisted risk profile of a caller
func (s *AnalyticsService) GetSpamProfile(ctx context.Context, phoneNumber string) (*models.SpamProfile, error) {
	if s.cacheService == nil {
		return nil, fmt.Errorf("profile storage not configured")
	}
	if s.audit != nil {
		s.audit.LogEvent(monitoring.EventProfileAccess, "get_profile", "caller risk profile looked up").
			Severity("low").
			SensitiveData(phoneNumber).
			Commit()
	}
	return s.cacheService.GetSpamProfile(ctx, phoneNumber)
}

// IsTrained reports whether the classifier can serve real predictions
func (s *AnalyticsService) IsTrained() bool {
	return s.classifier.IsTrained()
}

// vectorizeCorpus converts labeled calls into feature vectors and labels
func (s *AnalyticsService) vectorizeCorpus(corpus []models.LabeledCall) ([]map[string]float64, []int) {
	vectors := make([]map[string]float64, len(corpus))
	labels := make([]int, len(corpus))
	for i, sample := range corpus {
		vectors[i] = s.processor.CreateFeatureVector(sample.Call, sample.History, sample.Transcript)
		if sample.IsSpam {
			labels[i] = 1
		}
	}
	return vectors, labels
}

// splitCorpus partitions vectors into train and validation sets with a
// stride-based split, so grouped corpora still land in both partitions.
// The split fraction is clamped to [0, 0.5]; zero disables validation.
func splitCorpus(vectors []map[string]float64, labels []int, split float64) (trainV []map[string]float64, trainY []int, valV []map[string]float64, valY []int) {
	if split <= 0 {
		return vectors, labels, nil, nil
	}
	if split > 0.5 {
		split = 0.5
	}

	stride := int(1.0 / split)
	if stride < 2 {
		stride = 2
	}

	for i := range vectors {
		if i%stride == 0 {
			valV = append(valV, vectors[i])
			valY = append(valY, labels[i])
		} else {
			trainV = append(trainV, vectors[i])
			trainY = append(trainY, labels[i])
		}
	}

	// A degenerate split would leave nothing to train on
	if len(trainV) == 0 {
		return vectors, labels, nil, nil
	}
	return trainV, trainY, valV, valY
}

// Close gracefully shuts down the service
func (s *AnalyticsService) Close() error {
	s.logger.Info("analytics service closed")
	return nil
}
