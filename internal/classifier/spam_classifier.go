package classifier

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"profile-analytics/internal/config"
	"profile-analytics/internal/models"
)

// Risk-level probability boundaries. Fixed, not configurable: downstream
// handling and historical profiles depend on these exact cut points.
const (
	riskLowUpper  = 0.3
	riskHighLower = 0.7
)

// ModelScore records one model family's training outcome
type ModelScore struct {
	TrainAccuracy      float64       `json:"train_accuracy"`
	ValidationAccuracy *float64      `json:"validation_accuracy,omitempty"`
	TrainingTime       time.Duration `json:"training_time"`
}

// TrainingHistoryRecord is one append-only entry of the training log
type TrainingHistoryRecord struct {
	Timestamp   time.Time                     `json:"timestamp"`
	Duration    time.Duration                 `json:"duration"`
	Samples     int                           `json:"samples"`
	Features    int                           `json:"features"`
	Scores      map[string]ModelScore         `json:"scores"`
	Importances map[string]map[string]float64 `json:"importances"`
}

// TrainingResult summarizes one Train call
type TrainingResult struct {
	Trained       []string              `json:"trained"`
	Skipped       map[string]string     `json:"skipped,omitempty"`
	Scores        map[string]ModelScore `json:"scores"`
	EnsembleBuilt bool                  `json:"ensemble_built"`
	Duration      time.Duration         `json:"duration"`
}

// TrainOptions carries the optional validation set and ensemble switch
type TrainOptions struct {
	XVal        *mat.Dense
	YVal        []int
	UseEnsemble bool
}

// SpamClassifier trains, calibrates, ensembles, evaluates, persists and
// serves predictions from the five base model families.
//
// The model set is read-only during inference; Train, LoadModels and
// SaveModels take the write lock, so a single scheduled retraining writer
// can coexist with many concurrent prediction readers.
type SpamClassifier struct {
	cfg    *config.MLConfig
	logger *zap.Logger

	mu           sync.RWMutex
	featureNames []string
	modelSet     map[string]Classifier
	calibrated   map[string]*CalibratedClassifier
	ensemble     *VotingEnsemble
	history      []TrainingHistoryRecord
	performance  map[string]*PerformanceMetrics
	importances  map[string]map[string]float64
}

// NewSpamClassifier creates an untrained spam classifier
func NewSpamClassifier(cfg *config.MLConfig, logger *zap.Logger) *SpamClassifier {
	return &SpamClassifier{
		cfg:         cfg,
		logger:      logger,
		modelSet:    make(map[string]Classifier),
		calibrated:  make(map[string]*CalibratedClassifier),
		performance: make(map[string]*PerformanceMetrics),
		importances: make(map[string]map[string]float64),
	}
}

// Train fits every base model family independently. A family that fails to
// fit is skipped and logged; training only fails outright when every family
// fails. Each successful family gets an isotonically calibrated variant,
// and a soft-voting ensemble is built when more than two families trained.
func (c *SpamClassifier) Train(X *mat.Dense, y []int, featureNames []string, opts TrainOptions) (*TrainingResult, error) {
	rows, cols := X.Dims()
	if rows == 0 || rows != len(y) {
		return nil, fmt.Errorf("training data dimension mismatch: %d rows, %d labels", rows, len(y))
	}
	if cols != len(featureNames) {
		return nil, fmt.Errorf("feature name count %d does not match %d columns", len(featureNames), cols)
	}

	start := time.Now()
	result := &TrainingResult{
		Skipped: make(map[string]string),
		Scores:  make(map[string]ModelScore),
	}

	trained := make(map[string]Classifier, len(baseModelFamilies))
	importances := make(map[string]map[string]float64)

	for _, family := range baseModelFamilies {
		model, err := newFamilyModel(family)
		if err != nil {
			result.Skipped[family] = err.Error()
			continue
		}

		familyStart := time.Now()
		if err := model.Fit(X, y); err != nil {
			c.logger.Warn("model family failed to train, skipping",
				zap.String("family", family),
				zap.Error(err))
			result.Skipped[family] = err.Error()
			continue
		}

		score := ModelScore{
			TrainAccuracy: accuracyOf(model.Predict(X), y),
			TrainingTime:  time.Since(familyStart),
		}
		if opts.XVal != nil && len(opts.YVal) > 0 {
			valAcc := accuracyOf(model.Predict(opts.XVal), opts.YVal)
			score.ValidationAccuracy = &valAcc
		}
		result.Scores[family] = score
		result.Trained = append(result.Trained, family)
		trained[family] = model

		if reporter, ok := model.(importanceReporter); ok {
			importances[family] = importanceMap(featureNames, reporter.FeatureImportances())
		}

		c.logger.Info("model family trained",
			zap.String("family", family),
			zap.Float64("train_accuracy", score.TrainAccuracy),
			zap.Duration("duration", score.TrainingTime))
	}

	if len(trained) == 0 {
		return nil, fmt.Errorf("all model families failed to train")
	}

	calibrated := make(map[string]*CalibratedClassifier, len(trained))
	for family, model := range trained {
		cal, err := calibrateIsotonic(family, model, X, y)
		if err != nil {
			c.logger.Warn("calibration failed, raw model will serve predictions",
				zap.String("family", family),
				zap.Error(err))
			continue
		}
		calibrated[family] = cal
	}

	var ensemble *VotingEnsemble
	if opts.UseEnsemble && len(trained) > 2 {
		names := make([]string, 0, len(trained))
		members := make([]Classifier, 0, len(trained))
		for _, family := range baseModelFamilies {
			if model, ok := trained[family]; ok {
				names = append(names, family)
				members = append(members, model)
			}
		}
		ensemble = NewVotingEnsemble(names, members)

		score := ModelScore{TrainAccuracy: accuracyOf(ensemble.Predict(X), y)}
		if opts.XVal != nil && len(opts.YVal) > 0 {
			valAcc := accuracyOf(ensemble.Predict(opts.XVal), opts.YVal)
			score.ValidationAccuracy = &valAcc
		}
		result.Scores[ModelEnsemble] = score
		result.EnsembleBuilt = true

		if memberImportances := ensemble.MemberImportances(len(featureNames)); memberImportances != nil {
			importances[ModelEnsemble] = importanceMap(featureNames, memberImportances)
		}
	}

	result.Duration = time.Since(start)

	c.mu.Lock()
	c.featureNames = append([]string(nil), featureNames...)
	c.modelSet = trained
	c.calibrated = calibrated
	c.ensemble = ensemble
	c.importances = importances
	c.history = append(c.history, TrainingHistoryRecord{
		Timestamp:   time.Now(),
		Duration:    result.Duration,
		Samples:     rows,
		Features:    cols,
		Scores:      result.Scores,
		Importances: importances,
	})
	c.mu.Unlock()

	c.logger.Info("training completed",
		zap.Strings("trained", result.Trained),
		zap.Int("calibrated", len(calibrated)),
		zap.Bool("ensemble", result.EnsembleBuilt),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// Predict runs inference with an explicitly named model. Selection prefers
// the ensemble when requested and present, then the calibrated variant of
// the named family, then the raw model. An unknown name is a programmer
// error and is returned as such.
func (c *SpamClassifier) Predict(X *mat.Dense, modelName string) ([]int, *mat.Dense, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, model, err := c.resolveModel(modelName)
	if err != nil {
		return nil, nil, err
	}
	return model.Predict(X), probabilitiesOf(model, X), nil
}

// PredictSpamProbability is the safe inference entry point. It builds a
// single-row matrix strictly ordered by featureNames, zero-filling names
// absent from the feature map, and never returns an error: any failure is
// converted into a well-formed degraded result.
//
// Zero-filling missing features is a documented lossy fallback; families
// like pattern_* are absent entirely for new callers, and zero is not
// always a neutral value for them.
func (c *SpamClassifier) PredictSpamProbability(features map[string]float64, featureNames []string) (result *models.PredictionResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("prediction panic recovered", zap.Any("panic", r))
			result = degradedResult(fmt.Sprintf("prediction panic: %v", r))
		}
	}()

	c.mu.RLock()
	defer c.mu.RUnlock()

	name, model, err := c.selectInferenceModel()
	if err != nil {
		c.logger.Warn("no model available for prediction", zap.Error(err))
		return degradedResult(err.Error())
	}

	row := mat.NewDense(1, len(featureNames), nil)
	for j, featureName := range featureNames {
		row.Set(0, j, features[featureName])
	}

	proba := probabilitiesOf(model, row)
	p := proba.At(0, 1)

	confidence := p
	if 1-p > confidence {
		confidence = 1 - p
	}

	return &models.PredictionResult{
		IsSpam:          p >= 0.5,
		SpamProbability: p,
		ConfidenceScore: confidence,
		RiskLevel:       riskLevelFor(p),
		ModelUsed:       name,
		Timestamp:       time.Now(),
	}
}

// Evaluate computes and stores performance metrics for the named model,
// overwriting any previous record under that name
func (c *SpamClassifier) Evaluate(X *mat.Dense, y []int, modelName string) (*PerformanceMetrics, error) {
	c.mu.RLock()
	name, model, err := c.resolveModel(modelName)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	metrics := computeMetrics(name, model.Predict(X), y, probabilitiesOf(model, X))

	c.mu.Lock()
	c.performance[modelName] = metrics
	c.mu.Unlock()

	c.logger.Info("model evaluated",
		zap.String("model", modelName),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("f1", metrics.F1),
		zap.Int("samples", metrics.Samples))

	return metrics, nil
}

// UpdateModel measures the current ensemble against a new labeled batch and
// retrains (on the new batch only) when F1 degraded by more than the
// threshold relative to the last recorded ensemble F1. Returns whether a
// retrain happened; the absence of an ensemble degrades to false, not error.
func (c *SpamClassifier) UpdateModel(newX *mat.Dense, newY []int, retrainThreshold float64) bool {
	c.mu.RLock()
	ensemble := c.ensemble
	featureNames := c.featureNames
	var lastF1 *float64
	if perf, ok := c.performance[ModelEnsemble]; ok {
		lastF1 = &perf.F1
	}
	c.mu.RUnlock()

	if ensemble == nil {
		c.logger.Warn("update requested but no ensemble is trained")
		return false
	}

	current := computeMetrics(ModelEnsemble, ensemble.Predict(newX), newY, probabilitiesOf(ensemble, newX))
	if lastF1 == nil {
		c.mu.Lock()
		c.performance[ModelEnsemble] = current
		c.mu.Unlock()
		c.logger.Info("no baseline ensemble f1, recorded current performance",
			zap.Float64("f1", current.F1))
		return false
	}

	degradation := *lastF1 - current.F1
	if degradation <= retrainThreshold {
		c.logger.Debug("ensemble performance within threshold",
			zap.Float64("baseline_f1", *lastF1),
			zap.Float64("current_f1", current.F1))
		return false
	}

	c.logger.Info("ensemble degraded beyond threshold, retraining on new batch",
		zap.Float64("baseline_f1", *lastF1),
		zap.Float64("current_f1", current.F1),
		zap.Float64("threshold", retrainThreshold))

	if _, err := c.Train(newX, newY, featureNames, TrainOptions{UseEnsemble: true}); err != nil {
		c.logger.Error("retraining failed, keeping previous model set", zap.Error(err))
		return false
	}
	return true
}

// FeatureImportance returns the topK most important features of a model.
// For the ensemble, member importances are averaged against the real
// feature names before ranking. Unavailable importances yield an empty map.
func (c *SpamClassifier) FeatureImportance(modelName string, topK int) map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var byName map[string]float64
	if modelName == ModelEnsemble {
		if c.ensemble == nil {
			return map[string]float64{}
		}
		averaged := c.ensemble.MemberImportances(len(c.featureNames))
		if averaged == nil {
			return map[string]float64{}
		}
		byName = importanceMap(c.featureNames, averaged)
	} else {
		model, ok := c.modelSet[modelName]
		if !ok {
			return map[string]float64{}
		}
		reporter, ok := model.(importanceReporter)
		if !ok {
			return map[string]float64{}
		}
		byName = importanceMap(c.featureNames, reporter.FeatureImportances())
	}

	return topKImportances(byName, topK)
}

// FeatureNamesInUse returns the training-time feature name order
func (c *SpamClassifier) FeatureNamesInUse() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.featureNames...)
}

// IsTrained reports whether at least one base model exists
func (c *SpamClassifier) IsTrained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modelSet) > 0
}

// TrainedModels lists the trained family names plus "ensemble" when built
func (c *SpamClassifier) TrainedModels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.modelSet)+1)
	for _, family := range baseModelFamilies {
		if _, ok := c.modelSet[family]; ok {
			names = append(names, family)
		}
	}
	if c.ensemble != nil {
		names = append(names, ModelEnsemble)
	}
	return names
}

// TrainingHistory returns a copy of the append-only training log
func (c *SpamClassifier) TrainingHistory() []TrainingHistoryRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]TrainingHistoryRecord(nil), c.history...)
}

// Performance returns the latest metrics recorded for the named model
func (c *SpamClassifier) Performance(modelName string) (*PerformanceMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	perf, ok := c.performance[modelName]
	return perf, ok
}

// resolveModel maps a requested model name to a servable estimator.
// Callers must hold at least the read lock.
func (c *SpamClassifier) resolveModel(modelName string) (string, Classifier, error) {
	if modelName == ModelEnsemble {
		if c.ensemble != nil {
			return ModelEnsemble, c.ensemble, nil
		}
		return "", nil, fmt.Errorf("ensemble requested but not trained")
	}
	if cal, ok := c.calibrated[modelName]; ok {
		return modelName, cal, nil
	}
	if model, ok := c.modelSet[modelName]; ok {
		return modelName, model, nil
	}
	return "", nil, fmt.Errorf("model %q was never trained", modelName)
}

// selectInferenceModel picks the estimator for the safe prediction path:
// the ensemble when present, else the best-F1 model from the performance
// records, else the hard-coded default family. Callers hold the read lock.
func (c *SpamClassifier) selectInferenceModel() (string, Classifier, error) {
	if c.ensemble != nil {
		return ModelEnsemble, c.ensemble, nil
	}

	if best := rankModelsByF1(c.performance); best != "" {
		if name, model, err := c.resolveModel(best); err == nil {
			return name, model, nil
		}
	}

	if name, model, err := c.resolveModel(defaultModelFamily); err == nil {
		return name, model, nil
	}
	return "", nil, fmt.Errorf("no trained model available")
}

// rankModelsByF1 returns the best base-model name from a performance map,
// deterministically: highest F1 first, ties broken by ascending name.
// The ensemble entry is excluded since it is preferred structurally.
func rankModelsByF1(performance map[string]*PerformanceMetrics) string {
	names := make([]string, 0, len(performance))
	for name := range performance {
		if name != ModelEnsemble {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := performance[names[i]].F1, performance[names[j]].F1
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names[0]
}

func riskLevelFor(p float64) models.RiskLevel {
	switch {
	case p < riskLowUpper:
		return models.RiskLevelLow
	case p < riskHighLower:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelHigh
	}
}

func degradedResult(reason string) *models.PredictionResult {
	return &models.PredictionResult{
		IsSpam:          false,
		SpamProbability: 0.5,
		ConfidenceScore: 0,
		RiskLevel:       models.RiskLevelUnknown,
		ModelUsed:       "error",
		Timestamp:       time.Now(),
		Error:           reason,
	}
}

func importanceMap(featureNames []string, importances []float64) map[string]float64 {
	byName := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		if i < len(importances) {
			byName[name] = importances[i]
		}
	}
	return byName
}

func topKImportances(byName map[string]float64, topK int) map[string]float64 {
	if topK <= 0 || topK >= len(byName) {
		return byName
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if byName[names[i]] != byName[names[j]] {
			return byName[names[i]] > byName[names[j]]
		}
		return names[i] < names[j]
	})
	top := make(map[string]float64, topK)
	for _, name := range names[:topK] {
		top[name] = byName[name]
	}
	return top
}
