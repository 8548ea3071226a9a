package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"profile-analytics/internal/config"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	c, _, X, y := trainTestClassifier(t, 120)
	_, err := c.Evaluate(X, y, ModelEnsemble)
	require.NoError(t, err)

	path, err := c.SaveModels("v1")
	require.NoError(t, err)
	assert.Contains(t, path, "v1")

	restored := NewSpamClassifier(c.cfg, zap.NewNop())
	require.True(t, restored.LoadModels("v1"))

	assert.Equal(t, c.FeatureNamesInUse(), restored.FeatureNamesInUse())
	assert.ElementsMatch(t, c.TrainedModels(), restored.TrainedModels())
	assert.Len(t, restored.TrainingHistory(), 1)

	perf, ok := restored.Performance(ModelEnsemble)
	require.True(t, ok)
	assert.Greater(t, perf.F1, 0.9)

	// A restored model set must reproduce the original predictions exactly
	samples := []map[string]float64{
		{"risk_signal": 4.5, "secondary_signal": 2.5, "noise": 0.1},
		{"risk_signal": 0.2, "secondary_signal": 0.1, "noise": 0.9},
		{"risk_signal": 2.0, "secondary_signal": 1.0, "noise": 0.5},
	}
	for _, features := range samples {
		original := c.PredictSpamProbability(features, c.FeatureNamesInUse())
		reloaded := restored.PredictSpamProbability(features, restored.FeatureNamesInUse())
		assert.InDelta(t, original.SpamProbability, reloaded.SpamProbability, 1e-12)
		assert.Equal(t, original.RiskLevel, reloaded.RiskLevel)
		assert.Equal(t, original.ModelUsed, reloaded.ModelUsed)
	}
}

func TestSaveModelsUntrained(t *testing.T) {
	c := newTestClassifier(t)
	_, err := c.SaveModels("v1")
	assert.Error(t, err)
}

func TestLoadModelsMissingVersion(t *testing.T) {
	c := newTestClassifier(t)
	assert.False(t, c.LoadModels("does-not-exist"))
	assert.False(t, c.LoadModels(""), "empty model path has no versions")
}

func TestLoadModelsLatestVersion(t *testing.T) {
	c, _, _, _ := trainTestClassifier(t, 120)

	_, err := c.SaveModels("v1")
	require.NoError(t, err)
	_, err = c.SaveModels("v2")
	require.NoError(t, err)

	restored := NewSpamClassifier(c.cfg, zap.NewNop())
	assert.True(t, restored.LoadModels(""), "empty version resolves to the latest save")
	assert.True(t, restored.IsTrained())
}

func TestSaveModelsGeneratesVersion(t *testing.T) {
	c, _, _, _ := trainTestClassifier(t, 120)

	path, err := c.SaveModels("")
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	restored := NewSpamClassifier(c.cfg, zap.NewNop())
	assert.True(t, restored.LoadModels(""))
}

func TestLoadRebindsCalibrationAndEnsemble(t *testing.T) {
	c, result, _, _ := trainTestClassifier(t, 120)
	require.True(t, result.EnsembleBuilt)

	_, err := c.SaveModels("v1")
	require.NoError(t, err)

	restored := NewSpamClassifier(&config.MLConfig{ModelPath: c.cfg.ModelPath}, zap.NewNop())
	require.True(t, restored.LoadModels("v1"))

	// The restored ensemble serves the safe prediction path
	prediction := restored.PredictSpamProbability(map[string]float64{
		"risk_signal": 4.5, "secondary_signal": 2.5,
	}, restored.FeatureNamesInUse())
	assert.Equal(t, ModelEnsemble, prediction.ModelUsed)
	assert.Empty(t, prediction.Error)
}
