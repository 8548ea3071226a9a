package classifier

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"profile-analytics/internal/config"
	"profile-analytics/internal/models"
)

var testFeatureNames = []string{"risk_signal", "secondary_signal", "noise"}

func newTestClassifier(t *testing.T) *SpamClassifier {
	t.Helper()
	cfg := &config.MLConfig{
		Enabled:   true,
		ModelPath: t.TempDir(),
	}
	return NewSpamClassifier(cfg, zap.NewNop())
}

// separableData produces a corpus where spam carries a strong first feature,
// so every family should learn the boundary
func separableData(n int) (*mat.Dense, []int) {
	rng := rand.New(rand.NewSource(7))
	X := mat.NewDense(n, len(testFeatureNames), nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			y[i] = 1
			X.Set(i, 0, 4+rng.Float64())
			X.Set(i, 1, 2+rng.Float64())
		} else {
			X.Set(i, 0, rng.Float64())
			X.Set(i, 1, rng.Float64())
		}
		X.Set(i, 2, rng.Float64())
	}
	return X, y
}

func trainTestClassifier(t *testing.T, n int) (*SpamClassifier, *TrainingResult, *mat.Dense, []int) {
	t.Helper()
	c := newTestClassifier(t)
	X, y := separableData(n)
	result, err := c.Train(X, y, testFeatureNames, TrainOptions{UseEnsemble: true})
	require.NoError(t, err)
	return c, result, X, y
}

func TestRiskLevelBoundaries(t *testing.T) {
	cases := []struct {
		probability float64
		expected    models.RiskLevel
	}{
		{0.0, models.RiskLevelLow},
		{0.29, models.RiskLevelLow},
		{0.3, models.RiskLevelMedium},
		{0.5, models.RiskLevelMedium},
		{0.69, models.RiskLevelMedium},
		{0.7, models.RiskLevelHigh},
		{1.0, models.RiskLevelHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, riskLevelFor(tc.probability), "p=%.2f", tc.probability)
	}
}

func TestPredictSpamProbabilityUntrained(t *testing.T) {
	c := newTestClassifier(t)

	result := c.PredictSpamProbability(map[string]float64{"risk_signal": 5}, testFeatureNames)

	assert.False(t, result.IsSpam)
	assert.Equal(t, 0.5, result.SpamProbability)
	assert.Equal(t, 0.0, result.ConfidenceScore)
	assert.Equal(t, models.RiskLevelUnknown, result.RiskLevel)
	assert.Equal(t, "error", result.ModelUsed)
	assert.NotEmpty(t, result.Error)
}

func TestTrainBuildsAllFamilies(t *testing.T) {
	_, result, _, _ := trainTestClassifier(t, 120)

	assert.ElementsMatch(t, baseModelFamilies, result.Trained)
	assert.Empty(t, result.Skipped)
	assert.True(t, result.EnsembleBuilt)

	for family, score := range result.Scores {
		assert.GreaterOrEqual(t, score.TrainAccuracy, 0.9, "family %s underfits separable data", family)
	}
}

func TestTrainDimensionMismatch(t *testing.T) {
	c := newTestClassifier(t)
	X, y := separableData(20)

	_, err := c.Train(X, y[:10], testFeatureNames, TrainOptions{})
	assert.Error(t, err)

	_, err = c.Train(X, y, []string{"only_one"}, TrainOptions{})
	assert.Error(t, err)
}

func TestPredictSpamProbabilityTrained(t *testing.T) {
	c, _, _, _ := trainTestClassifier(t, 120)

	spam := c.PredictSpamProbability(map[string]float64{
		"risk_signal":      4.5,
		"secondary_signal": 2.5,
		"noise":            0.5,
	}, c.FeatureNamesInUse())
	ham := c.PredictSpamProbability(map[string]float64{
		"risk_signal":      0.2,
		"secondary_signal": 0.3,
		"noise":            0.5,
	}, c.FeatureNamesInUse())

	assert.Empty(t, spam.Error)
	assert.Empty(t, ham.Error)
	assert.Equal(t, ModelEnsemble, spam.ModelUsed)
	assert.Greater(t, spam.SpamProbability, ham.SpamProbability)
	assert.True(t, spam.IsSpam)
	assert.False(t, ham.IsSpam)

	// Missing features zero-fill rather than erroring
	partial := c.PredictSpamProbability(map[string]float64{}, c.FeatureNamesInUse())
	assert.Empty(t, partial.Error)
	assert.GreaterOrEqual(t, partial.SpamProbability, 0.0)
	assert.LessOrEqual(t, partial.SpamProbability, 1.0)
}

func TestEvaluate(t *testing.T) {
	c, _, X, y := trainTestClassifier(t, 120)

	perf, err := c.Evaluate(X, y, ModelEnsemble)
	require.NoError(t, err)

	assert.Equal(t, ModelEnsemble, perf.ModelName)
	assert.GreaterOrEqual(t, perf.Accuracy, 0.9)
	assert.GreaterOrEqual(t, perf.F1, 0.9)
	assert.LessOrEqual(t, perf.F1, 1.0)
	assert.Equal(t, 120, perf.Samples)
	require.Len(t, perf.ConfusionMatrix, 2)
	require.Len(t, perf.ConfusionMatrix[0], 2)
	require.NotNil(t, perf.AUC)
	assert.Greater(t, *perf.AUC, 0.9)

	stored, ok := c.Performance(ModelEnsemble)
	require.True(t, ok)
	assert.Equal(t, perf.F1, stored.F1)
}

func TestEvaluateUnknownModel(t *testing.T) {
	c, _, X, y := trainTestClassifier(t, 60)

	_, err := c.Evaluate(X, y, "nonexistent")
	assert.Error(t, err)
}

func TestUpdateModelStableAndDegraded(t *testing.T) {
	c, _, X, y := trainTestClassifier(t, 120)

	// Establish a baseline ensemble F1
	_, err := c.Evaluate(X, y, ModelEnsemble)
	require.NoError(t, err)

	// Fresh batch from the same distribution: no degradation, no retrain
	freshX, freshY := separableData(60)
	assert.False(t, c.UpdateModel(freshX, freshY, 0.05))

	// Flipped labels collapse F1 far beyond the threshold
	flipped := make([]int, len(freshY))
	for i, label := range freshY {
		flipped[i] = 1 - label
	}
	assert.True(t, c.UpdateModel(freshX, flipped, 0.05))
}

func TestUpdateModelWithoutEnsemble(t *testing.T) {
	c := newTestClassifier(t)
	X, y := separableData(30)
	assert.False(t, c.UpdateModel(X, y, 0.05))
}

func TestTrainedModelsAndHistory(t *testing.T) {
	c, _, _, _ := trainTestClassifier(t, 120)

	names := c.TrainedModels()
	assert.Contains(t, names, ModelRandomForest)
	assert.Contains(t, names, ModelEnsemble)
	assert.True(t, c.IsTrained())

	history := c.TrainingHistory()
	require.Len(t, history, 1)
	assert.Equal(t, 120, history[0].Samples)
	assert.Equal(t, len(testFeatureNames), history[0].Features)
}

func TestFeatureImportanceRanking(t *testing.T) {
	c, _, _, _ := trainTestClassifier(t, 120)

	importance := c.FeatureImportance(ModelEnsemble, 0)
	require.NotEmpty(t, importance)
	assert.Greater(t, importance["risk_signal"], importance["noise"],
		"the separating feature should dominate importance")

	top := c.FeatureImportance(ModelRandomForest, 1)
	assert.Len(t, top, 1)

	assert.Empty(t, c.FeatureImportance("nonexistent", 5))
}

func TestRankModelsByF1(t *testing.T) {
	performance := map[string]*PerformanceMetrics{
		"alpha":       {F1: 0.8},
		"beta":        {F1: 0.9},
		ModelEnsemble: {F1: 0.99},
	}
	assert.Equal(t, "beta", rankModelsByF1(performance), "ensemble excluded from ranking")

	tied := map[string]*PerformanceMetrics{
		"zeta":  {F1: 0.9},
		"alpha": {F1: 0.9},
	}
	assert.Equal(t, "alpha", rankModelsByF1(tied), "ties break by ascending name")

	assert.Equal(t, "", rankModelsByF1(nil))
}

func TestFeatureNamesAndBuildMatrix(t *testing.T) {
	vectors := []map[string]float64{
		{"b": 2, "a": 1},
		{"c": 3},
	}

	names := FeatureNames(vectors)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	matrix := BuildMatrix(vectors, names)
	assert.Equal(t, 1.0, matrix.At(0, 0))
	assert.Equal(t, 2.0, matrix.At(0, 1))
	assert.Equal(t, 0.0, matrix.At(0, 2), "absent names zero-fill")
	assert.Equal(t, 3.0, matrix.At(1, 2))
}
