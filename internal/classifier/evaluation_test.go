package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func probaFromScores(scores []float64) *mat.Dense {
	proba := mat.NewDense(len(scores), 2, nil)
	for i, p := range scores {
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba
}

func TestComputeMetricsPerfect(t *testing.T) {
	actual := []int{0, 1, 0, 1, 1, 0}
	proba := probaFromScores([]float64{0.1, 0.9, 0.2, 0.8, 0.95, 0.05})

	metrics := computeMetrics("test", actual, actual, proba)

	assert.Equal(t, 1.0, metrics.Accuracy)
	assert.Equal(t, 1.0, metrics.Precision)
	assert.Equal(t, 1.0, metrics.Recall)
	assert.Equal(t, 1.0, metrics.F1)
	assert.Equal(t, 6, metrics.Samples)

	require.NotNil(t, metrics.AUC)
	assert.Equal(t, 1.0, *metrics.AUC, "perfectly separated scores give AUC 1")

	// Diagonal confusion matrix
	assert.Equal(t, 3, metrics.ConfusionMatrix[0][0])
	assert.Equal(t, 0, metrics.ConfusionMatrix[0][1])
	assert.Equal(t, 0, metrics.ConfusionMatrix[1][0])
	assert.Equal(t, 3, metrics.ConfusionMatrix[1][1])
}

func TestComputeMetricsMixed(t *testing.T) {
	actual := []int{1, 1, 1, 1, 0, 0, 0, 0}
	predicted := []int{1, 1, 1, 0, 0, 0, 0, 1}

	metrics := computeMetrics("test", predicted, actual, nil)

	assert.Equal(t, 0.75, metrics.Accuracy)
	assert.Nil(t, metrics.AUC, "no probabilities means no AUC")

	spam := metrics.Report[1]
	assert.Equal(t, 4, spam.Support)
	assert.Equal(t, 0.75, spam.Precision) // 3 of 4 predicted spam are real
	assert.Equal(t, 0.75, spam.Recall)    // 3 of 4 real spam found
	assert.Equal(t, 0.75, spam.F1)

	// Support-weighted averages with balanced classes equal the per-class mean
	assert.InDelta(t, 0.75, metrics.F1, 1e-9)
}

func TestComputeMetricsSingleClass(t *testing.T) {
	actual := []int{1, 1, 1}
	metrics := computeMetrics("test", actual, actual, probaFromScores([]float64{0.9, 0.8, 0.7}))

	assert.Equal(t, 1.0, metrics.Accuracy)
	assert.Nil(t, metrics.AUC, "single-class targets cannot be ranked")
	assert.Len(t, metrics.ConfusionMatrix, 1)
}

func TestROCAUCReversedScores(t *testing.T) {
	actual := []int{1, 1, 0, 0}
	// Scores inverted against the labels
	proba := probaFromScores([]float64{0.1, 0.2, 0.8, 0.9})

	metrics := computeMetrics("test", []int{0, 0, 1, 1}, actual, proba)
	require.NotNil(t, metrics.AUC)
	assert.Equal(t, 0.0, *metrics.AUC)
}

func TestROCAUCTiedScores(t *testing.T) {
	actual := []int{1, 0, 1, 0}
	proba := probaFromScores([]float64{0.5, 0.5, 0.5, 0.5})

	metrics := computeMetrics("test", []int{1, 1, 1, 1}, actual, proba)
	require.NotNil(t, metrics.AUC)
	assert.Equal(t, 0.5, *metrics.AUC, "uninformative scores rank at chance level")
}
