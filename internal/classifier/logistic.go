package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LogisticParams configures logistic regression training
type LogisticParams struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	L2           float64 `json:"l2"`
}

// LogisticRegression is an L2-regularized linear classifier trained by
// batch gradient descent. Inputs are standardized internally so the fixed
// learning rate behaves across wildly different feature scales.
type LogisticRegression struct {
	Params  LogisticParams `json:"params"`
	Weights []float64      `json:"weights"`
	Bias    float64        `json:"bias"`
	Means   []float64      `json:"means"`
	Stds    []float64      `json:"stds"`
}

// NewLogisticRegression creates an untrained logistic regression model
func NewLogisticRegression(params LogisticParams) *LogisticRegression {
	return &LogisticRegression{Params: params}
}

// Fit trains the model on a design matrix and binary labels
func (l *LogisticRegression) Fit(X *mat.Dense, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 || rows != len(y) {
		return fmt.Errorf("logistic regression: dimension mismatch: %d rows, %d labels", rows, len(y))
	}

	l.Means = make([]float64, cols)
	l.Stds = make([]float64, cols)
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, X)
		l.Means[j] = stat.Mean(column, nil)
		l.Stds[j] = stat.PopStdDev(column, nil)
		if l.Stds[j] == 0 {
			l.Stds[j] = 1
		}
	}

	standardized := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			standardized.Set(i, j, (X.At(i, j)-l.Means[j])/l.Stds[j])
		}
	}

	l.Weights = make([]float64, cols)
	l.Bias = 0

	gradW := make([]float64, cols)
	for epoch := 0; epoch < l.Params.Epochs; epoch++ {
		for j := range gradW {
			gradW[j] = l.Params.L2 * l.Weights[j]
		}
		gradB := 0.0

		for i := 0; i < rows; i++ {
			score := l.Bias
			for j := 0; j < cols; j++ {
				score += l.Weights[j] * standardized.At(i, j)
			}
			residual := sigmoid(score) - float64(y[i])
			for j := 0; j < cols; j++ {
				gradW[j] += residual * standardized.At(i, j) / float64(rows)
			}
			gradB += residual / float64(rows)
		}

		for j := 0; j < cols; j++ {
			l.Weights[j] -= l.Params.LearningRate * gradW[j]
		}
		l.Bias -= l.Params.LearningRate * gradB
	}
	return nil
}

// DecisionScores returns the raw linear scores in log-odds space
func (l *LogisticRegression) DecisionScores(X *mat.Dense) []float64 {
	rows, cols := X.Dims()
	scores := make([]float64, rows)
	for i := 0; i < rows; i++ {
		score := l.Bias
		for j := 0; j < cols && j < len(l.Weights); j++ {
			score += l.Weights[j] * (X.At(i, j) - l.Means[j]) / l.Stds[j]
		}
		scores[i] = score
	}
	return scores
}

// PredictProba applies the logistic transform to the linear scores
func (l *LogisticRegression) PredictProba(X *mat.Dense) *mat.Dense {
	scores := l.DecisionScores(X)
	proba := mat.NewDense(len(scores), 2, nil)
	for i, score := range scores {
		p := sigmoid(score)
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba
}

// Predict thresholds the spam probability at 0.5
func (l *LogisticRegression) Predict(X *mat.Dense) []int {
	scores := l.DecisionScores(X)
	labels := make([]int, len(scores))
	for i, score := range scores {
		if sigmoid(score) >= 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

// FeatureImportances reports the absolute standardized weights
func (l *LogisticRegression) FeatureImportances() []float64 {
	importances := make([]float64, len(l.Weights))
	for i, w := range l.Weights {
		importances[i] = math.Abs(w)
	}
	return normalizeImportances(importances)
}
