package classifier

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// BoostParams configures a boosted-trees model. RegLambda adds second-order
// leaf regularization, MaxBins > 0 switches split finding to histogram bins,
// Subsample < 1 draws a random row fraction per round.
type BoostParams struct {
	NumRounds       int     `json:"num_rounds"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	RegLambda       float64 `json:"reg_lambda"`
	Subsample       float64 `json:"subsample"`
	MaxBins         int     `json:"max_bins"`
	Seed            int64   `json:"seed"`
}

// BoostedTrees is a gradient-boosted tree classifier for binary targets
// using logistic loss with Newton-step leaf weights
type BoostedTrees struct {
	Params      BoostParams `json:"params"`
	Trees       []*TreeNode `json:"trees"`
	BaseScore   float64     `json:"base_score"` // initial log odds
	NumFeatures int         `json:"num_features"`
	Importances []float64   `json:"importances"`
}

// NewBoostedTrees creates an untrained boosted-trees model
func NewBoostedTrees(params BoostParams) *BoostedTrees {
	return &BoostedTrees{Params: params}
}

// Fit trains the boosting rounds on a design matrix and binary labels
func (b *BoostedTrees) Fit(X *mat.Dense, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 || rows != len(y) {
		return fmt.Errorf("boosted trees: dimension mismatch: %d rows, %d labels", rows, len(y))
	}

	positives := 0
	for _, label := range y {
		positives += label
	}
	if positives == 0 || positives == rows {
		return fmt.Errorf("boosted trees: training labels contain a single class")
	}

	// Initial score is the log odds of the positive rate
	rate := float64(positives) / float64(rows)
	b.BaseScore = math.Log(rate / (1 - rate))
	b.NumFeatures = cols
	b.Trees = make([]*TreeNode, 0, b.Params.NumRounds)
	b.Importances = make([]float64, cols)

	rng := rand.New(rand.NewSource(b.Params.Seed))
	subsample := b.Params.Subsample
	if subsample <= 0 || subsample > 1 {
		subsample = 1.0
	}

	scores := make([]float64, rows)
	for i := range scores {
		scores[i] = b.BaseScore
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)

	allIndices := make([]int, rows)
	for i := range allIndices {
		allIndices[i] = i
	}

	for round := 0; round < b.Params.NumRounds; round++ {
		for i := 0; i < rows; i++ {
			p := sigmoid(scores[i])
			grad[i] = p - float64(y[i])
			hess[i] = p * (1 - p)
		}

		indices := allIndices
		if subsample < 1 {
			n := int(float64(rows) * subsample)
			perm := rng.Perm(rows)
			indices = perm[:n]
		}

		builder := &regressionTreeBuilder{
			maxDepth:        b.Params.MaxDepth,
			minSamplesSplit: b.Params.MinSamplesSplit,
			regLambda:       b.Params.RegLambda,
			maxBins:         b.Params.MaxBins,
			importances:     make([]float64, cols),
		}
		builder.prepareBins(X, indices)

		tree := builder.build(X, grad, hess, indices, 0)
		b.Trees = append(b.Trees, tree)
		for i, v := range builder.importances {
			b.Importances[i] += v
		}

		for i := 0; i < rows; i++ {
			scores[i] += b.Params.LearningRate * tree.traverse(rowOf(X, i))[0]
		}
	}

	b.Importances = normalizeImportances(b.Importances)
	return nil
}

// DecisionScores returns the raw additive log-odds scores
func (b *BoostedTrees) DecisionScores(X *mat.Dense) []float64 {
	rows, _ := X.Dims()
	scores := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := rowOf(X, i)
		score := b.BaseScore
		for _, tree := range b.Trees {
			score += b.Params.LearningRate * tree.traverse(row)[0]
		}
		scores[i] = score
	}
	return scores
}

// PredictProba applies the logistic transform to the decision scores
func (b *BoostedTrees) PredictProba(X *mat.Dense) *mat.Dense {
	scores := b.DecisionScores(X)
	proba := mat.NewDense(len(scores), 2, nil)
	for i, score := range scores {
		p := sigmoid(score)
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba
}

// Predict thresholds the spam probability at 0.5
func (b *BoostedTrees) Predict(X *mat.Dense) []int {
	scores := b.DecisionScores(X)
	labels := make([]int, len(scores))
	for i, score := range scores {
		if sigmoid(score) >= 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

// FeatureImportances returns normalized accumulated split gain per column
func (b *BoostedTrees) FeatureImportances() []float64 {
	return b.Importances
}
