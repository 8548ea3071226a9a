package classifier

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ForestParams configures a random forest
type ForestParams struct {
	NumTrees        int     `json:"num_trees"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MaxFeatures     int     `json:"max_features"` // 0 selects sqrt(features)
	Seed            int64   `json:"seed"`
	SubsampleRatio  float64 `json:"subsample_ratio"` // 0 defaults to 1.0
}

// RandomForest is a bagged ensemble of gini classification trees with
// per-split random feature subsets
type RandomForest struct {
	Params      ForestParams `json:"params"`
	Trees       []*TreeNode  `json:"trees"`
	NumFeatures int          `json:"num_features"`
	Importances []float64    `json:"importances"`
}

// NewRandomForest creates an untrained random forest
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

// Fit trains the forest on a design matrix and binary labels
func (f *RandomForest) Fit(X *mat.Dense, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 || rows != len(y) {
		return fmt.Errorf("random forest: dimension mismatch: %d rows, %d labels", rows, len(y))
	}

	maxFeatures := f.Params.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Ceil(math.Sqrt(float64(cols))))
	}
	ratio := f.Params.SubsampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1.0
	}
	sampleSize := int(float64(rows) * ratio)

	rng := rand.New(rand.NewSource(f.Params.Seed))
	f.NumFeatures = cols
	f.Trees = make([]*TreeNode, 0, f.Params.NumTrees)
	f.Importances = make([]float64, cols)

	for t := 0; t < f.Params.NumTrees; t++ {
		// Bootstrap sample
		indices := make([]int, sampleSize)
		for i := range indices {
			indices[i] = rng.Intn(rows)
		}

		builder := &classTreeBuilder{
			maxDepth:        f.Params.MaxDepth,
			minSamplesSplit: f.Params.MinSamplesSplit,
			maxFeatures:     maxFeatures,
			rng:             rng,
			importances:     make([]float64, cols),
		}
		f.Trees = append(f.Trees, builder.build(X, y, indices, 0))
		for i, v := range builder.importances {
			f.Importances[i] += v
		}
	}

	f.Importances = normalizeImportances(f.Importances)
	return nil
}

// PredictProba averages the leaf class distributions of every tree
func (f *RandomForest) PredictProba(X *mat.Dense) *mat.Dense {
	rows, _ := X.Dims()
	proba := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		row := rowOf(X, i)
		var p0, p1 float64
		for _, tree := range f.Trees {
			value := tree.traverse(row)
			p0 += value[0]
			p1 += value[1]
		}
		n := float64(len(f.Trees))
		proba.Set(i, 0, p0/n)
		proba.Set(i, 1, p1/n)
	}
	return proba
}

// Predict returns hard labels from the averaged probabilities
func (f *RandomForest) Predict(X *mat.Dense) []int {
	proba := f.PredictProba(X)
	rows, _ := proba.Dims()
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		labels[i] = argmaxProba([]float64{proba.At(i, 0), proba.At(i, 1)})
	}
	return labels
}

// FeatureImportances returns normalized accumulated gini decrease per column
func (f *RandomForest) FeatureImportances() []float64 {
	return f.Importances
}
