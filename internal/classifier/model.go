package classifier

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Model family names. The five base families are trained independently and
// combined by the soft-voting ensemble.
const (
	ModelRandomForest       = "random_forest"
	ModelExtremeBoosting    = "extreme_boosting"
	ModelHistBoosting       = "hist_boosting"
	ModelLogisticRegression = "logistic_regression"
	ModelGradientBoosting   = "gradient_boosting"
	ModelEnsemble           = "ensemble"

	// Fallback family when neither the ensemble nor a best-F1 model exists
	defaultModelFamily = ModelRandomForest
)

// baseModelFamilies is the fixed training order of the base families
var baseModelFamilies = []string{
	ModelRandomForest,
	ModelExtremeBoosting,
	ModelHistBoosting,
	ModelLogisticRegression,
	ModelGradientBoosting,
}

// Classifier is the minimal fit/predict capability of a model family
type Classifier interface {
	Fit(X *mat.Dense, y []int) error
	Predict(X *mat.Dense) []int
}

// ProbabilisticClassifier additionally produces calibratable class
// probabilities, one row per sample with columns [P(ham), P(spam)]
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X *mat.Dense) *mat.Dense
}

// decisionScorer exposes a raw decision function for models without a
// direct probability output
type decisionScorer interface {
	DecisionScores(X *mat.Dense) []float64
}

// importanceReporter exposes per-feature importances in column order
type importanceReporter interface {
	FeatureImportances() []float64
}

// newFamilyModel constructs an untrained model of the named family.
// Seeds are fixed per family so repeated training runs are reproducible.
func newFamilyModel(family string) (Classifier, error) {
	switch family {
	case ModelRandomForest:
		return NewRandomForest(ForestParams{
			NumTrees:        50,
			MaxDepth:        8,
			MinSamplesSplit: 4,
			Seed:            11,
		}), nil
	case ModelGradientBoosting:
		return NewBoostedTrees(BoostParams{
			NumRounds:       60,
			LearningRate:    0.1,
			MaxDepth:        3,
			MinSamplesSplit: 4,
			Subsample:       1.0,
			Seed:            23,
		}), nil
	case ModelExtremeBoosting:
		return NewBoostedTrees(BoostParams{
			NumRounds:       60,
			LearningRate:    0.1,
			MaxDepth:        4,
			MinSamplesSplit: 4,
			RegLambda:       1.0,
			Subsample:       0.8,
			Seed:            37,
		}), nil
	case ModelHistBoosting:
		return NewBoostedTrees(BoostParams{
			NumRounds:       60,
			LearningRate:    0.1,
			MaxDepth:        4,
			MinSamplesSplit: 4,
			RegLambda:       1.0,
			Subsample:       1.0,
			MaxBins:         32,
			Seed:            53,
		}), nil
	case ModelLogisticRegression:
		return NewLogisticRegression(LogisticParams{
			Epochs:       300,
			LearningRate: 0.1,
			L2:           1e-4,
		}), nil
	default:
		return nil, fmt.Errorf("unknown model family: %s", family)
	}
}

// probabilitiesOf resolves class probabilities for any trained model,
// falling back to a logistic transform of the decision function and, as a
// last resort, to hard labels widened into degenerate probabilities.
func probabilitiesOf(model Classifier, X *mat.Dense) *mat.Dense {
	if pc, ok := model.(ProbabilisticClassifier); ok {
		return pc.PredictProba(X)
	}
	rows, _ := X.Dims()
	proba := mat.NewDense(rows, 2, nil)
	if ds, ok := model.(decisionScorer); ok {
		for i, score := range ds.DecisionScores(X) {
			p := sigmoid(score)
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
		}
		return proba
	}
	for i, label := range model.Predict(X) {
		proba.Set(i, label, 1.0)
	}
	return proba
}

// BuildMatrix assembles a design matrix from named feature vectors in the
// strict order given by featureNames, substituting 0.0 for absent names
func BuildMatrix(vectors []map[string]float64, featureNames []string) *mat.Dense {
	rows := len(vectors)
	if rows == 0 {
		rows = 1
	}
	matrix := mat.NewDense(rows, len(featureNames), nil)
	for i, vector := range vectors {
		for j, name := range featureNames {
			matrix.Set(i, j, vector[name])
		}
	}
	return matrix
}

// FeatureNames returns the sorted union of feature names over a batch of
// vectors, establishing the column order for training
func FeatureNames(vectors []map[string]float64) []string {
	seen := make(map[string]bool)
	for _, vector := range vectors {
		for name := range vector {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func accuracyOf(predicted, actual []int) float64 {
	if len(actual) == 0 {
		return 0
	}
	correct := 0
	for i := range actual {
		if predicted[i] == actual[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual))
}
