package classifier

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// IsotonicRegression is a monotone step mapping fitted by the pool-adjacent-
// violators algorithm, with linear interpolation between fitted points
type IsotonicRegression struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Fit estimates the monotone mapping from raw scores to targets
func (r *IsotonicRegression) Fit(scores, targets []float64) error {
	if len(scores) == 0 || len(scores) != len(targets) {
		return fmt.Errorf("isotonic: dimension mismatch: %d scores, %d targets", len(scores), len(targets))
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return scores[order[i]] < scores[order[j]] })

	type block struct {
		sum    float64
		weight float64
		minX   float64
		maxX   float64
	}
	blocks := make([]block, 0, len(order))
	for _, idx := range order {
		blocks = append(blocks, block{
			sum:    targets[idx],
			weight: 1,
			minX:   scores[idx],
			maxX:   scores[idx],
		})
		// Pool adjacent violators
		for len(blocks) >= 2 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sum/prev.weight <= last.sum/last.weight {
				break
			}
			merged := block{
				sum:    prev.sum + last.sum,
				weight: prev.weight + last.weight,
				minX:   prev.minX,
				maxX:   last.maxX,
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, merged)
		}
	}

	r.X = r.X[:0]
	r.Y = r.Y[:0]
	for _, blk := range blocks {
		mean := blk.sum / blk.weight
		r.X = append(r.X, blk.minX)
		r.Y = append(r.Y, mean)
		if blk.maxX > blk.minX {
			r.X = append(r.X, blk.maxX)
			r.Y = append(r.Y, mean)
		}
	}
	return nil
}

// Transform maps a raw score through the fitted step function, clamping
// outside the fitted range and interpolating between points
func (r *IsotonicRegression) Transform(score float64) float64 {
	n := len(r.X)
	if n == 0 {
		return score
	}
	if score <= r.X[0] {
		return r.Y[0]
	}
	if score >= r.X[n-1] {
		return r.Y[n-1]
	}
	idx := sort.SearchFloat64s(r.X, score)
	x0, x1 := r.X[idx-1], r.X[idx]
	y0, y1 := r.Y[idx-1], r.Y[idx]
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(score-x0)/(x1-x0)
}

// CalibratedClassifier remaps a base model's spam probabilities through an
// isotonic regression so they better approximate true class probabilities
type CalibratedClassifier struct {
	Family     string              `json:"family"`
	Base       Classifier          `json:"-"`
	Calibrator *IsotonicRegression `json:"calibrator"`
}

// Fit is present to satisfy the classifier capability; calibrated models are
// built by calibrateIsotonic, not fitted directly
func (c *CalibratedClassifier) Fit(X *mat.Dense, y []int) error {
	return fmt.Errorf("calibrated classifier for %s cannot be refit directly", c.Family)
}

// PredictProba calibrates the base model's spam probability column
func (c *CalibratedClassifier) PredictProba(X *mat.Dense) *mat.Dense {
	raw := probabilitiesOf(c.Base, X)
	rows, _ := raw.Dims()
	proba := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		p := clamp01(c.Calibrator.Transform(raw.At(i, 1)))
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba
}

// Predict thresholds the calibrated spam probability at 0.5
func (c *CalibratedClassifier) Predict(X *mat.Dense) []int {
	proba := c.PredictProba(X)
	rows, _ := proba.Dims()
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		if proba.At(i, 1) >= 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

// calibrationFolds is the cross-validation fold count used for isotonic
// calibration; out-of-fold predictions avoid calibrating on seen data
const calibrationFolds = 3

// calibrateIsotonic builds a calibrated variant of a trained base model.
// Fresh models of the same family are fitted on fold complements to produce
// out-of-fold scores; the isotonic mapping is fitted on the pooled pairs.
func calibrateIsotonic(family string, base Classifier, X *mat.Dense, y []int) (*CalibratedClassifier, error) {
	rows, _ := X.Dims()
	if rows < calibrationFolds*2 {
		return nil, fmt.Errorf("calibration needs at least %d samples, got %d", calibrationFolds*2, rows)
	}

	scores := make([]float64, 0, rows)
	targets := make([]float64, 0, rows)

	for fold := 0; fold < calibrationFolds; fold++ {
		trainIdx := make([]int, 0, rows)
		testIdx := make([]int, 0, rows)
		for i := 0; i < rows; i++ {
			if i%calibrationFolds == fold {
				testIdx = append(testIdx, i)
			} else {
				trainIdx = append(trainIdx, i)
			}
		}

		foldModel, err := newFamilyModel(family)
		if err != nil {
			return nil, err
		}
		foldX, foldY := subsetRows(X, y, trainIdx)
		if err := foldModel.Fit(foldX, foldY); err != nil {
			return nil, fmt.Errorf("calibration fold %d fit: %w", fold, err)
		}

		testX, _ := subsetRows(X, y, testIdx)
		proba := probabilitiesOf(foldModel, testX)
		for i, idx := range testIdx {
			scores = append(scores, proba.At(i, 1))
			targets = append(targets, float64(y[idx]))
		}
	}

	calibrator := &IsotonicRegression{}
	if err := calibrator.Fit(scores, targets); err != nil {
		return nil, err
	}

	return &CalibratedClassifier{
		Family:     family,
		Base:       base,
		Calibrator: calibrator,
	}, nil
}

func subsetRows(X *mat.Dense, y []int, indices []int) (*mat.Dense, []int) {
	_, cols := X.Dims()
	sub := mat.NewDense(len(indices), cols, nil)
	labels := make([]int, len(indices))
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			sub.Set(i, j, X.At(idx, j))
		}
		labels[i] = y[idx]
	}
	return sub, labels
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
