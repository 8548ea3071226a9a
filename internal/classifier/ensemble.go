package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// VotingEnsemble combines already-trained member models by soft voting:
// class probabilities are averaged, preserving confidence information that
// a majority vote of hard labels would discard.
type VotingEnsemble struct {
	Names   []string     `json:"names"`
	Members []Classifier `json:"-"`
}

// NewVotingEnsemble wraps trained member models into a soft-voting ensemble
func NewVotingEnsemble(names []string, members []Classifier) *VotingEnsemble {
	return &VotingEnsemble{Names: names, Members: members}
}

// Fit is present to satisfy the classifier capability; the ensemble votes
// over members that were trained individually
func (e *VotingEnsemble) Fit(X *mat.Dense, y []int) error {
	return fmt.Errorf("voting ensemble members are trained individually")
}

// PredictProba averages every member's class probabilities
func (e *VotingEnsemble) PredictProba(X *mat.Dense) *mat.Dense {
	rows, _ := X.Dims()
	proba := mat.NewDense(rows, 2, nil)
	if len(e.Members) == 0 {
		return proba
	}

	for _, member := range e.Members {
		memberProba := probabilitiesOf(member, X)
		for i := 0; i < rows; i++ {
			proba.Set(i, 0, proba.At(i, 0)+memberProba.At(i, 0))
			proba.Set(i, 1, proba.At(i, 1)+memberProba.At(i, 1))
		}
	}

	n := float64(len(e.Members))
	for i := 0; i < rows; i++ {
		proba.Set(i, 0, proba.At(i, 0)/n)
		proba.Set(i, 1, proba.At(i, 1)/n)
	}
	return proba
}

// Predict thresholds the averaged spam probability at 0.5
func (e *VotingEnsemble) Predict(X *mat.Dense) []int {
	proba := e.PredictProba(X)
	rows, _ := proba.Dims()
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		if proba.At(i, 1) >= 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

// MemberImportances averages feature importances over the members that
// expose them, in design-matrix column order. Returns nil when no member
// reports importances.
func (e *VotingEnsemble) MemberImportances(numFeatures int) []float64 {
	sums := make([]float64, numFeatures)
	reporters := 0
	for _, member := range e.Members {
		reporter, ok := member.(importanceReporter)
		if !ok {
			continue
		}
		importances := reporter.FeatureImportances()
		if len(importances) != numFeatures {
			continue
		}
		for i, v := range importances {
			sums[i] += v
		}
		reporters++
	}
	if reporters == 0 {
		return nil
	}
	for i := range sums {
		sums[i] /= float64(reporters)
	}
	return sums
}
