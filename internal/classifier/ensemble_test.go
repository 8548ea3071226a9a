package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// fixedModel always predicts the same spam probability
type fixedModel struct {
	p           float64
	importances []float64
}

func (m *fixedModel) Fit(X *mat.Dense, y []int) error { return nil }

func (m *fixedModel) Predict(X *mat.Dense) []int {
	rows, _ := X.Dims()
	labels := make([]int, rows)
	for i := range labels {
		if m.p >= 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

func (m *fixedModel) PredictProba(X *mat.Dense) *mat.Dense {
	rows, _ := X.Dims()
	proba := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		proba.Set(i, 0, 1-m.p)
		proba.Set(i, 1, m.p)
	}
	return proba
}

func (m *fixedModel) FeatureImportances() []float64 { return m.importances }

func TestVotingEnsembleAveragesProbabilities(t *testing.T) {
	ensemble := NewVotingEnsemble(
		[]string{"a", "b", "c"},
		[]Classifier{&fixedModel{p: 0.9}, &fixedModel{p: 0.6}, &fixedModel{p: 0.3}},
	)

	X := mat.NewDense(2, 1, nil)
	proba := ensemble.PredictProba(X)

	assert.InDelta(t, 0.6, proba.At(0, 1), 1e-9)
	assert.InDelta(t, 0.4, proba.At(0, 0), 1e-9)
	assert.Equal(t, []int{1, 1}, ensemble.Predict(X))
}

func TestVotingEnsembleThreshold(t *testing.T) {
	ensemble := NewVotingEnsemble(
		[]string{"a", "b"},
		[]Classifier{&fixedModel{p: 0.4}, &fixedModel{p: 0.4}},
	)

	X := mat.NewDense(1, 1, nil)
	assert.Equal(t, []int{0}, ensemble.Predict(X))
}

func TestVotingEnsembleMemberImportances(t *testing.T) {
	ensemble := NewVotingEnsemble(
		[]string{"a", "b"},
		[]Classifier{
			&fixedModel{p: 0.5, importances: []float64{0.8, 0.2}},
			&fixedModel{p: 0.5, importances: []float64{0.4, 0.6}},
		},
	)

	averaged := ensemble.MemberImportances(2)
	assert.InDelta(t, 0.6, averaged[0], 1e-9)
	assert.InDelta(t, 0.4, averaged[1], 1e-9)

	// Members with mismatched lengths are ignored; none left means nil
	empty := NewVotingEnsemble([]string{"a"}, []Classifier{&fixedModel{p: 0.5}})
	assert.Nil(t, empty.MemberImportances(2))
}

func TestVotingEnsembleCannotFit(t *testing.T) {
	ensemble := NewVotingEnsemble(nil, nil)
	assert.Error(t, ensemble.Fit(nil, nil))
}
