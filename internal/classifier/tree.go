package classifier

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeNode is one node of a decision tree. Leaves carry a Value payload:
// a class distribution for classification trees, a single weight for the
// regression trees used inside boosting.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf reports whether the node terminates traversal
func (n *TreeNode) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// traverse walks the tree for one sample row and returns the leaf payload
func (n *TreeNode) traverse(row []float64) []float64 {
	node := n
	for !node.IsLeaf() {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// classTreeBuilder grows a gini-impurity classification tree over a sample
// subset, optionally restricting each split to a random feature subset
type classTreeBuilder struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int // 0 means all features
	rng             *rand.Rand
	importances     []float64
}

func (b *classTreeBuilder) build(X *mat.Dense, y []int, indices []int, depth int) *TreeNode {
	counts := [2]int{}
	for _, idx := range indices {
		counts[y[idx]]++
	}
	total := float64(len(indices))
	leaf := &TreeNode{Value: []float64{float64(counts[0]) / total, float64(counts[1]) / total}}

	if depth >= b.maxDepth || len(indices) < b.minSamplesSplit || counts[0] == 0 || counts[1] == 0 {
		return leaf
	}

	feature, threshold, gain := b.bestSplit(X, y, indices, counts)
	if gain <= 0 {
		return leaf
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}

	b.importances[feature] += gain * total

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(X, y, left, depth+1),
		Right:     b.build(X, y, right, depth+1),
	}
}

func (b *classTreeBuilder) bestSplit(X *mat.Dense, y []int, indices []int, counts [2]int) (int, float64, float64) {
	_, numFeatures := X.Dims()
	candidates := b.candidateFeatures(numFeatures)

	total := float64(len(indices))
	parentGini := giniImpurity(counts, len(indices))

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	sorted := make([]int, len(indices))

	for _, feature := range candidates {
		copy(sorted, indices)
		sort.Slice(sorted, func(i, j int) bool {
			return X.At(sorted[i], feature) < X.At(sorted[j], feature)
		})

		leftCounts := [2]int{}
		rightCounts := counts
		for i := 0; i < len(sorted)-1; i++ {
			cls := y[sorted[i]]
			leftCounts[cls]++
			rightCounts[cls]--

			current := X.At(sorted[i], feature)
			next := X.At(sorted[i+1], feature)
			if current == next {
				continue
			}

			nLeft := i + 1
			nRight := len(sorted) - nLeft
			weighted := (float64(nLeft)*giniImpurity(leftCounts, nLeft) +
				float64(nRight)*giniImpurity(rightCounts, nRight)) / total
			gain := parentGini - weighted
			if gain > bestGain {
				bestFeature = feature
				bestThreshold = (current + next) / 2
				bestGain = gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (b *classTreeBuilder) candidateFeatures(numFeatures int) []int {
	if b.maxFeatures <= 0 || b.maxFeatures >= numFeatures {
		all := make([]int, numFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := b.rng.Perm(numFeatures)
	return perm[:b.maxFeatures]
}

func giniImpurity(counts [2]int, n int) float64 {
	if n == 0 {
		return 0
	}
	p0 := float64(counts[0]) / float64(n)
	p1 := float64(counts[1]) / float64(n)
	return 1 - p0*p0 - p1*p1
}

// regressionTreeBuilder grows Newton-step regression trees over gradient and
// hessian statistics, as used by every boosting family. With MaxBins > 0,
// split candidates are quantile bin edges instead of every distinct value.
type regressionTreeBuilder struct {
	maxDepth        int
	minSamplesSplit int
	regLambda       float64
	maxBins         int
	importances     []float64

	binEdges [][]float64 // per feature, populated when maxBins > 0
}

func (b *regressionTreeBuilder) prepareBins(X *mat.Dense, indices []int) {
	if b.maxBins <= 0 {
		return
	}
	_, numFeatures := X.Dims()
	b.binEdges = make([][]float64, numFeatures)
	for feature := 0; feature < numFeatures; feature++ {
		values := make([]float64, 0, len(indices))
		for _, idx := range indices {
			values = append(values, X.At(idx, feature))
		}
		sort.Float64s(values)

		edges := make([]float64, 0, b.maxBins)
		for bin := 1; bin < b.maxBins; bin++ {
			pos := bin * len(values) / b.maxBins
			if pos <= 0 || pos >= len(values) {
				continue
			}
			edge := (values[pos-1] + values[pos]) / 2
			if len(edges) == 0 || edge > edges[len(edges)-1] {
				edges = append(edges, edge)
			}
		}
		b.binEdges[feature] = edges
	}
}

func (b *regressionTreeBuilder) build(X *mat.Dense, grad, hess []float64, indices []int, depth int) *TreeNode {
	var gSum, hSum float64
	for _, idx := range indices {
		gSum += grad[idx]
		hSum += hess[idx]
	}
	leaf := &TreeNode{Value: []float64{-gSum / (hSum + b.regLambda)}}

	if depth >= b.maxDepth || len(indices) < b.minSamplesSplit {
		return leaf
	}

	feature, threshold, gain := b.bestSplit(X, grad, hess, indices, gSum, hSum)
	if gain <= 1e-12 {
		return leaf
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}

	b.importances[feature] += gain

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(X, grad, hess, left, depth+1),
		Right:     b.build(X, grad, hess, right, depth+1),
	}
}

func (b *regressionTreeBuilder) bestSplit(X *mat.Dense, grad, hess []float64, indices []int, gSum, hSum float64) (int, float64, float64) {
	_, numFeatures := X.Dims()
	parentScore := gSum * gSum / (hSum + b.regLambda)

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0

	for feature := 0; feature < numFeatures; feature++ {
		if b.maxBins > 0 {
			for _, edge := range b.binEdges[feature] {
				gain := b.splitGain(X, grad, hess, indices, feature, edge, gSum, hSum, parentScore)
				if gain > bestGain {
					bestFeature, bestThreshold, bestGain = feature, edge, gain
				}
			}
			continue
		}

		sorted := append([]int(nil), indices...)
		sort.Slice(sorted, func(i, j int) bool {
			return X.At(sorted[i], feature) < X.At(sorted[j], feature)
		})

		var gLeft, hLeft float64
		for i := 0; i < len(sorted)-1; i++ {
			gLeft += grad[sorted[i]]
			hLeft += hess[sorted[i]]

			current := X.At(sorted[i], feature)
			next := X.At(sorted[i+1], feature)
			if current == next {
				continue
			}

			gRight := gSum - gLeft
			hRight := hSum - hLeft
			gain := 0.5 * (gLeft*gLeft/(hLeft+b.regLambda) +
				gRight*gRight/(hRight+b.regLambda) - parentScore)
			if gain > bestGain {
				bestFeature = feature
				bestThreshold = (current + next) / 2
				bestGain = gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (b *regressionTreeBuilder) splitGain(X *mat.Dense, grad, hess []float64, indices []int, feature int, threshold, gSum, hSum, parentScore float64) float64 {
	var gLeft, hLeft float64
	nLeft := 0
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			gLeft += grad[idx]
			hLeft += hess[idx]
			nLeft++
		}
	}
	if nLeft == 0 || nLeft == len(indices) {
		return 0
	}
	gRight := gSum - gLeft
	hRight := hSum - hLeft
	return 0.5 * (gLeft*gLeft/(hLeft+b.regLambda) +
		gRight*gRight/(hRight+b.regLambda) - parentScore)
}

func rowOf(X *mat.Dense, i int) []float64 {
	_, cols := X.Dims()
	row := make([]float64, cols)
	mat.Row(row, i, X)
	return row
}

func normalizeImportances(importances []float64) []float64 {
	var total float64
	for _, v := range importances {
		total += v
	}
	if total == 0 {
		return importances
	}
	normalized := make([]float64, len(importances))
	for i, v := range importances {
		normalized[i] = v / total
	}
	return normalized
}

func argmaxProba(proba []float64) int {
	best, bestVal := 0, math.Inf(-1)
	for i, v := range proba {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best
}
