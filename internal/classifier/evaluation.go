package classifier

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ClassMetrics holds per-class evaluation scores
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// PerformanceMetrics is the evaluation record of one model. Precision,
// recall and F1 are support-weighted averages across classes; AUC is nil
// unless the target is binary and two probability columns were available.
type PerformanceMetrics struct {
	ModelName       string               `json:"model_name"`
	Accuracy        float64              `json:"accuracy"`
	Precision       float64              `json:"precision"`
	Recall          float64              `json:"recall"`
	F1              float64              `json:"f1_score"`
	AUC             *float64             `json:"auc,omitempty"`
	ConfusionMatrix [][]int              `json:"confusion_matrix"`
	Report          map[int]ClassMetrics `json:"classification_report"`
	Samples         int                  `json:"samples"`
	EvaluatedAt     time.Time            `json:"evaluated_at"`
}

// computeMetrics evaluates predictions against ground truth. proba may be
// nil, in which case AUC stays nil.
func computeMetrics(modelName string, predicted, actual []int, proba *mat.Dense) *PerformanceMetrics {
	classes := distinctClasses(actual, predicted)

	confusion := make([][]int, len(classes))
	for i := range confusion {
		confusion[i] = make([]int, len(classes))
	}
	classIndex := make(map[int]int, len(classes))
	for i, class := range classes {
		classIndex[class] = i
	}
	for i := range actual {
		confusion[classIndex[actual[i]]][classIndex[predicted[i]]]++
	}

	report := make(map[int]ClassMetrics, len(classes))
	var weightedPrecision, weightedRecall, weightedF1 float64
	for _, class := range classes {
		tp, fp, fn, support := 0, 0, 0, 0
		for i := range actual {
			if actual[i] == class {
				support++
				if predicted[i] == class {
					tp++
				} else {
					fn++
				}
			} else if predicted[i] == class {
				fp++
			}
		}

		precision := safeRatio(tp, tp+fp)
		recall := safeRatio(tp, tp+fn)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		report[class] = ClassMetrics{Precision: precision, Recall: recall, F1: f1, Support: support}

		weight := float64(support) / float64(len(actual))
		weightedPrecision += precision * weight
		weightedRecall += recall * weight
		weightedF1 += f1 * weight
	}

	metrics := &PerformanceMetrics{
		ModelName:       modelName,
		Accuracy:        accuracyOf(predicted, actual),
		Precision:       weightedPrecision,
		Recall:          weightedRecall,
		F1:              weightedF1,
		ConfusionMatrix: confusion,
		Report:          report,
		Samples:         len(actual),
		EvaluatedAt:     time.Now(),
	}

	if proba != nil && len(classes) == 2 {
		if _, cols := proba.Dims(); cols == 2 {
			auc := rocAUC(actual, proba)
			metrics.AUC = &auc
		}
	}
	return metrics
}

// rocAUC computes the area under the ROC curve via the rank statistic
func rocAUC(actual []int, proba *mat.Dense) float64 {
	type scored struct {
		score float64
		label int
	}
	items := make([]scored, len(actual))
	positives, negatives := 0, 0
	for i, label := range actual {
		items[i] = scored{score: proba.At(i, 1), label: label}
		if label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0.5
	}

	sort.Slice(items, func(i, j int) bool { return items[i].score < items[j].score })

	// Average ranks over tied scores
	ranks := make([]float64, len(items))
	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].score == items[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2.0 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		i = j
	}

	var positiveRankSum float64
	for i, item := range items {
		if item.label == 1 {
			positiveRankSum += ranks[i]
		}
	}
	p := float64(positives)
	n := float64(negatives)
	return (positiveRankSum - p*(p+1)/2) / (p * n)
}

func distinctClasses(actual, predicted []int) []int {
	seen := make(map[int]bool)
	for _, v := range actual {
		seen[v] = true
	}
	for _, v := range predicted {
		seen[v] = true
	}
	classes := make([]int, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Ints(classes)
	return classes
}

func safeRatio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
