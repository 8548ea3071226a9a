package features

import "strings"

// sentimentLexicon is a small word-polarity table used to score transcript
// sentiment. Polarity is the weight-average of matched terms in [-1, 1];
// subjectivity is the fraction of words carrying any sentiment weight,
// capped at 1.
type sentimentLexicon struct {
	polarity map[string]float64
}

func newSentimentLexicon() *sentimentLexicon {
	return &sentimentLexicon{
		polarity: map[string]float64{
			// positive
			"great":      0.8,
			"good":       0.7,
			"excellent":  0.9,
			"amazing":    0.8,
			"wonderful":  0.9,
			"best":       0.8,
			"happy":      0.7,
			"love":       0.6,
			"thanks":     0.5,
			"thank":      0.5,
			"please":     0.3,
			"free":       0.4,
			"win":        0.5,
			"guaranteed": 0.4,
			"perfect":    0.8,
			"exciting":   0.6,
			"yes":        0.2,
			"sure":       0.3,
			// negative
			"bad":        -0.7,
			"terrible":   -0.9,
			"awful":      -0.8,
			"worst":      -0.9,
			"problem":    -0.4,
			"debt":       -0.3,
			"risk":       -0.3,
			"scam":       -0.8,
			"angry":      -0.7,
			"annoying":   -0.6,
			"stop":       -0.4,
			"no":         -0.2,
			"never":      -0.4,
			"wrong":      -0.5,
			"suspended":  -0.5,
			"overdue":    -0.4,
			"penalty":    -0.5,
			"fraudulent": -0.8,
		},
	}
}

// Score returns (polarity, subjectivity) for a tokenized transcript
func (l *sentimentLexicon) Score(words []string) (float64, float64) {
	if len(words) == 0 {
		return 0, 0
	}

	var total float64
	matched := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'")
		if weight, ok := l.polarity[w]; ok {
			total += weight
			matched++
		}
	}
	if matched == 0 {
		return 0, 0
	}

	polarity := total / float64(matched)
	if polarity > 1 {
		polarity = 1
	} else if polarity < -1 {
		polarity = -1
	}

	subjectivity := float64(matched) / float64(len(words))
	if subjectivity > 1 {
		subjectivity = 1
	}
	return polarity, subjectivity
}
