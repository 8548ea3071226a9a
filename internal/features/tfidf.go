package features

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	tfidfMaxFeatures = 100
	tfidfMaxNGram    = 2
)

// Common English stopwords excluded from the TF-IDF vocabulary
var tfidfStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "had": true,
	"has": true, "have": true, "he": true, "her": true, "his": true, "i": true,
	"in": true, "is": true, "it": true, "its": true, "my": true, "no": true,
	"not": true, "of": true, "on": true, "or": true, "our": true, "she": true,
	"so": true, "that": true, "the": true, "their": true, "them": true,
	"there": true, "they": true, "this": true, "to": true, "was": true,
	"we": true, "were": true, "will": true, "with": true, "you": true,
	"your": true,
}

// TFIDFVectorizer fits a bounded unigram+bigram vocabulary over a transcript
// corpus and produces dense document-term matrices.
type TFIDFVectorizer struct {
	logger *zap.Logger

	vocabulary []string
	vocabIndex map[string]int
	idf        []float64
}

// NewTFIDFVectorizer creates an unfitted vectorizer
func NewTFIDFVectorizer(logger *zap.Logger) *TFIDFVectorizer {
	return &TFIDFVectorizer{logger: logger}
}

// Vocabulary returns the fitted terms in index order
func (v *TFIDFVectorizer) Vocabulary() []string {
	return append([]string(nil), v.vocabulary...)
}

// FitTransform fits the vocabulary on the corpus and returns the dense
// document-term matrix. Blank transcripts are replaced with a single space
// token so an empty document cannot abort vectorization; any failure yields
// a zero matrix of the expected shape.
func (v *TFIDFVectorizer) FitTransform(transcripts []string) *mat.Dense {
	if len(transcripts) == 0 {
		return mat.NewDense(1, tfidfMaxFeatures, nil)
	}

	docs := make([][]string, len(transcripts))
	for i, t := range transcripts {
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		docs[i] = tfidfTokens(t)
	}

	// Corpus term counts and document frequencies
	termCounts := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range doc {
			termCounts[term]++
			if !seen[term] {
				docFreq[term]++
				seen[term] = true
			}
		}
	}

	if len(termCounts) == 0 {
		v.logger.Warn("tfidf corpus produced no terms, returning zero matrix",
			zap.Int("documents", len(transcripts)))
		return mat.NewDense(len(transcripts), tfidfMaxFeatures, nil)
	}

	// Keep the most frequent terms, ties broken alphabetically for determinism
	terms := make([]string, 0, len(termCounts))
	for term := range termCounts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termCounts[terms[i]] != termCounts[terms[j]] {
			return termCounts[terms[i]] > termCounts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > tfidfMaxFeatures {
		terms = terms[:tfidfMaxFeatures]
	}

	v.vocabulary = terms
	v.vocabIndex = make(map[string]int, len(terms))
	for i, term := range terms {
		v.vocabIndex[term] = i
	}

	// Smoothed inverse document frequency
	n := float64(len(docs))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	return v.transform(docs)
}

// Transform vectorizes transcripts against the previously fitted vocabulary
func (v *TFIDFVectorizer) Transform(transcripts []string) *mat.Dense {
	if len(v.vocabulary) == 0 {
		v.logger.Warn("tfidf transform called before fit, returning zero matrix")
		return mat.NewDense(maxInt(len(transcripts), 1), tfidfMaxFeatures, nil)
	}
	docs := make([][]string, len(transcripts))
	for i, t := range transcripts {
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		docs[i] = tfidfTokens(t)
	}
	return v.transform(docs)
}

func (v *TFIDFVectorizer) transform(docs [][]string) *mat.Dense {
	matrix := mat.NewDense(len(docs), len(v.vocabulary), nil)
	for row, doc := range docs {
		counts := make(map[int]float64)
		for _, term := range doc {
			if idx, ok := v.vocabIndex[term]; ok {
				counts[idx]++
			}
		}

		var norm float64
		for idx, count := range counts {
			weight := count * v.idf[idx]
			matrix.Set(row, idx, weight)
			norm += weight * weight
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for idx := range counts {
				matrix.Set(row, idx, matrix.At(row, idx)/norm)
			}
		}
	}
	return matrix
}

// tfidfTokens produces lowercased unigram and bigram tokens with stopwords
// removed before ngram construction
func tfidfTokens(text string) []string {
	raw := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w == "" || tfidfStopwords[w] {
			continue
		}
		words = append(words, w)
	}

	tokens := make([]string, 0, len(words)*tfidfMaxNGram)
	tokens = append(tokens, words...)
	for i := 0; i+1 < len(words); i++ {
		tokens = append(tokens, words[i]+" "+words[i+1])
	}
	return tokens
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
