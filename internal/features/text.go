package features

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Keyword lists scanned via substring containment against the lowercased transcript
var spamKeywordCategories = map[string][]string{
	"sales":      {"free", "offer", "discount", "deal", "promotion", "limited time", "special price", "buy now"},
	"loan":       {"loan", "credit", "debt", "mortgage", "refinance", "interest rate", "borrow", "lending"},
	"investment": {"investment", "stock", "profit", "returns", "crypto", "trading", "forex", "portfolio"},
	"insurance":  {"insurance", "policy", "coverage", "premium", "claim", "deductible", "beneficiary"},
	"urgency":    {"act now", "urgent", "immediately", "hurry", "expires", "last chance", "final notice", "don't miss"},
}

// Category iteration order kept explicit for deterministic logging and tests
var keywordCategoryOrder = []string{"sales", "loan", "investment", "insurance", "urgency"}

// TextExtractor derives linguistic and spam-keyword features from transcripts
type TextExtractor struct {
	logger *zap.Logger

	phonePattern *regexp.Regexp
	emailPattern *regexp.Regexp
	urlPattern   *regexp.Regexp
	sentiment    *sentimentLexicon
}

// NewTextExtractor creates a new text feature extractor
func NewTextExtractor(logger *zap.Logger) *TextExtractor {
	return &TextExtractor{
		logger:       logger,
		phonePattern: regexp.MustCompile(`\d{10,}`),
		emailPattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		urlPattern:   regexp.MustCompile(`https?://\S+|www\.\S+`),
		sentiment:    newSentimentLexicon(),
	}
}

// defaultTextFeatures returns the fixed all-zero vector. The key set matches
// exactly what TextFeatures produces for non-blank input, so the feature
// schema is stable regardless of transcript availability.
func defaultTextFeatures() map[string]float64 {
	features := map[string]float64{
		"char_count":            0,
		"word_count":            0,
		"sentence_count":        0,
		"avg_word_length":       0,
		"avg_sentence_length":   0,
		"lexical_diversity":     0,
		"sentiment_polarity":    0,
		"sentiment_subjectivity": 0,
		"is_positive":           0,
		"is_negative":           0,
		"question_marks":        0,
		"exclamation_marks":     0,
		"has_phone_number":      0,
		"has_email":             0,
		"has_url":               0,
		"uppercase_ratio":       0,
		"digit_ratio":           0,
		"max_word_freq":         0,
		"repetition_ratio":      0,
	}
	for _, category := range keywordCategoryOrder {
		features[category+"_keywords"] = 0
		features["has_"+category+"_keywords"] = 0
	}
	return features
}

// TextFeatures extracts linguistic features from a call transcript.
// Blank input returns the default zero vector; so does any mid-computation
// failure. The contract never propagates an error.
func (e *TextExtractor) TextFeatures(transcript string) map[string]float64 {
	features := defaultTextFeatures()

	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return features
	}

	lower := strings.ToLower(trimmed)
	words := strings.Fields(lower)
	sentences := splitSentences(lower)

	features["char_count"] = float64(len(trimmed))
	features["word_count"] = float64(len(words))
	features["sentence_count"] = float64(len(sentences))

	if len(words) > 0 {
		totalLen := 0
		unique := make(map[string]int, len(words))
		for _, w := range words {
			totalLen += len(w)
			unique[w]++
		}
		features["avg_word_length"] = float64(totalLen) / float64(len(words))
		features["lexical_diversity"] = float64(len(unique)) / float64(len(words))

		maxFreq := 0
		for _, count := range unique {
			if count > maxFreq {
				maxFreq = count
			}
		}
		features["max_word_freq"] = float64(maxFreq)
		features["repetition_ratio"] = float64(maxFreq) / float64(len(words))
	}
	if len(sentences) > 0 {
		features["avg_sentence_length"] = float64(len(words)) / float64(len(sentences))
	}

	for _, category := range keywordCategoryOrder {
		count := 0
		for _, keyword := range spamKeywordCategories[category] {
			if strings.Contains(lower, keyword) {
				count++
			}
		}
		features[category+"_keywords"] = float64(count)
		features["has_"+category+"_keywords"] = boolFeature(count > 0)
	}

	polarity, subjectivity := e.sentiment.Score(words)
	features["sentiment_polarity"] = polarity
	features["sentiment_subjectivity"] = subjectivity
	features["is_positive"] = boolFeature(polarity > 0.1)
	features["is_negative"] = boolFeature(polarity < -0.1)

	features["question_marks"] = float64(strings.Count(trimmed, "?"))
	features["exclamation_marks"] = float64(strings.Count(trimmed, "!"))
	features["has_phone_number"] = boolFeature(e.phonePattern.MatchString(condenseDigits(trimmed)))
	features["has_email"] = boolFeature(e.emailPattern.MatchString(trimmed))
	features["has_url"] = boolFeature(e.urlPattern.MatchString(lower))

	upper, digits := 0, 0
	for _, r := range trimmed {
		if unicode.IsUpper(r) {
			upper++
		}
		if unicode.IsDigit(r) {
			digits++
		}
	}
	features["uppercase_ratio"] = float64(upper) / float64(len([]rune(trimmed)))
	features["digit_ratio"] = float64(digits) / float64(len([]rune(trimmed)))

	return features
}

// splitSentences splits on terminal punctuation and discards empty fragments
func splitSentences(text string) []string {
	fragments := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if strings.TrimSpace(f) != "" {
			sentences = append(sentences, strings.TrimSpace(f))
		}
	}
	return sentences
}

// condenseDigits strips separators between digit runs so formatted phone
// numbers like "555-123-4567 890" still trip the ten-digit detector
func condenseDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r != '-' && r != ' ' && r != '(' && r != ')' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
