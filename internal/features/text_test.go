package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTextFeaturesBlankInput(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	defaults := defaultTextFeatures()
	assert.Equal(t, defaults, extractor.TextFeatures(""))
	assert.Equal(t, defaults, extractor.TextFeatures("   \t\n  "))
}

func TestTextFeaturesStableKeySet(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	empty := extractor.TextFeatures("")
	full := extractor.TextFeatures("Congratulations! You won a free cruise. Act now!")

	assert.Equal(t, len(empty), len(full), "blank and non-blank transcripts share one schema")
	for name := range full {
		_, ok := empty[name]
		assert.True(t, ok, "feature %q missing from default vector", name)
	}
}

func TestKeywordPhraseDetection(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	features := extractor.TextFeatures("Act now before this limited time offer expires")

	// "act now" and "expires" are urgency terms, "offer" and "limited time" are sales terms
	assert.Equal(t, 2.0, features["urgency_keywords"])
	assert.Equal(t, 1.0, features["has_urgency_keywords"])
	assert.Equal(t, 2.0, features["sales_keywords"])
	assert.Equal(t, 1.0, features["has_sales_keywords"])
	assert.Equal(t, 0.0, features["has_insurance_keywords"])
}

func TestKeywordCategoriesIndependent(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	features := extractor.TextFeatures("We can refinance your mortgage and consolidate your debt")

	assert.Equal(t, 1.0, features["has_loan_keywords"])
	assert.GreaterOrEqual(t, features["loan_keywords"], 3.0)
	assert.Equal(t, 0.0, features["has_sales_keywords"])
	assert.Equal(t, 0.0, features["has_urgency_keywords"])
}

func TestContactInfoDetection(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	features := extractor.TextFeatures("call me back at 555-123-4567 today")
	assert.Equal(t, 1.0, features["has_phone_number"], "formatted phone numbers are detected")

	features = extractor.TextFeatures("reach us at deals@example.com")
	assert.Equal(t, 1.0, features["has_email"])

	features = extractor.TextFeatures("visit www.example.com for details")
	assert.Equal(t, 1.0, features["has_url"])

	features = extractor.TextFeatures("just checking in about dinner")
	assert.Equal(t, 0.0, features["has_phone_number"])
	assert.Equal(t, 0.0, features["has_email"])
	assert.Equal(t, 0.0, features["has_url"])
}

func TestSentimentScoring(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	positive := extractor.TextFeatures("this is a great offer with guaranteed free returns")
	assert.Greater(t, positive["sentiment_polarity"], 0.1)
	assert.Equal(t, 1.0, positive["is_positive"])
	assert.Equal(t, 0.0, positive["is_negative"])

	negative := extractor.TextFeatures("this is a terrible scam and the worst problem")
	assert.Less(t, negative["sentiment_polarity"], -0.1)
	assert.Equal(t, 1.0, negative["is_negative"])

	neutral := extractor.TextFeatures("the meeting starts at three tomorrow")
	assert.Equal(t, 0.0, neutral["sentiment_polarity"])
	assert.Equal(t, 0.0, neutral["is_positive"])
	assert.Equal(t, 0.0, neutral["is_negative"])
}

func TestLexicalStatistics(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	features := extractor.TextFeatures("buy buy buy now")

	assert.Equal(t, 4.0, features["word_count"])
	assert.Equal(t, 3.0, features["max_word_freq"])
	assert.InDelta(t, 0.75, features["repetition_ratio"], 1e-9)
	assert.InDelta(t, 0.5, features["lexical_diversity"], 1e-9)
}

func TestPunctuationAndCaseFeatures(t *testing.T) {
	extractor := NewTextExtractor(zap.NewNop())

	features := extractor.TextFeatures("WIN NOW!! Really?")

	assert.Equal(t, 2.0, features["exclamation_marks"])
	assert.Equal(t, 1.0, features["question_marks"])
	assert.Greater(t, features["uppercase_ratio"], 0.3)
	assert.Equal(t, 2.0, features["sentence_count"])
}
