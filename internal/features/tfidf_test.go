package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTFIDFFitTransform(t *testing.T) {
	vectorizer := NewTFIDFVectorizer(zap.NewNop())

	corpus := []string{
		"free cruise offer call today",
		"free loan offer act today",
		"dinner plans tonight",
	}
	matrix := vectorizer.FitTransform(corpus)

	rows, cols := matrix.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, len(vectorizer.Vocabulary()), cols)
	require.NotEmpty(t, vectorizer.Vocabulary())

	vocab := vectorizer.Vocabulary()
	assert.Contains(t, vocab, "free")
	assert.Contains(t, vocab, "free cruise", "bigrams included")

	// Rows are L2-normalized
	for i := 0; i < rows; i++ {
		var norm float64
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			norm += v * v
		}
		assert.InDelta(t, 1.0, norm, 1e-9, "row %d", i)
	}
}

func TestTFIDFStopwordsExcluded(t *testing.T) {
	vectorizer := NewTFIDFVectorizer(zap.NewNop())

	vectorizer.FitTransform([]string{"the offer is for you and your family"})

	vocab := vectorizer.Vocabulary()
	assert.NotContains(t, vocab, "the")
	assert.NotContains(t, vocab, "and")
	assert.NotContains(t, vocab, "your")
	assert.Contains(t, vocab, "offer")
}

func TestTFIDFTransformUnfitted(t *testing.T) {
	vectorizer := NewTFIDFVectorizer(zap.NewNop())

	matrix := vectorizer.Transform([]string{"anything"})
	rows, cols := matrix.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, tfidfMaxFeatures, cols)
	assert.Equal(t, 0.0, matrix.At(0, 0))
}

func TestTFIDFTransformUnknownTerms(t *testing.T) {
	vectorizer := NewTFIDFVectorizer(zap.NewNop())
	vectorizer.FitTransform([]string{"free cruise offer"})

	matrix := vectorizer.Transform([]string{"completely unrelated words"})
	_, cols := matrix.Dims()
	for j := 0; j < cols; j++ {
		assert.Equal(t, 0.0, matrix.At(0, j))
	}
}

func TestTFIDFBlankDocuments(t *testing.T) {
	vectorizer := NewTFIDFVectorizer(zap.NewNop())

	matrix := vectorizer.FitTransform([]string{"", "   "})
	rows, _ := matrix.Dims()
	assert.Equal(t, 2, rows)
}
