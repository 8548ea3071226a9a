package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"profile-analytics/internal/models"
)

func TestConversationFeaturesDefaults(t *testing.T) {
	extractor := NewBehavioralExtractor(zap.NewNop())

	features := extractor.ConversationFeatures(models.CallRecord{})

	// Every feature present and zero when no flow data exists
	for name, value := range features {
		assert.Equal(t, 0.0, value, "feature %q should default to zero", name)
	}
	assert.Contains(t, features, "total_turns")
	assert.Contains(t, features, "coherence_score")
}

func TestConversationFeatures(t *testing.T) {
	extractor := NewBehavioralExtractor(zap.NewNop())

	call := models.CallRecord{
		DurationSeconds:   120,
		TerminationReason: models.TerminationCallerHangup,
		Conversation: &models.ConversationFlow{
			Turns: []models.ConversationTurn{
				{Speaker: "caller", Text: "hello is this the account owner"},
				{Speaker: "ai", Text: "who is calling"},
				{Speaker: "caller", Text: "we have an urgent offer"},
				{Speaker: "ai", Text: "not interested"},
			},
			CoherenceScore: 0.8,
		},
		AIResponses: []models.AIResponse{
			{ResponseTimeMs: 400, Effectiveness: 0.9},
			{ResponseTimeMs: 600, Effectiveness: 0.7},
		},
	}

	features := extractor.ConversationFeatures(call)

	assert.Equal(t, 4.0, features["total_turns"])
	assert.Equal(t, 2.0, features["turns_per_minute"])
	assert.Equal(t, 0.8, features["coherence_score"])

	assert.Equal(t, 500.0, features["ai_response_time_avg"])
	assert.Equal(t, 400.0, features["ai_response_time_min"])
	assert.Equal(t, 600.0, features["ai_response_time_max"])
	assert.InDelta(t, 0.8, features["avg_effectiveness"], 1e-9)
	assert.Greater(t, features["response_consistency"], 0.0)

	assert.Equal(t, 1.0, features["ended_by_caller"])
	assert.Equal(t, 0.0, features["ended_by_ai"])
	assert.Equal(t, 1.0, features["successful_termination"])
}

func TestConversationFeaturesTimeout(t *testing.T) {
	extractor := NewBehavioralExtractor(zap.NewNop())

	features := extractor.ConversationFeatures(models.CallRecord{
		TerminationReason: models.TerminationTimeout,
	})

	assert.Equal(t, 1.0, features["ended_by_timeout"])
	assert.Equal(t, 0.0, features["successful_termination"])
}

func TestCallerBehaviorFeatures(t *testing.T) {
	extractor := NewBehavioralExtractor(zap.NewNop())

	defaults := extractor.CallerBehaviorFeatures(nil)
	for name, value := range defaults {
		assert.Equal(t, 0.0, value, "feature %q should default to zero", name)
	}

	features := extractor.CallerBehaviorFeatures(&models.CallerCharacteristics{
		PersistenceScore: 0.9,
		AngerScore:       0.4,
		SpeechRate:       3.2,
	})
	assert.Equal(t, 0.9, features["persistence_score"])
	assert.Equal(t, 0.4, features["anger_score"])
	assert.Equal(t, 3.2, features["speech_rate"])
	assert.Equal(t, 0.0, features["volume"])
}
