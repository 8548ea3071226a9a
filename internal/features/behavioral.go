package features

import (
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"profile-analytics/internal/models"
)

// BehavioralExtractor derives conversation-flow and caller-behavior features
// from the structured interaction data attached to a call record
type BehavioralExtractor struct {
	logger *zap.Logger
}

// NewBehavioralExtractor creates a new behavioral feature extractor
func NewBehavioralExtractor(logger *zap.Logger) *BehavioralExtractor {
	return &BehavioralExtractor{logger: logger}
}

// ConversationFeatures extracts conversation-flow features from a call.
// Missing flow data yields zero-valued features rather than an error.
func (e *BehavioralExtractor) ConversationFeatures(call models.CallRecord) map[string]float64 {
	features := map[string]float64{
		"total_turns":            0,
		"turns_per_minute":       0,
		"avg_turn_length":        0,
		"ai_response_time_avg":   0,
		"ai_response_time_min":   0,
		"ai_response_time_max":   0,
		"response_consistency":   0,
		"avg_effectiveness":      0,
		"ended_by_caller":        0,
		"ended_by_ai":            0,
		"ended_by_timeout":       0,
		"successful_termination": 0,
		"coherence_score":        0,
	}

	if call.Conversation != nil {
		turns := call.Conversation.Turns
		features["total_turns"] = float64(len(turns))
		if call.DurationSeconds > 0 {
			features["turns_per_minute"] = float64(len(turns)) / (call.DurationSeconds / 60.0)
		}
		if len(turns) > 0 {
			totalWords := 0
			for _, turn := range turns {
				totalWords += len(strings.Fields(turn.Text))
			}
			features["avg_turn_length"] = float64(totalWords) / float64(len(turns))
		}
		features["coherence_score"] = call.Conversation.CoherenceScore
	}

	if len(call.AIResponses) > 0 {
		timings := make([]float64, 0, len(call.AIResponses))
		effectiveness := make([]float64, 0, len(call.AIResponses))
		for _, resp := range call.AIResponses {
			timings = append(timings, resp.ResponseTimeMs)
			effectiveness = append(effectiveness, resp.Effectiveness)
		}

		mean := stat.Mean(timings, nil)
		features["ai_response_time_avg"] = mean
		features["ai_response_time_min"] = minOf(timings)
		features["ai_response_time_max"] = maxOf(timings)
		if mean > 0 {
			consistency := 1 - stat.PopStdDev(timings, nil)/mean
			if consistency < 0 {
				consistency = 0
			}
			features["response_consistency"] = consistency
		}
		features["avg_effectiveness"] = stat.Mean(effectiveness, nil)
	}

	switch call.TerminationReason {
	case models.TerminationCallerHangup:
		features["ended_by_caller"] = 1.0
	case models.TerminationAITermination:
		features["ended_by_ai"] = 1.0
	case models.TerminationTimeout:
		features["ended_by_timeout"] = 1.0
	}
	if call.TerminationReason == models.TerminationCallerHangup ||
		call.TerminationReason == models.TerminationAITermination {
		features["successful_termination"] = 1.0
	}

	return features
}

// CallerBehaviorFeatures passes through the observed caller behavior scores,
// defaulting each to zero when the caller characteristics are absent
func (e *BehavioralExtractor) CallerBehaviorFeatures(caller *models.CallerCharacteristics) map[string]float64 {
	features := map[string]float64{
		"persistence_score": 0,
		"interruptions":     0,
		"question_rate":     0,
		"topic_switches":    0,
		"anger_score":       0,
		"frustration_score": 0,
		"urgency_score":     0,
		"politeness_score":  0,
		"speech_rate":       0,
		"pitch_variance":    0,
		"volume":            0,
		"background_noise":  0,
	}
	if caller == nil {
		return features
	}

	features["persistence_score"] = caller.PersistenceScore
	features["interruptions"] = caller.InterruptionCount
	features["question_rate"] = caller.QuestionRate
	features["topic_switches"] = caller.TopicSwitchRate
	features["anger_score"] = caller.AngerScore
	features["frustration_score"] = caller.FrustrationScore
	features["urgency_score"] = caller.UrgencyScore
	features["politeness_score"] = caller.PolitenessScore
	features["speech_rate"] = caller.SpeechRate
	features["pitch_variance"] = caller.PitchVariance
	features["volume"] = caller.Volume
	features["background_noise"] = caller.BackgroundNoise
	return features
}
