package models

import (
	"time"

	"github.com/google/uuid"
)

// TerminationReason describes how a screened call ended
type TerminationReason string

const (
	TerminationCallerHangup  TerminationReason = "caller_hangup"
	TerminationAITermination TerminationReason = "ai_termination"
	TerminationTimeout       TerminationReason = "timeout"
)

// ConversationTurn represents a single exchange in the screened conversation
type ConversationTurn struct {
	Speaker     string  `json:"speaker"` // "caller" or "ai"
	Text        string  `json:"text"`
	TimestampMs float64 `json:"timestamp_ms"`
}

// AIResponse captures timing and effectiveness of one AI reply
type AIResponse struct {
	ResponseTimeMs float64 `json:"response_time_ms"`
	Effectiveness  float64 `json:"effectiveness"`
}

// ConversationFlow summarizes the structured interaction of a call
type ConversationFlow struct {
	Turns          []ConversationTurn `json:"turns"`
	CoherenceScore float64            `json:"coherence_score"`
}

// CallerCharacteristics holds behavioral signals observed for the caller
type CallerCharacteristics struct {
	PersistenceScore  float64 `json:"persistence_score"`
	InterruptionCount float64 `json:"interruption_count"`
	QuestionRate      float64 `json:"question_rate"`
	TopicSwitchRate   float64 `json:"topic_switch_rate"`

	// Emotional indicators
	AngerScore       float64 `json:"anger_score"`
	FrustrationScore float64 `json:"frustration_score"`
	UrgencyScore     float64 `json:"urgency_score"`
	PolitenessScore  float64 `json:"politeness_score"`

	// Voice characteristics
	SpeechRate      float64 `json:"speech_rate"`
	PitchVariance   float64 `json:"pitch_variance"`
	Volume          float64 `json:"volume"`
	BackgroundNoise float64 `json:"background_noise"`
}

// CallRecord is an immutable snapshot of one screened call.
// It is owned by the caller of the analytics core and read-only here.
type CallRecord struct {
	ID                uuid.UUID              `json:"id"`
	UserID            uuid.UUID              `json:"user_id"`
	CallerPhone       string                 `json:"caller_phone"`
	StartTime         string                 `json:"start_time"` // ISO-8601
	DurationSeconds   float64                `json:"duration_seconds"`
	ResponseTimeMs    float64                `json:"response_time_ms"`
	TerminationReason TerminationReason      `json:"termination_reason"`
	Caller            *CallerCharacteristics `json:"caller_characteristics,omitempty"`
	AIResponses       []AIResponse           `json:"ai_responses,omitempty"`
	Conversation      *ConversationFlow      `json:"conversation_flow,omitempty"`
}

// RiskLevel buckets a continuous spam probability into three tiers
type RiskLevel string

const (
	RiskLevelLow     RiskLevel = "low"
	RiskLevelMedium  RiskLevel = "medium"
	RiskLevelHigh    RiskLevel = "high"
	RiskLevelUnknown RiskLevel = "unknown"
)

// PredictionResult is the fixed-shape outcome of a spam prediction.
// A degraded prediction keeps the same shape with RiskLevelUnknown and
// ModelUsed "error" so callers can detect degradation without special casing.
type PredictionResult struct {
	IsSpam          bool      `json:"is_spam"`
	SpamProbability float64   `json:"spam_probability"`
	ConfidenceScore float64   `json:"confidence_score"`
	RiskLevel       RiskLevel `json:"risk_level"`
	ModelUsed       string    `json:"model_used"`
	Timestamp       time.Time `json:"timestamp"`
	Error           string    `json:"error,omitempty"`
}

// SpamProfile represents the persisted risk profile of a caller phone
type SpamProfile struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	PhoneHash       string             `json:"phone_hash" db:"phone_hash"`
	SpamCategory    string             `json:"spam_category" db:"spam_category"`
	RiskScore       float64            `json:"risk_score" db:"risk_score"`
	ConfidenceLevel float64            `json:"confidence_level" db:"confidence_level"`
	FeatureVector   map[string]float64 `json:"feature_vector" db:"feature_vector"`
	TotalCalls      int64              `json:"total_calls" db:"total_calls"`
	SpamPredictions int64              `json:"spam_predictions" db:"spam_predictions"`
	LastRiskLevel   RiskLevel          `json:"last_risk_level" db:"last_risk_level"`
	FirstSeen       time.Time          `json:"first_seen" db:"first_seen"`
	LastActivity    time.Time          `json:"last_activity" db:"last_activity"`
	LastUpdated     time.Time          `json:"last_updated" db:"last_updated"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// AnalyzeCallRequest is the HTTP payload for call risk analysis
type AnalyzeCallRequest struct {
	Call       CallRecord   `json:"call" binding:"required"`
	History    []CallRecord `json:"history,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
}

// AnalyzeCallResponse wraps a prediction with its feature vector and timing
type AnalyzeCallResponse struct {
	Prediction     *PredictionResult  `json:"prediction"`
	Features       map[string]float64 `json:"features,omitempty"`
	CacheHit       bool               `json:"cache_hit"`
	ProcessingTime time.Duration      `json:"processing_time_ms"`
}

// LabeledCall pairs a call record with its ground-truth spam label
type LabeledCall struct {
	Call       CallRecord   `json:"call" binding:"required"`
	History    []CallRecord `json:"history,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	IsSpam     bool         `json:"is_spam"`
}

// TrainRequest is the HTTP payload for corpus training
type TrainRequest struct {
	Corpus          []LabeledCall `json:"corpus" binding:"required,min=10"`
	ValidationSplit float64       `json:"validation_split"`
	UseEnsemble     *bool         `json:"use_ensemble,omitempty"`
}
