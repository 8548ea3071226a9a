package features

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"profile-analytics/internal/models"
)

func newTestCall(startTime string, duration float64) models.CallRecord {
	return models.CallRecord{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		CallerPhone:     "+1234567890",
		StartTime:       startTime,
		DurationSeconds: duration,
	}
}

func TestCallTimingFeatures(t *testing.T) {
	extractor := NewTemporalExtractor(zap.NewNop())

	// Monday afternoon, business hours
	features := extractor.CallTimingFeatures(newTestCall("2025-06-16T14:30:00Z", 45))

	assert.Equal(t, 14.0, features["hour_of_day"])
	assert.Equal(t, 30.0, features["minute"])
	assert.Equal(t, 0.0, features["day_of_week"], "Monday should be index 0")
	assert.Equal(t, 1.0, features["is_afternoon"])
	assert.Equal(t, 0.0, features["is_morning"])
	assert.Equal(t, 0.0, features["is_night"])
	assert.Equal(t, 1.0, features["is_business_hours"])
	assert.Equal(t, 0.0, features["is_weekend"])
}

func TestCallTimingCyclicalEncoding(t *testing.T) {
	extractor := NewTemporalExtractor(zap.NewNop())

	features := extractor.CallTimingFeatures(newTestCall("2025-06-16T14:30:00Z", 45))

	// Encoded hour must sit on the unit circle
	radius := features["hour_sin"]*features["hour_sin"] + features["hour_cos"]*features["hour_cos"]
	assert.InDelta(t, 1.0, radius, 1e-9)

	radius = features["day_sin"]*features["day_sin"] + features["day_cos"]*features["day_cos"]
	assert.InDelta(t, 1.0, radius, 1e-9)

	// Hour 23 and hour 0 must be numerically adjacent, unlike hour 12
	late := extractor.CallTimingFeatures(newTestCall("2025-06-16T23:00:00Z", 45))
	midnight := extractor.CallTimingFeatures(newTestCall("2025-06-17T00:00:00Z", 45))
	noon := extractor.CallTimingFeatures(newTestCall("2025-06-16T12:00:00Z", 45))

	adjacent := math.Hypot(
		late["hour_sin"]-midnight["hour_sin"],
		late["hour_cos"]-midnight["hour_cos"])
	opposite := math.Hypot(
		noon["hour_sin"]-midnight["hour_sin"],
		noon["hour_cos"]-midnight["hour_cos"])

	assert.Less(t, adjacent, 0.3)
	assert.Greater(t, opposite, 1.9)
}

func TestDurationBucketsAreExclusive(t *testing.T) {
	extractor := NewTemporalExtractor(zap.NewNop())

	cases := []struct {
		duration float64
		bucket   string
	}{
		{10, "is_short_call"},
		{29.9, "is_short_call"},
		{30, "is_medium_call"},
		{90, "is_medium_call"},
		{180, "is_long_call"},
		{600, "is_long_call"},
	}

	for _, tc := range cases {
		features := extractor.CallTimingFeatures(newTestCall("2025-06-16T14:30:00Z", tc.duration))

		sum := features["is_short_call"] + features["is_medium_call"] + features["is_long_call"]
		assert.Equal(t, 1.0, sum, "exactly one duration bucket for %.1fs", tc.duration)
		assert.Equal(t, 1.0, features[tc.bucket], "duration %.1fs should be %s", tc.duration, tc.bucket)
	}
}

func TestCallTimingUnparseableStartTime(t *testing.T) {
	extractor := NewTemporalExtractor(zap.NewNop())

	features := extractor.CallTimingFeatures(newTestCall("not a timestamp", 45))

	_, hasHour := features["hour_of_day"]
	assert.False(t, hasHour, "timing-of-day features omitted on parse failure")
	assert.Equal(t, 45.0, features["call_duration"])
	assert.Equal(t, 1.0, features["is_medium_call"])
}

func TestPatternFeaturesRegularIntervals(t *testing.T) {
	extractor := NewTemporalExtractor(zap.NewNop())

	// Three calls 2.5h apart, all during business hours
	history := []models.CallRecord{
		newTestCall("2025-06-16T09:00:00Z", 30),
		newTestCall("2025-06-16T11:30:00Z", 60),
		newTestCall("2025-06-16T14:00:00Z", 90),
	}

	features := extractor.PatternFeatures(history)

	assert.Equal(t, 9000.0, features["avg_time_between_calls"])
	assert.Equal(t, 9000.0, features["min_time_between_calls"])
	assert.Equal(t, 9000.0, features["max_time_between_calls"])
	assert.Equal(t, 0.0, features["std_time_between_calls"])
	assert.Equal(t, 9000.0, features["median_time_between_calls"])
	assert.Equal(t, 1.0, features["business_hours_ratio"])
	assert.InDelta(t, 3.0/24.0, features["hour_diversity"], 1e-9)

	assert.Equal(t, 60.0, features["avg_call_duration"])
	assert.Equal(t, 30.0, features["min_call_duration"])
	assert.Equal(t, 90.0, features["max_call_duration"])
}

func TestPatternFeaturesTooFewCalls(t *testing.T) {
	extractor := NewTemporalExtractor(zap.NewNop())

	require.Empty(t, extractor.PatternFeatures(nil))
	require.Empty(t, extractor.PatternFeatures([]models.CallRecord{
		newTestCall("2025-06-16T09:00:00Z", 30),
	}))
}

func TestPatternFeaturesUnsortedHistory(t *testing.T) {
	extractor := NewTemporalExtractor(zap.NewNop())

	// Out-of-order history must not produce negative intervals
	history := []models.CallRecord{
		newTestCall("2025-06-16T14:00:00Z", 30),
		newTestCall("2025-06-16T09:00:00Z", 30),
		newTestCall("2025-06-16T11:30:00Z", 30),
	}

	features := extractor.PatternFeatures(history)
	assert.Equal(t, 9000.0, features["avg_time_between_calls"])
	assert.GreaterOrEqual(t, features["min_time_between_calls"], 0.0)
}
