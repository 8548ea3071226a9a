package features

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"profile-analytics/internal/models"
)

// Time bucket boundaries in hours, call duration boundaries in seconds
const (
	morningStart  = 6
	afternoonHour = 12
	eveningHour   = 18
	nightHour     = 22
	businessStart = 9
	businessEnd   = 17

	shortCallSeconds = 30
	longCallSeconds  = 180

	fastResponseMs = 1000
	slowResponseMs = 3000
)

// Accepted timestamp layouts for call start times
var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// TemporalExtractor derives timing and calling-pattern features from call records
type TemporalExtractor struct {
	logger *zap.Logger
}

// NewTemporalExtractor creates a new temporal feature extractor
func NewTemporalExtractor(logger *zap.Logger) *TemporalExtractor {
	return &TemporalExtractor{logger: logger}
}

// CallTimingFeatures extracts timing features from a single call record.
// It never fails: an unparseable start time degrades to a partial vector
// carrying only the duration and latency features.
func (e *TemporalExtractor) CallTimingFeatures(call models.CallRecord) map[string]float64 {
	features := make(map[string]float64)

	if t, ok := e.parseStartTime(call.StartTime); ok {
		hour := float64(t.Hour())
		weekday := mondayIndexedWeekday(t)

		features["hour_of_day"] = hour
		features["minute"] = float64(t.Minute())
		features["day_of_week"] = float64(weekday)
		features["day_of_month"] = float64(t.Day())

		features["is_morning"] = boolFeature(t.Hour() >= morningStart && t.Hour() < afternoonHour)
		features["is_afternoon"] = boolFeature(t.Hour() >= afternoonHour && t.Hour() < eveningHour)
		features["is_evening"] = boolFeature(t.Hour() >= eveningHour && t.Hour() < nightHour)
		features["is_night"] = boolFeature(t.Hour() >= nightHour || t.Hour() < morningStart)
		features["is_business_hours"] = boolFeature(t.Hour() >= businessStart && t.Hour() < businessEnd)
		features["is_weekend"] = boolFeature(weekday >= 5)

		// Cyclical encoding keeps hour 23 and hour 0 numerically adjacent
		features["hour_sin"] = math.Sin(2 * math.Pi * hour / 24)
		features["hour_cos"] = math.Cos(2 * math.Pi * hour / 24)
		features["day_sin"] = math.Sin(2 * math.Pi * float64(weekday) / 7)
		features["day_cos"] = math.Cos(2 * math.Pi * float64(weekday) / 7)
	} else {
		e.logger.Warn("failed to parse call start time, emitting partial timing features",
			zap.String("start_time", call.StartTime),
			zap.String("call_id", call.ID.String()))
	}

	duration := call.DurationSeconds
	features["call_duration"] = duration
	features["is_short_call"] = boolFeature(duration < shortCallSeconds)
	features["is_medium_call"] = boolFeature(duration >= shortCallSeconds && duration < longCallSeconds)
	features["is_long_call"] = boolFeature(duration >= longCallSeconds)
	features["duration_log"] = math.Log1p(math.Max(duration, 0))

	latency := call.ResponseTimeMs
	features["response_time"] = latency
	features["response_time_log"] = math.Log1p(math.Max(latency, 0))
	features["is_fast_response"] = boolFeature(latency < fastResponseMs)
	features["is_slow_response"] = boolFeature(latency > slowResponseMs)

	return features
}

// PatternFeatures extracts calling-pattern features from a call history.
// Fewer than two calls yields an empty map, not an error.
func (e *TemporalExtractor) PatternFeatures(history []models.CallRecord) map[string]float64 {
	features := make(map[string]float64)
	if len(history) < 2 {
		return features
	}

	timestamps := make([]time.Time, 0, len(history))
	for _, call := range history {
		if t, ok := e.parseStartTime(call.StartTime); ok {
			timestamps = append(timestamps, t)
		}
	}
	if len(timestamps) >= 2 {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

		intervals := make([]float64, 0, len(timestamps)-1)
		for i := 1; i < len(timestamps); i++ {
			intervals = append(intervals, timestamps[i].Sub(timestamps[i-1]).Seconds())
		}

		features["avg_time_between_calls"] = stat.Mean(intervals, nil)
		features["min_time_between_calls"] = minOf(intervals)
		features["max_time_between_calls"] = maxOf(intervals)
		features["std_time_between_calls"] = stat.PopStdDev(intervals, nil)
		features["median_time_between_calls"] = median(intervals)

		hourCounts := make(map[int]int)
		business := 0
		for _, t := range timestamps {
			hourCounts[t.Hour()]++
			if t.Hour() >= businessStart && t.Hour() < businessEnd {
				business++
			}
		}
		features["most_common_hour"] = float64(mostCommonHour(hourCounts))
		features["hour_diversity"] = float64(len(hourCounts)) / 24.0
		features["business_hours_ratio"] = float64(business) / float64(len(timestamps))
	}

	durations := make([]float64, 0, len(history))
	for _, call := range history {
		if call.DurationSeconds > 0 {
			durations = append(durations, call.DurationSeconds)
		}
	}
	if len(durations) > 0 {
		features["avg_call_duration"] = stat.Mean(durations, nil)
		features["min_call_duration"] = minOf(durations)
		features["max_call_duration"] = maxOf(durations)
		features["std_call_duration"] = stat.PopStdDev(durations, nil)
	}

	return features
}

func (e *TemporalExtractor) parseStartTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// mondayIndexedWeekday maps time.Weekday to a Monday=0 .. Sunday=6 index
func mondayIndexedWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func boolFeature(v bool) float64 {
	if v {
		return 1.0
	}
	return 0.0
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mostCommonHour(counts map[int]int) int {
	bestHour, bestCount := 0, -1
	for hour := 0; hour < 24; hour++ {
		if c := counts[hour]; c > bestCount {
			bestHour, bestCount = hour, c
		}
	}
	return bestHour
}
