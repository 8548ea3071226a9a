package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"profile-analytics/internal/config"
)

// MetricsCollector collects and exposes metrics for the profile analytics service
type MetricsCollector struct {
	config *config.MetricsConfig
	logger *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Prediction metrics
	predictionsTotal    *prometheus.CounterVec
	predictionDuration  *prometheus.HistogramVec
	degradedPredictions prometheus.Counter

	// Feature extraction metrics
	featureExtractionDuration *prometheus.HistogramVec
	featureVectorSize         prometheus.Gauge

	// Training metrics
	trainingRunsTotal  *prometheus.CounterVec
	trainingDuration   prometheus.Histogram
	ensembleF1         prometheus.Gauge
	trainingSamples    prometheus.Gauge
	modelRetrainsTotal prometheus.Counter

	// Cache metrics
	cacheOperationsTotal *prometheus.CounterVec
	cacheHitRate         prometheus.Gauge
	cacheMissRate        prometheus.Gauge

	// Database metrics
	dbQueriesTotal  *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	// Internal state
	mu          sync.RWMutex
	cacheHits   int64
	cacheMisses int64
	predictions int64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(cfg *config.MetricsConfig, logger *zap.Logger) *MetricsCollector {
	if !cfg.Enabled {
		logger.Info("metrics collection disabled")
		return &MetricsCollector{
			config: cfg,
			logger: logger,
		}
	}

	histogramBuckets := cfg.HistogramBuckets
	if len(histogramBuckets) == 0 {
		histogramBuckets = []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}
	}

	collector := &MetricsCollector{
		config: cfg,
		logger: logger,

		// HTTP metrics
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_analytics_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profile_analytics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: histogramBuckets,
			},
			[]string{"method", "endpoint"},
		),

		// Prediction metrics
		predictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_analytics_predictions_total",
				Help: "Total number of spam predictions served",
			},
			[]string{"risk_level", "model", "source"}, // source: cache/model
		),

		predictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profile_analytics_prediction_duration_seconds",
				Help:    "Prediction duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"model"},
		),

		degradedPredictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "profile_analytics_degraded_predictions_total",
				Help: "Total number of predictions that degraded to the neutral fallback",
			},
		),

		// Feature extraction metrics
		featureExtractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profile_analytics_feature_extraction_duration_seconds",
				Help:    "Feature extraction duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
			[]string{"stage"}, // stage: vector/normalize
		),

		featureVectorSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "profile_analytics_feature_vector_size",
				Help: "Number of features in the most recent vector",
			},
		),

		// Training metrics
		trainingRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_analytics_training_runs_total",
				Help: "Total number of training runs",
			},
			[]string{"result"}, // result: success/error
		),

		trainingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "profile_analytics_training_duration_seconds",
				Help:    "Training run duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),

		ensembleF1: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "profile_analytics_ensemble_f1",
				Help: "Latest evaluated F1 score of the voting ensemble",
			},
		),

		trainingSamples: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "profile_analytics_training_samples",
				Help: "Number of samples used in the last training run",
			},
		),

		modelRetrainsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "profile_analytics_model_retrains_total",
				Help: "Total number of degradation-triggered retrains",
			},
		),

		// Cache metrics
		cacheOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_analytics_cache_operations_total",
				Help: "Total number of cache operations",
			},
			[]string{"operation", "result"}, // operation: get/set/delete, result: hit/miss/error
		),

		cacheHitRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "profile_analytics_cache_hit_rate_percent",
				Help: "Overall cache hit rate percentage",
			},
		),

		cacheMissRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "profile_analytics_cache_miss_rate_percent",
				Help: "Overall cache miss rate percentage",
			},
		),

		// Database metrics
		dbQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_analytics_db_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "result"},
		),

		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profile_analytics_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"operation"},
		),
	}

	// Register all metrics
	collector.registerMetrics()

	logger.Info("metrics collector initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.String("path", cfg.Path))

	return collector
}

// registerMetrics registers all metrics with Prometheus
func (m *MetricsCollector) registerMetrics() {
	if !m.config.Enabled {
		return
	}

	prometheus.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,

		m.predictionsTotal,
		m.predictionDuration,
		m.degradedPredictions,

		m.featureExtractionDuration,
		m.featureVectorSize,

		m.trainingRunsTotal,
		m.trainingDuration,
		m.ensembleF1,
		m.trainingSamples,
		m.modelRetrainsTotal,

		m.cacheOperationsTotal,
		m.cacheHitRate,
		m.cacheMissRate,

		m.dbQueriesTotal,
		m.dbQueryDuration,
	)
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !m.config.Enabled {
		return
	}

	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPrediction records one served prediction
func (m *MetricsCollector) RecordPrediction(riskLevel, model, source string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}

	m.predictionsTotal.WithLabelValues(riskLevel, model, source).Inc()
	m.predictionDuration.WithLabelValues(model).Observe(duration.Seconds())

	m.mu.Lock()
	m.predictions++
	m.mu.Unlock()
}

// RecordDegradedPrediction counts a prediction that fell back to neutral
func (m *MetricsCollector) RecordDegradedPrediction() {
	if !m.config.Enabled {
		return
	}
	m.degradedPredictions.Inc()
}

// RecordFeatureExtraction records feature extraction timing and vector size
func (m *MetricsCollector) RecordFeatureExtraction(stage string, duration time.Duration, vectorSize int) {
	if !m.config.Enabled {
		return
	}

	m.featureExtractionDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if vectorSize > 0 {
		m.featureVectorSize.Set(float64(vectorSize))
	}
}

// RecordTrainingRun records the outcome of a training run
func (m *MetricsCollector) RecordTrainingRun(result string, duration time.Duration, samples int) {
	if !m.config.Enabled {
		return
	}

	m.trainingRunsTotal.WithLabelValues(result).Inc()
	m.trainingDuration.Observe(duration.Seconds())
	if samples > 0 {
		m.trainingSamples.Set(float64(samples))
	}
}

// RecordRetrain counts a degradation-triggered retrain
func (m *MetricsCollector) RecordRetrain() {
	if !m.config.Enabled {
		return
	}
	m.modelRetrainsTotal.Inc()
}

// UpdateEnsembleF1 publishes the latest evaluated ensemble F1
func (m *MetricsCollector) UpdateEnsembleF1(f1 float64) {
	if !m.config.Enabled {
		return
	}
	m.ensembleF1.Set(f1)
}

// RecordCacheOperation records cache operation metrics
func (m *MetricsCollector) RecordCacheOperation(operation, result string) {
	if !m.config.Enabled {
		return
	}

	m.cacheOperationsTotal.WithLabelValues(operation, result).Inc()

	m.mu.Lock()
	if operation == "get" && result == "hit" {
		m.cacheHits++
	} else if operation == "get" && result == "miss" {
		m.cacheMisses++
	}
	m.mu.Unlock()

	m.updateCacheHitRate()
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(operation, result string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}

	m.dbQueriesTotal.WithLabelValues(operation, result).Inc()
	m.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// updateCacheHitRate calculates and updates cache hit rate
func (m *MetricsCollector) updateCacheHitRate() {
	m.mu.RLock()
	hits := m.cacheHits
	misses := m.cacheMisses
	m.mu.RUnlock()

	total := hits + misses
	if total > 0 {
		hitRate := float64(hits) / float64(total) * 100
		missRate := float64(misses) / float64(total) * 100
		m.cacheHitRate.Set(hitRate)
		m.cacheMissRate.Set(missRate)
	}
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GetStats returns current metrics statistics
func (m *MetricsCollector) GetStats() map[string]interface{} {
	if !m.config.Enabled {
		return map[string]interface{}{
			"metrics_enabled": false,
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hitRate := 0.0
	if total := m.cacheHits + m.cacheMisses; total > 0 {
		hitRate = float64(m.cacheHits) / float64(total) * 100
	}

	return map[string]interface{}{
		"metrics_enabled": true,
		"predictions":     m.predictions,
		"cache_hits":      m.cacheHits,
		"cache_misses":    m.cacheMisses,
		"cache_hit_rate":  hitRate,
	}
}
