package services

import (
	"go.uber.org/zap"

	"profile-analytics/internal/cache"
	"profile-analytics/internal/classifier"
	"profile-analytics/internal/config"
	"profile-analytics/internal/features"
	"profile-analytics/internal/integration"
	"profile-analytics/internal/metrics"
	"profile-analytics/internal/monitoring"
)

// ServiceContainer holds all service dependencies
type ServiceContainer struct {
	Config           *config.Config
	Logger           *zap.Logger
	Processor        *features.Processor
	Classifier       *classifier.SpamClassifier
	CacheService     *cache.CacheService
	WhitelistClient  *integration.WhitelistClient
	MetricsCollector *metrics.MetricsCollector
	AuditLogger      *monitoring.AuditLogger
}

// NewAnalyticsService creates a new analytics service for dependency injection
func NewAnalyticsService(container *ServiceContainer) *AnalyticsService {
	service := &AnalyticsService{
		config:          container.Config,
		logger:          container.Logger,
		processor:       container.Processor,
		classifier:      container.Classifier,
		cacheService:    container.CacheService,
		whitelistClient: container.WhitelistClient,
		metrics:         container.MetricsCollector,
		audit:           container.AuditLogger,
	}

	// Restore the last persisted model set; an empty model path just means
	// the service starts untrained and waits for the first training call
	if container.Config.ML.Enabled {
		if loaded := container.Classifier.LoadModels(""); loaded {
			container.Logger.Info("restored persisted model set",
				zap.Strings("models", container.Classifier.TrainedModels()))
		} else {
			container.Logger.Info("no persisted models found, starting untrained")
		}
	}

	container.Logger.Info("analytics service initialized",
		zap.Bool("ml_enabled", container.Config.ML.Enabled),
		zap.Bool("cache_enabled", container.CacheService != nil),
		zap.Bool("whitelist_integration", container.WhitelistClient != nil),
		zap.Bool("metrics_enabled", container.MetricsCollector != nil))

	return service
}
