package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profile-analytics/internal/api"
	"profile-analytics/internal/cache"
	"profile-analytics/internal/classifier"
	"profile-analytics/internal/config"
	"profile-analytics/internal/features"
	"profile-analytics/internal/integration"
	"profile-analytics/internal/metrics"
	"profile-analytics/internal/monitoring"
	"profile-analytics/internal/repository"
	"profile-analytics/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Configuration
		fx.Provide(config.NewConfig),

		// Logging
		fx.Provide(NewLogger),

		// Database
		fx.Provide(repository.NewPostgresDB),
		fx.Provide(repository.NewSpamProfileRepository),

		// Cache
		fx.Provide(cache.NewRedisClient),
		fx.Provide(cache.NewCacheService),

		// ML components
		fx.Provide(NewFeatureProcessor),
		fx.Provide(NewSpamClassifier),

		// Integrations
		fx.Provide(NewWhitelistClient),

		// Observability
		fx.Provide(NewMetricsCollector),
		fx.Provide(monitoring.NewAuditLogger),

		// Services
		fx.Provide(NewServiceContainer),
		fx.Provide(services.NewAnalyticsService),

		// API
		fx.Provide(NewGinEngine),
		fx.Provide(api.NewAnalyticsHandler),
		fx.Provide(api.NewHealthHandler),

		// HTTP Server
		fx.Provide(NewHTTPServer),

		// Lifecycle
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if !cfg.Logging.Development {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func NewFeatureProcessor(logger *zap.Logger) *features.Processor {
	return features.NewProcessor(logger)
}

func NewSpamClassifier(cfg *config.Config, logger *zap.Logger) *classifier.SpamClassifier {
	return classifier.NewSpamClassifier(&cfg.ML, logger)
}

func NewMetricsCollector(cfg *config.Config, logger *zap.Logger) *metrics.MetricsCollector {
	return metrics.NewMetricsCollector(&cfg.Metrics, logger)
}

// NewWhitelistClient returns nil when no whitelist service is configured;
// high-risk reporting is simply skipped in that case
func NewWhitelistClient(cfg *config.Config, logger *zap.Logger) *integration.WhitelistClient {
	if cfg.Integration.WhitelistServiceURL == "" {
		logger.Info("whitelist service integration disabled")
		return nil
	}
	return integration.NewWhitelistClient(cfg, logger)
}

func NewServiceContainer(
	cfg *config.Config,
	logger *zap.Logger,
	processor *features.Processor,
	spamClassifier *classifier.SpamClassifier,
	cacheService *cache.CacheService,
	whitelistClient *integration.WhitelistClient,
	collector *metrics.MetricsCollector,
	auditLogger *monitoring.AuditLogger,
) *services.ServiceContainer {
	return &services.ServiceContainer{
		Config:           cfg,
		Logger:           logger,
		Processor:        processor,
		Classifier:       spamClassifier,
		CacheService:     cacheService,
		WhitelistClient:  whitelistClient,
		MetricsCollector: collector,
		AuditLogger:      auditLogger,
	}
}

func NewGinEngine(cfg *config.Config) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// CORS middleware
	engine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	return engine
}

func NewHTTPServer(cfg *config.Config, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
}

func RegisterRoutes(
	engine *gin.Engine,
	analyticsHandler *api.AnalyticsHandler,
	healthHandler *api.HealthHandler,
) {
	// Health endpoints
	engine.GET("/health", healthHandler.Health)
	engine.GET("/health/ready", healthHandler.Ready)
	engine.GET("/health/live", healthHandler.Live)

	// Metrics endpoint
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 routes
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/analytics/calls/analyze", analyticsHandler.AnalyzeCall)
		v1.POST("/analytics/train", analyticsHandler.Train)
		v1.POST("/analytics/update", analyticsHandler.Update)
		v1.POST("/analytics/evaluate", analyticsHandler.Evaluate)
		v1.GET("/analytics/models", analyticsHandler.GetModels)
		v1.GET("/analytics/models/:model/importance", analyticsHandler.GetFeatureImportance)
		v1.GET("/analytics/profiles/:phone", analyticsHandler.GetProfile)
	}
}

func StartServer(
	lc fx.Lifecycle,
	server *http.Server,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting Profile Analytics Service",
				zap.String("addr", server.Addr))

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Profile Analytics Service")

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	})

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Received shutdown signal")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	}()
}
