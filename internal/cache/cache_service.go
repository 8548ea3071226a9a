package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"profile-analytics/internal/config"
	"profile-analytics/internal/models"
	"profile-analytics/internal/repository"
)

// CacheService provides a high-level caching interface with fallback to database
type CacheService struct {
	cache       *RedisCache
	profileRepo *repository.SpamProfileRepository
	logger      *zap.Logger
}

// NewCacheService creates a new cache service with database fallback
func NewCacheService(
	cache *RedisCache,
	profileRepo *repository.SpamProfileRepository,
	logger *zap.Logger,
) *CacheService {
	return &CacheService{
		cache:       cache,
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// Close closes the cache service
func (s *CacheService) Close() error {
	return s.cache.Close()
}

// CachedPrediction returns the memoized prediction for an analysis payload.
// Cache failures degrade to a miss so analysis always proceeds.
func (s *CacheService) CachedPrediction(ctx context.Context, req *models.AnalyzeCallRequest) (*models.PredictionResult, string) {
	key, err := PredictionKey(req)
	if err != nil {
		s.logger.Warn("failed to derive prediction cache key", zap.Error(err))
		return nil, ""
	}

	result, err := s.cache.GetPrediction(ctx, key)
	if err != nil {
		s.logger.Warn("prediction cache lookup failed, proceeding without cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, key
	}
	return result, key
}

// StorePrediction memoizes a prediction asynchronously under its payload key
func (s *CacheService) StorePrediction(key string, result *models.PredictionResult) {
	if key == "" || result == nil {
		return
	}
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cache.SetPrediction(cacheCtx, key, result); err != nil {
			s.logger.Warn("failed to cache prediction", zap.Error(err))
		}
	}()
}

// InvalidatePredictions drops memoized predictions after a model change
func (s *CacheService) InvalidatePredictions(ctx context.Context) error {
	return s.cache.InvalidatePredictions(ctx)
}

// GetSpamProfile retrieves a spam profile with cache-first strategy
func (s *CacheService) GetSpamProfile(ctx context.Context, phoneNumber string) (*models.SpamProfile, error) {
	phoneHash := repository.HashPhoneNumber(phoneNumber)

	// Try cache first
	profile, err := s.cache.GetSpamProfile(ctx, phoneHash)
	if err != nil {
		s.logger.Warn("cache get spam profile failed, falling back to database", zap.Error(err))
	} else if profile != nil {
		return profile, nil
	}

	// Database fallback
	profile, err = s.profileRepo.GetByPhoneHash(ctx, phoneHash)
	if err != nil {
		return nil, err
	}

	// Cache the result asynchronously
	if profile != nil {
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if cacheErr := s.cache.SetSpamProfile(cacheCtx, profile); cacheErr != nil {
				s.logger.Warn("failed to cache spam profile", zap.Error(cacheErr))
			}
		}()
	}

	return profile, nil
}

// RecordPrediction persists a prediction outcome into the caller's profile
// and refreshes its cached copy
func (s *CacheService) RecordPrediction(ctx context.Context, phoneNumber string, prediction *models.PredictionResult, features map[string]float64) (*models.SpamProfile, error) {
	profile, err := s.profileRepo.RecordPrediction(ctx, phoneNumber, prediction, features)
	if err != nil {
		return nil, err
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cacheErr := s.cache.SetSpamProfile(cacheCtx, profile); cacheErr != nil {
			s.logger.Warn("failed to refresh cached spam profile", zap.Error(cacheErr))
		}
	}()

	return profile, nil
}

// Ping tests cache connectivity
func (s *CacheService) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// NewRedisClient creates a new Redis client for dependency injection
func NewRedisClient(cfg *config.Config, logger *zap.Logger) (*RedisCache, error) {
	return NewRedisCache(&cfg.Redis, logger)
}
