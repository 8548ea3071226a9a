package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"profile-analytics/internal/config"
	"profile-analytics/internal/models"
)

const (
	// Cache key prefixes
	PredictionPrefix = "pd:" // prediction:payload_hash
	ProfilePrefix    = "sp:" // spam_profile:phone_hash
)

// RedisCache provides Redis-based memoization of predictions and profiles
type RedisCache struct {
	client *redis.Client
	config *config.RedisConfig
	logger *zap.Logger
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(cfg *config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("database", cfg.Database))

	return &RedisCache{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// PredictionKey derives a deterministic cache key from the analysis payload.
// Identical call, history and transcript hash to the same key, so repeated
// analyses of the same payload hit the memoized prediction.
func PredictionKey(req *models.AnalyzeCallRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return PredictionPrefix + hex.EncodeToString(sum[:]), nil
}

// GetPrediction retrieves a memoized prediction. A cache miss returns
// (nil, nil) so callers fall through to the model.
func (c *RedisCache) GetPrediction(ctx context.Context, key string) (*models.PredictionResult, error) {
	start := time.Now()

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			c.logger.Debug("prediction cache miss",
				zap.String("key", key),
				zap.Duration("duration", time.Since(start)))
			return nil, nil // Cache miss
		}
		c.logger.Error("failed to get prediction from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to get prediction from cache: %w", err)
	}

	var result models.PredictionResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("failed to unmarshal prediction from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}

	c.logger.Debug("prediction cache hit",
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))

	return &result, nil
}

// SetPrediction memoizes a prediction under its payload key
func (c *RedisCache) SetPrediction(ctx context.Context, key string, result *models.PredictionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	err = c.client.Set(ctx, key, data, c.config.PredictionCacheTTL).Err()
	if err != nil {
		c.logger.Error("failed to set prediction in cache",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("failed to set prediction in cache: %w", err)
	}

	c.logger.Debug("prediction cached",
		zap.String("key", key),
		zap.Duration("ttl", c.config.PredictionCacheTTL))

	return nil
}

// InvalidatePredictions drops every memoized prediction. Called after a
// retrain, since cached results from the previous model set are stale.
func (c *RedisCache) InvalidatePredictions(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, PredictionPrefix+"*").Result()
	if err != nil {
		c.logger.Error("failed to list prediction cache keys", zap.Error(err))
		return fmt.Errorf("failed to list prediction cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("failed to invalidate prediction cache",
			zap.Error(err),
			zap.Int("key_count", len(keys)))
		return fmt.Errorf("failed to invalidate prediction cache: %w", err)
	}

	c.logger.Info("prediction cache invalidated", zap.Int("key_count", len(keys)))
	return nil
}

// GetSpamProfile retrieves a spam profile from cache
func (c *RedisCache) GetSpamProfile(ctx context.Context, phoneHash string) (*models.SpamProfile, error) {
	start := time.Now()
	key := fmt.Sprintf("%s%s", ProfilePrefix, phoneHash)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			c.logger.Debug("spam profile cache miss",
				zap.String("key", key),
				zap.Duration("duration", time.Since(start)))
			return nil, nil // Cache miss
		}
		c.logger.Error("failed to get spam profile from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to get spam profile from cache: %w", err)
	}

	var profile models.SpamProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		c.logger.Error("failed to unmarshal spam profile from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to unmarshal spam profile: %w", err)
	}

	c.logger.Debug("spam profile cache hit",
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))

	return &profile, nil
}

// SetSpamProfile stores a spam profile in cache
func (c *RedisCache) SetSpamProfile(ctx context.Context, profile *models.SpamProfile) error {
	key := fmt.Sprintf("%s%s", ProfilePrefix, profile.PhoneHash)

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal spam profile: %w", err)
	}

	err = c.client.Set(ctx, key, data, c.config.ProfileCacheTTL).Err()
	if err != nil {
		c.logger.Error("failed to set spam profile in cache",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("failed to set spam profile in cache: %w", err)
	}

	c.logger.Debug("spam profile cached",
		zap.String("key", key),
		zap.Duration("ttl", c.config.ProfileCacheTTL))

	return nil
}

// InvalidateSpamProfile removes a spam profile from cache
func (c *RedisCache) InvalidateSpamProfile(ctx context.Context, phoneHash string) error {
	key := fmt.Sprintf("%s%s", ProfilePrefix, phoneHash)

	err := c.client.Del(ctx, key).Err()
	if err != nil {
		c.logger.Error("failed to invalidate spam profile cache",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("failed to invalidate spam profile cache: %w", err)
	}

	c.logger.Debug("spam profile cache invalidated", zap.String("key", key))
	return nil
}

// Ping tests the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// FlushAll clears all cache (use with caution, mainly for testing)
func (c *RedisCache) FlushAll(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}
