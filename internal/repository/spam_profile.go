package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"profile-analytics/internal/models"
)

// SpamProfileRepository handles database operations for spam profiles
type SpamProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewSpamProfileRepository creates a new spam profile repository
func NewSpamProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *SpamProfileRepository {
	return &SpamProfileRepository{
		db:     db,
		logger: logger,
	}
}

// HashPhoneNumber creates a SHA-256 hash of the phone number. Only the hash
// ever reaches storage; raw numbers never leave the request path.
func HashPhoneNumber(phoneNumber string) string {
	hash := sha256.Sum256([]byte(phoneNumber))
	return hex.EncodeToString(hash[:])
}

// GetByPhoneNumber retrieves a spam profile by phone number
func (r *SpamProfileRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.SpamProfile, error) {
	return r.GetByPhoneHash(ctx, HashPhoneNumber(phoneNumber))
}

// GetByPhoneHash retrieves a spam profile by its phone hash
func (r *SpamProfileRepository) GetByPhoneHash(ctx context.Context, phoneHash string) (*models.SpamProfile, error) {
	query := `
		SELECT id, phone_hash, spam_category, risk_score, confidence_level,
		       feature_vector, total_calls, spam_predictions, last_risk_level,
		       first_seen, last_activity, last_updated, created_at
		FROM spam_profiles
		WHERE phone_hash = $1`

	var profile models.SpamProfile
	err := r.db.QueryRow(ctx, query, phoneHash).Scan(
		&profile.ID, &profile.PhoneHash, &profile.SpamCategory, &profile.RiskScore,
		&profile.ConfidenceLevel, &profile.FeatureVector, &profile.TotalCalls,
		&profile.SpamPredictions, &profile.LastRiskLevel,
		&profile.FirstSeen, &profile.LastActivity, &profile.LastUpdated, &profile.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get spam profile by phone hash",
			zap.Error(err),
			zap.String("phone_hash", phoneHash))
		return nil, fmt.Errorf("failed to get spam profile: %w", err)
	}

	return &profile, nil
}

// RecordPrediction upserts the profile row for a caller with the outcome of
// one prediction: the latest risk score, confidence and feature vector
// overwrite the stored ones, while call and spam counters accumulate.
func (r *SpamProfileRepository) RecordPrediction(ctx context.Context, phoneNumber string, prediction *models.PredictionResult, features map[string]float64) (*models.SpamProfile, error) {
	phoneHash := HashPhoneNumber(phoneNumber)
	now := time.Now()

	spamIncrement := 0
	if prediction.IsSpam {
		spamIncrement = 1
	}

	category := "unknown"
	if prediction.IsSpam {
		category = "suspected_spam"
	}

	query := `
		INSERT INTO spam_profiles (
			id, phone_hash, spam_category, risk_score, confidence_level,
			feature_vector, total_calls, spam_predictions, last_risk_level,
			first_seen, last_activity, last_updated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $9, $9, $9)
		ON CONFLICT (phone_hash)
		DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			confidence_level = EXCLUDED.confidence_level,
			feature_vector = EXCLUDED.feature_vector,
			total_calls = spam_profiles.total_calls + 1,
			spam_predictions = spam_profiles.spam_predictions + EXCLUDED.spam_predictions,
			last_risk_level = EXCLUDED.last_risk_level,
			last_activity = EXCLUDED.last_activity,
			last_updated = EXCLUDED.last_updated
		RETURNING id, phone_hash, spam_category, risk_score, confidence_level,
		          feature_vector, total_calls, spam_predictions, last_risk_level,
		          first_seen, last_activity, last_updated, created_at`

	var profile models.SpamProfile
	err := r.db.QueryRow(ctx, query,
		uuid.New(), phoneHash, category, prediction.SpamProbability,
		prediction.ConfidenceScore, features, spamIncrement, prediction.RiskLevel, now,
	).Scan(
		&profile.ID, &profile.PhoneHash, &profile.SpamCategory, &profile.RiskScore,
		&profile.ConfidenceLevel, &profile.FeatureVector, &profile.TotalCalls,
		&profile.SpamPredictions, &profile.LastRiskLevel,
		&profile.FirstSeen, &profile.LastActivity, &profile.LastUpdated, &profile.CreatedAt,
	)

	if err != nil {
		r.logger.Error("failed to record prediction in spam profile",
			zap.Error(err),
			zap.String("phone_hash", phoneHash))
		return nil, fmt.Errorf("failed to record prediction: %w", err)
	}

	return &profile, nil
}

// UpdateCategory reclassifies a profile, typically after a confirmed report
func (r *SpamProfileRepository) UpdateCategory(ctx context.Context, phoneNumber, category string) error {
	phoneHash := HashPhoneNumber(phoneNumber)

	query := `
		UPDATE spam_profiles
		SET spam_category = $2,
		    last_updated = NOW()
		WHERE phone_hash = $1`

	result, err := r.db.Exec(ctx, query, phoneHash, category)
	if err != nil {
		r.logger.Error("failed to update spam profile category",
			zap.Error(err),
			zap.String("phone_hash", phoneHash))
		return fmt.Errorf("failed to update spam profile category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// TopRiskProfiles retrieves the highest-risk profiles active in the last 30 days
func (r *SpamProfileRepository) TopRiskProfiles(ctx context.Context, limit int) ([]models.SpamProfile, error) {
	query := `
		SELECT id, phone_hash, spam_category, risk_score, confidence_level,
		       feature_vector, total_calls, spam_predictions, last_risk_level,
		       first_seen, last_activity, last_updated, created_at
		FROM spam_profiles
		WHERE last_activity > NOW() - INTERVAL '30 days'
		ORDER BY risk_score DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("failed to get top risk profiles", zap.Error(err))
		return nil, fmt.Errorf("failed to get top risk profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.SpamProfile
	for rows.Next() {
		var profile models.SpamProfile
		err := rows.Scan(
			&profile.ID, &profile.PhoneHash, &profile.SpamCategory, &profile.RiskScore,
			&profile.ConfidenceLevel, &profile.FeatureVector, &profile.TotalCalls,
			&profile.SpamPredictions, &profile.LastRiskLevel,
			&profile.FirstSeen, &profile.LastActivity, &profile.LastUpdated, &profile.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan spam profile", zap.Error(err))
			return nil, fmt.Errorf("failed to scan spam profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// CleanupInactive removes low-signal profiles with no recent activity
func (r *SpamProfileRepository) CleanupInactive(ctx context.Context, inactiveDuration time.Duration, batchSize int) (int, error) {
	query := `
		DELETE FROM spam_profiles
		WHERE id IN (
			SELECT id FROM spam_profiles
			WHERE last_activity < $1
			  AND total_calls <= 3
			LIMIT $2
		)`

	cutoffTime := time.Now().Add(-inactiveDuration)
	result, err := r.db.Exec(ctx, query, cutoffTime, batchSize)
	if err != nil {
		r.logger.Error("failed to cleanup inactive spam profiles", zap.Error(err))
		return 0, fmt.Errorf("failed to cleanup inactive spam profiles: %w", err)
	}

	count := int(result.RowsAffected())
	if count > 0 {
		r.logger.Info("cleaned up inactive spam profiles",
			zap.Int("count", count),
			zap.Duration("inactive_duration", inactiveDuration))
	}

	return count, nil
}
