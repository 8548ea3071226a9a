package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"profile-analytics/internal/config"
	"profile-analytics/internal/models"
)

// WhitelistClient pushes analysis outcomes to the smart-whitelist service so
// confirmed spam numbers are blocked before the next call is screened
type WhitelistClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	apiKey     string
}

// SpamReport is the payload for reporting a high-risk caller
type SpamReport struct {
	UserID          uuid.UUID        `json:"user_id"`
	CallerPhone     string           `json:"caller_phone"`
	SpamProbability float64          `json:"spam_probability"`
	RiskLevel       models.RiskLevel `json:"risk_level"`
	ModelUsed       string           `json:"model_used"`
	ReportedAt      time.Time        `json:"reported_at"`
}

// NewWhitelistClient creates a new smart-whitelist service client
func NewWhitelistClient(cfg *config.Config, logger *zap.Logger) *WhitelistClient {
	return &WhitelistClient{
		baseURL: cfg.Integration.WhitelistServiceURL,
		httpClient: &http.Client{
			Timeout: cfg.Integration.RequestTimeout,
		},
		logger: logger,
		apiKey: cfg.Integration.WhitelistServiceAPIKey,
	}
}

// ReportSpam notifies the whitelist service of a high-risk prediction.
// Failures are logged and swallowed: blocking propagation must never fail
// the call analysis that produced it.
func (c *WhitelistClient) ReportSpam(ctx context.Context, report *SpamReport) error {
	url := fmt.Sprintf("%s/api/v1/whitelist/spam-reports", c.baseURL)

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal spam report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to report spam to whitelist service",
			zap.Error(err),
			zap.String("user_id", report.UserID.String()))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Warn("unexpected response from whitelist service",
			zap.Int("status_code", resp.StatusCode),
			zap.String("user_id", report.UserID.String()))
		return nil
	}

	c.logger.Debug("spam report delivered",
		zap.String("user_id", report.UserID.String()),
		zap.String("risk_level", string(report.RiskLevel)))

	return nil
}

// HealthCheck checks the health of the whitelist service
func (c *WhitelistClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whitelist service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// Close closes the client
func (c *WhitelistClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
