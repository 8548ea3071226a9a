package monitoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditLogger keeps an in-memory trail of model lifecycle and data access
// events for compliance review
type AuditLogger struct {
	logger     *zap.Logger
	buffer     chan *AuditEvent
	bufferSize int

	mu        sync.RWMutex
	events    []*AuditEvent
	maxEvents int

	handlers map[AuditEventType][]AuditEventHandler
}

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Prediction events
	EventCallAnalysis      AuditEventType = "call_analysis"
	EventHighRiskDetection AuditEventType = "high_risk_detection"
	EventDegradedAnalysis  AuditEventType = "degraded_analysis"

	// Model lifecycle events
	EventModelTraining   AuditEventType = "model_training"
	EventModelUpdate     AuditEventType = "model_update"
	EventModelEvaluation AuditEventType = "model_evaluation"
	EventModelPersist    AuditEventType = "model_persist"
	EventModelRestore    AuditEventType = "model_restore"

	// Data access events
	EventProfileAccess AuditEventType = "profile_access"
	EventProfileUpdate AuditEventType = "profile_update"
	EventProfileDelete AuditEventType = "profile_delete"

	// System events
	EventSystemStart  AuditEventType = "system_start"
	EventSystemStop   AuditEventType = "system_stop"
	EventConfigChange AuditEventType = "config_change"
)

// AuditEvent represents a single audit event
type AuditEvent struct {
	ID        string         `json:"id"`
	Type      AuditEventType `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  string         `json:"severity"` // "low", "medium", "high", "critical"

	// Who triggered the event
	ActorID   string `json:"actor_id,omitempty"`
	ActorType string `json:"actor_type,omitempty"` // "user", "system", "service"

	// What was acted upon (model name, hashed phone, profile id)
	ResourceID   string `json:"resource_id,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`

	Action      string                 `json:"action"`
	Status      string                 `json:"status"` // "success", "failure"
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`

	// Phone numbers and transcripts never land in the trail directly; only
	// their hash does
	SensitiveData bool   `json:"sensitive_data,omitempty"`
	DataHash      string `json:"data_hash,omitempty"`
	Checksum      string `json:"checksum"`
}

// AuditEventHandler is a function that handles audit events
type AuditEventHandler func(*AuditEvent)

// AuditQuery represents a query for audit events
type AuditQuery struct {
	StartTime  *time.Time       `json:"start_time,omitempty"`
	EndTime    *time.Time       `json:"end_time,omitempty"`
	EventTypes []AuditEventType `json:"event_types,omitempty"`
	ActorID    *string          `json:"actor_id,omitempty"`
	ResourceID *string          `json:"resource_id,omitempty"`
	Severity   []string         `json:"severity,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	al := &AuditLogger{
		logger:     logger,
		bufferSize: 1000,
		maxEvents:  50000,
		events:     make([]*AuditEvent, 0),
		handlers:   make(map[AuditEventType][]AuditEventHandler),
	}

	al.buffer = make(chan *AuditEvent, al.bufferSize)
	go al.processEvents()

	logger.Info("audit logger initialized",
		zap.Int("buffer_size", al.bufferSize),
		zap.Int("max_events", al.maxEvents))

	return al
}

// LogEvent starts building an audit event
func (al *AuditLogger) LogEvent(eventType AuditEventType, action, description string) *AuditEventBuilder {
	return &AuditEventBuilder{
		auditLogger: al,
		event: &AuditEvent{
			ID:          uuid.New().String(),
			Type:        eventType,
			Timestamp:   time.Now(),
			Action:      action,
			Description: description,
			Severity:    "medium",
			Status:      "success",
			Details:     make(map[string]interface{}),
		},
	}
}

// QueryEvents queries audit events based on criteria
func (al *AuditLogger) QueryEvents(query *AuditQuery) ([]*AuditEvent, error) {
	al.mu.RLock()
	defer al.mu.RUnlock()

	filtered := make([]*AuditEvent, 0)
	for _, event := range al.events {
		if al.matchesQuery(event, query) {
			filtered = append(filtered, event)
		}
	}

	if query.Offset > 0 && query.Offset < len(filtered) {
		filtered = filtered[query.Offset:]
	}
	if query.Limit > 0 && query.Limit < len(filtered) {
		filtered = filtered[:query.Limit]
	}

	return filtered, nil
}

// HighRiskDetections returns recent high-risk classification events
func (al *AuditLogger) HighRiskDetections(since time.Time) ([]*AuditEvent, error) {
	return al.QueryEvents(&AuditQuery{
		StartTime:  &since,
		EventTypes: []AuditEventType{EventHighRiskDetection},
	})
}

// ModelLifecycle returns training, update and persistence events
func (al *AuditLogger) ModelLifecycle(since time.Time) ([]*AuditEvent, error) {
	return al.QueryEvents(&AuditQuery{
		StartTime: &since,
		EventTypes: []AuditEventType{
			EventModelTraining,
			EventModelUpdate,
			EventModelEvaluation,
			EventModelPersist,
			EventModelRestore,
		},
	})
}

// RegisterHandler registers an event handler for a specific event type
func (al *AuditLogger) RegisterHandler(eventType AuditEventType, handler AuditEventHandler) {
	al.mu.Lock()
	defer al.mu.Unlock()
	al.handlers[eventType] = append(al.handlers[eventType], handler)
}

// Close gracefully shuts down the audit logger
func (al *AuditLogger) Close() error {
	close(al.buffer)
	al.logger.Info("audit logger closed")
	return nil
}

// AuditEventBuilder provides a fluent interface for building audit events
type AuditEventBuilder struct {
	auditLogger *AuditLogger
	event       *AuditEvent
}

// Actor sets the actor information
func (b *AuditEventBuilder) Actor(actorID, actorType string) *AuditEventBuilder {
	b.event.ActorID = actorID
	b.event.ActorType = actorType
	return b
}

// Resource sets the resource information
func (b *AuditEventBuilder) Resource(resourceID, resourceType string) *AuditEventBuilder {
	b.event.ResourceID = resourceID
	b.event.ResourceType = resourceType
	return b
}

// Severity sets the event severity
func (b *AuditEventBuilder) Severity(severity string) *AuditEventBuilder {
	b.event.Severity = severity
	return b
}

// Status sets the event status
func (b *AuditEventBuilder) Status(status string) *AuditEventBuilder {
	b.event.Status = status
	return b
}

// Detail adds a detail field
func (b *AuditEventBuilder) Detail(key string, value interface{}) *AuditEventBuilder {
	b.event.Details[key] = value
	return b
}

// SensitiveData marks the event as involving sensitive data and records a
// hash of it instead of the data itself
func (b *AuditEventBuilder) SensitiveData(dataToHash interface{}) *AuditEventBuilder {
	b.event.SensitiveData = true

	if dataToHash != nil {
		if data, err := json.Marshal(dataToHash); err == nil {
			hash := sha256.Sum256(data)
			b.event.DataHash = hex.EncodeToString(hash[:])
		}
	}

	return b
}

// Commit commits the audit event
func (b *AuditEventBuilder) Commit() {
	b.event.Checksum = b.generateChecksum()

	select {
	case b.auditLogger.buffer <- b.event:
	default:
		b.auditLogger.logger.Warn("audit event buffer full, dropping event",
			zap.String("event_id", b.event.ID),
			zap.String("event_type", string(b.event.Type)))
	}
}

func (al *AuditLogger) processEvents() {
	for event := range al.buffer {
		al.storeEvent(event)
		al.callHandlers(event)
	}
}

func (al *AuditLogger) storeEvent(event *AuditEvent) {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.events = append(al.events, event)

	if len(al.events) > al.maxEvents {
		// Keep the most recent half
		al.events = al.events[len(al.events)-al.maxEvents/2:]
	}
}

func (al *AuditLogger) callHandlers(event *AuditEvent) {
	al.mu.RLock()
	handlers := al.handlers[event.Type]
	al.mu.RUnlock()

	for _, handler := range handlers {
		go func(h AuditEventHandler, e *AuditEvent) {
			defer func() {
				if r := recover(); r != nil {
					al.logger.Error("audit event handler panicked",
						zap.Any("panic", r),
						zap.String("event_id", e.ID))
				}
			}()
			h(e)
		}(handler, event)
	}
}

func (al *AuditLogger) matchesQuery(event *AuditEvent, query *AuditQuery) bool {
	if query.StartTime != nil && event.Timestamp.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && event.Timestamp.After(*query.EndTime) {
		return false
	}

	if len(query.EventTypes) > 0 {
		found := false
		for _, eventType := range query.EventTypes {
			if event.Type == eventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if query.ActorID != nil && event.ActorID != *query.ActorID {
		return false
	}
	if query.ResourceID != nil && event.ResourceID != *query.ResourceID {
		return false
	}

	if len(query.Severity) > 0 {
		found := false
		for _, severity := range query.Severity {
			if event.Severity == severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func (b *AuditEventBuilder) generateChecksum() string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		b.event.ID,
		string(b.event.Type),
		b.event.Timestamp.Format(time.RFC3339Nano),
		b.event.ActorID,
		b.event.Action,
		b.event.Status)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
