package serving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medibots/ml-platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInvalidEvent marks events that can never be recorded.
var ErrInvalidEvent = errors.New("invalid prediction event")

// PredictionLog is the persistence model for audited predictions.
type PredictionLog struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	EventID       string            `gorm:"column:event_id;uniqueIndex"`
	Domain        string            `gorm:"column:domain;index"`
	Request       datatypes.JSONMap `gorm:"column:request"`
	Features      datatypes.JSONMap `gorm:"column:features"`
	Prediction    int               `gorm:"column:prediction"`
	Probability   float64           `gorm:"column:probability"`
	InsightSource string            `gorm:"column:insight_source"`
	LatencyMs     float64           `gorm:"column:latency_ms"`
	RequestID     string            `gorm:"column:request_id"`
	CreatedAt     time.Time         `gorm:"column:created_at;index"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// Repository handles prediction logs queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

// PredictionLogFromEvent maps a prediction event onto a log row.
func PredictionLogFromEvent(event models.Event) (PredictionLog, error) {
	if event.Type != EventPrediction {
		return PredictionLog{}, fmt.Errorf("%w: unexpected event type %q", ErrInvalidEvent, event.Type)
	}
	domain, _ := event.Data["domain"].(string)
	if domain == "" {
		return PredictionLog{}, fmt.Errorf("%w: missing domain", ErrInvalidEvent)
	}

	log := PredictionLog{
		ID:        uuid.New(),
		EventID:   event.ID,
		Domain:    domain,
		CreatedAt: event.Timestamp,
	}
	if log.EventID == "" {
		log.EventID = log.ID.String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if input, ok := event.Data["input"].(map[string]interface{}); ok {
		log.Request = datatypes.JSONMap(input)
	}
	if features, ok := event.Data["features"].(map[string]interface{}); ok {
		log.Features = datatypes.JSONMap(features)
	}
	if v, ok := event.Data["prediction"].(float64); ok {
		log.Prediction = int(v)
	}
	log.Probability, _ = event.Data["probability"].(float64)
	log.LatencyMs, _ = event.Data["latency_ms"].(float64)
	log.InsightSource, _ = event.Data["insight_source"].(string)
	log.RequestID, _ = event.Data["request_id"].(string)
	return log, nil
}

// RecordEvent persists one prediction event. Redelivered events are ignored.
func (r *Repository) RecordEvent(ctx context.Context, event models.Event) error {
	log, err := PredictionLogFromEvent(event)
	if err != nil {
		return err
	}
	if event.ID != "" {
		var count int64
		if err := r.db.WithContext(ctx).Model(&PredictionLog{}).Where("event_id = ?", event.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
	}
	return r.db.WithContext(ctx).Create(&log).Error
}
