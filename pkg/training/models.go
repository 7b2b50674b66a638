package training

import (
	"time"

	"github.com/google/uuid"
	"github.com/medibots/ml-platform/pkg/common/models"
	"gorm.io/datatypes"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunModel is one recorded training run.
type RunModel struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Domain           string            `gorm:"column:domain;index"`
	Dataset          string            `gorm:"column:dataset"`
	Algorithm        string            `gorm:"column:algorithm"`
	Status           string            `gorm:"column:status"`
	Metrics          datatypes.JSONMap `gorm:"column:metrics"`
	ModelPath        string            `gorm:"column:model_path"`
	PreprocessorPath string            `gorm:"column:preprocessor_path"`
	ErrorMessage     string            `gorm:"column:error_message"`
	CreatedAt        time.Time         `gorm:"column:created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at"`
	CompletedAt      *time.Time        `gorm:"column:completed_at"`
}

func (RunModel) TableName() string {
	return "training_runs"
}

// Job names the inputs and outputs of training one domain.
type Job struct {
	Domain           models.Domain
	Dataset          string
	ModelPath        string
	PreprocessorPath string
}

// Report summarizes a finished run.
type Report struct {
	Domain           models.Domain      `json:"domain"`
	Dataset          string             `json:"dataset"`
	Algorithm        string             `json:"algorithm"`
	Rows             int                `json:"rows"`
	TrainRows        int                `json:"train_rows"`
	TestRows         int                `json:"test_rows"`
	SkippedRows      int                `json:"skipped_rows"`
	RepairedLabels   bool               `json:"repaired_labels"`
	Metrics          map[string]float64 `json:"metrics"`
	ModelPath        string             `json:"model_path"`
	PreprocessorPath string             `json:"preprocessor_path"`
}
