package training

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RunModel{})
}

// Start records a running job and returns its id.
func (r *Repository) Start(ctx context.Context, job Job, algorithm string) (uuid.UUID, error) {
	now := time.Now().UTC()
	run := &RunModel{
		ID:               uuid.New(),
		Domain:           job.Domain.String(),
		Dataset:          job.Dataset,
		Algorithm:        algorithm,
		Status:           StatusRunning,
		ModelPath:        job.ModelPath,
		PreprocessorPath: job.PreprocessorPath,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return uuid.Nil, err
	}
	return run.ID, nil
}

// Finish marks a run completed with its report, or failed when runErr is set.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, report Report, runErr error) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       StatusCompleted,
		"updated_at":   now,
		"completed_at": now,
	}
	if runErr != nil {
		updates["status"] = StatusFailed
		updates["error_message"] = runErr.Error()
	} else {
		metrics := make(map[string]interface{}, len(report.Metrics)+4)
		for k, v := range report.Metrics {
			metrics[k] = v
		}
		metrics["rows"] = report.Rows
		metrics["train_rows"] = report.TrainRows
		metrics["test_rows"] = report.TestRows
		metrics["skipped_rows"] = report.SkippedRows
		updates["metrics"] = datatypes.JSONMap(metrics)
		updates["dataset"] = report.Dataset
	}
	return r.db.WithContext(ctx).Model(&RunModel{}).Where("id = ?", id).Updates(updates).Error
}

// List returns the latest runs, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunModel
	result := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs)
	return runs, result.Error
}
