package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/medibots/ml-platform/pkg/common/config"
	"github.com/medibots/ml-platform/pkg/common/database"
	"github.com/medibots/ml-platform/pkg/common/kafka"
	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/serving"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	logger.Init("prediction-audit")
	cfg := config.Load()

	if !cfg.KafkaEnabled() {
		logger.Log.Fatal("KAFKA_BROKERS must be set for the prediction audit consumer")
	}

	db, err := database.OpenPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.ClosePostgres(db)

	repo := serving.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate prediction_logs")
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.PredictionTopic, cfg.KafkaGroupID, serving.EventPrediction)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.WithFields(map[string]interface{}{
		"topic": cfg.PredictionTopic,
		"group": cfg.KafkaGroupID,
	}).Info("Prediction audit consumer started")

	err = consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
		err := repo.RecordEvent(ctx, event)
		if errors.Is(err, serving.ErrInvalidEvent) {
			return kafka.Discard(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		// exit non-zero so the supervisor restarts and the group redelivers
		logger.Log.WithError(err).Fatal("Consumer stopped")
	}
	logger.Log.Info("Prediction audit consumer stopped")
}
