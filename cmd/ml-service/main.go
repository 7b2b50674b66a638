package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/medibots/ml-platform/pkg/common/config"
	"github.com/medibots/ml-platform/pkg/common/database"
	"github.com/medibots/ml-platform/pkg/common/kafka"
	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/dlp"
	"github.com/medibots/ml-platform/pkg/gateway/middleware"
	"github.com/medibots/ml-platform/pkg/insights"
	"github.com/medibots/ml-platform/pkg/normalizer"
	"github.com/medibots/ml-platform/pkg/observability/metrics"
	"github.com/medibots/ml-platform/pkg/serving"
	"github.com/medibots/ml-platform/pkg/serving/predictor"
	"github.com/medibots/ml-platform/pkg/stats"
	"github.com/medibots/ml-platform/pkg/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	logger.Init("ml-service")
	cfg := config.Load()

	contracts, err := normalizer.LoadContracts(cfg.FieldContractsPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load field contracts")
	}

	installDir := storage.InstallDir()
	store := predictor.NewStore(cfg.ModelPaths(), installDir)
	if cfg.PreloadModels {
		loaded := store.Preload()
		logger.Log.WithField("loaded", loaded).Info("Model artifacts preloaded")
	}

	provider := stats.NewProvider(cfg.DatasetPaths(), installDir)
	if cfg.StatsCacheTTL > 0 {
		redisClient, err := database.OpenRedis(context.Background(), cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Stats cache disabled")
		} else {
			defer redisClient.Close()
			provider = provider.WithCache(storage.NewStatsCache(redisClient, cfg.StatsCacheTTL))
		}
	}

	composer := insights.NewComposerFromConfig(cfg)
	if !composer.RemoteEnabled() {
		logger.Log.Info("No insight credential configured, using template insights")
	}

	service := serving.NewService(contracts, store, provider, composer)
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PredictionTopic)
		defer producer.Close()
		service.WithEvents(producer)

		rules, err := dlp.LoadRules(cfg.RedactionRulesPath)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to load redaction rules")
		}
		redactor, err := dlp.NewRedactor(rules)
		if err != nil {
			logger.Log.WithError(err).Fatal("Invalid redaction rules")
		}
		service.WithRedactor(redactor)
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS,
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		middleware.BodyLimit(cfg.MaxRequestBody))
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	serving.NewHTTPHandler(service, cfg.MaxRequestBody).Register(router)
	// CORS preflight needs a matching route
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("ML Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down ML Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	service.Wait()

	logger.Log.Info("ML Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
