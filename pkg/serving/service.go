package serving

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/dlp"
	"github.com/medibots/ml-platform/pkg/gateway/middleware"
	"github.com/medibots/ml-platform/pkg/insights"
	"github.com/medibots/ml-platform/pkg/ml/pipeline"
	"github.com/medibots/ml-platform/pkg/normalizer"
	"github.com/medibots/ml-platform/pkg/observability/metrics"
	"github.com/medibots/ml-platform/pkg/serving/predictor"
)

const (
	EventPrediction = "prediction"
	eventSource     = "ml-service"
	publishTimeout  = 5 * time.Second
)

type Predictor interface {
	Predict(ctx context.Context, d models.Domain, rec models.Record) (models.PredictionResult, error)
	Models() []models.ModelInfo
}

type StatsProvider interface {
	StatsFor(ctx context.Context, d models.Domain) models.HistoricalStats
}

type InsightComposer interface {
	Compose(ctx context.Context, d models.Domain, rec models.Record, result models.PredictionResult, stats models.HistoricalStats) insights.Insight
}

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service runs the predict, stats and insight flows for every domain.
type Service struct {
	contracts normalizer.Contracts
	predictor Predictor
	stats     StatsProvider
	composer  InsightComposer
	events    EventPublisher
	redactor  *dlp.Redactor
	inflight  sync.WaitGroup
}

func NewService(contracts normalizer.Contracts, p Predictor, stats StatsProvider, composer InsightComposer) *Service {
	return &Service{
		contracts: contracts,
		predictor: p,
		stats:     stats,
		composer:  composer,
	}
}

// WithEvents publishes a prediction event after every successful
// prediction. Publication happens off the request path.
func (s *Service) WithEvents(events EventPublisher) *Service {
	s.events = events
	return s
}

// WithRedactor masks personal data in the request copy carried by events.
func (s *Service) WithRedactor(r *dlp.Redactor) *Service {
	s.redactor = r
	return s
}

type scored struct {
	normalized models.Record
	features   models.Record
	result     models.PredictionResult
	elapsed    time.Duration
}

func (s *Service) score(ctx context.Context, d models.Domain, raw models.Record) (scored, error) {
	start := time.Now()
	contract, ok := s.contracts.For(d)
	if !ok {
		metrics.ObservePrediction(d.String(), "unknown_domain", 0)
		return scored{}, fmt.Errorf("%w: %s", predictor.ErrUnknownDomain, d)
	}

	normalized := normalizer.Normalize(raw)
	features, err := contract.Apply(normalized)
	if err != nil {
		metrics.ObservePrediction(d.String(), "invalid", 0)
		return scored{}, err
	}

	result, err := s.predictor.Predict(ctx, d, features)
	elapsed := time.Since(start)
	metrics.ObservePrediction(d.String(), outcome(err), elapsed)
	if err != nil {
		return scored{}, err
	}
	return scored{normalized: normalized, features: features, result: result, elapsed: elapsed}, nil
}

func (s *Service) Predict(ctx context.Context, d models.Domain, raw models.Record) (models.PredictionResult, error) {
	sc, err := s.score(ctx, d, raw)
	if err != nil {
		return models.PredictionResult{}, err
	}
	s.publish(ctx, d, sc, "")
	return sc.result, nil
}

// Stats never fails; unknown domains get their zero defaults.
func (s *Service) Stats(ctx context.Context, d models.Domain) models.HistoricalStats {
	stats := s.stats.StatsFor(ctx, d)
	metrics.ObserveStats(d.String(), stats.IsDefault())
	return stats
}

// PredictWithInsights fails only when the prediction itself fails.
func (s *Service) PredictWithInsights(ctx context.Context, d models.Domain, raw models.Record) (models.InsightResponse, error) {
	sc, err := s.score(ctx, d, raw)
	if err != nil {
		return models.InsightResponse{}, err
	}
	stats := s.Stats(ctx, d)
	insight := s.composer.Compose(ctx, d, sc.normalized, sc.result, stats)
	metrics.ObserveInsight(d.String(), insight.Source, string(insight.Reason))

	s.publish(ctx, d, sc, insight.Source)
	return models.NewInsightResponse(d, sc.result, stats, insight.Text, insight.Source), nil
}

func (s *Service) ListModels() []models.ModelInfo {
	return s.predictor.Models()
}

func (s *Service) publish(ctx context.Context, d models.Domain, sc scored, insightSource string) {
	if s.events == nil {
		return
	}
	data := map[string]interface{}{
		"domain":      d.String(),
		"prediction":  sc.result.Prediction,
		"probability": sc.result.Probability,
		"input":       s.redactor.Redact(sc.normalized),
		"features":    map[string]interface{}(sc.features),
		"latency_ms":  float64(sc.elapsed.Microseconds()) / 1000.0,
		"request_id":  middleware.RequestID(ctx),
	}
	if insightSource != "" {
		data["insight_source"] = insightSource
	}
	if found := s.redactor.Findings(sc.normalized); len(found) > 0 {
		data["redactions"] = found
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.events.PublishEvent(ctx, EventPrediction, eventSource, data); err != nil {
			logger.Log.WithError(err).WithField("domain", d).Warn("prediction event not published")
		}
	}()
}

// Wait blocks until pending event publications finish.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pipeline.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, predictor.ErrArtifactNotFound):
		return "artifact_missing"
	case errors.Is(err, predictor.ErrArtifactCorrupt):
		return "artifact_corrupt"
	default:
		return "error"
	}
}
