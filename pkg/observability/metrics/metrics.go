package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medibots",
		Subsystem: "ml",
		Name:      "predictions_total",
		Help:      "Predictions served, by domain and outcome.",
	}, []string{"domain", "outcome"})

	predictionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medibots",
		Subsystem: "ml",
		Name:      "prediction_duration_seconds",
		Help:      "Time spent normalizing, validating and scoring one record.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"domain"})

	insights = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medibots",
		Subsystem: "ml",
		Name:      "insights_total",
		Help:      "Insight texts composed, by domain, source and fallback reason.",
	}, []string{"domain", "source", "reason"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medibots",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by method, route template and status code.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medibots",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route template.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	statsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medibots",
		Subsystem: "ml",
		Name:      "historical_stats_total",
		Help:      "Historical stats lookups, by domain and whether defaults were used.",
	}, []string{"domain", "source"})
)

// ObservePrediction records one prediction attempt. outcome is a short
// label such as "ok", "invalid", "schema_mismatch" or "artifact_missing".
func ObservePrediction(domain, outcome string, elapsed time.Duration) {
	predictions.WithLabelValues(domain, outcome).Inc()
	if outcome == "ok" {
		predictionLatency.WithLabelValues(domain).Observe(elapsed.Seconds())
	}
}

func ObserveInsight(domain, source, reason string) {
	insights.WithLabelValues(domain, source, reason).Inc()
}

func ObserveStats(domain string, fromDefaults bool) {
	source := "dataset"
	if fromDefaults {
		source = "default"
	}
	statsServed.WithLabelValues(domain, source).Inc()
}

func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
