package models

import (
	"encoding/json"
	"math"
	"time"
)

// Record is a loosely typed field mapping as received from clients or
// produced by normalization.
type Record map[string]interface{}

// PredictionResult carries the predicted label and the probability of that
// label, both taken from the same inference pass.
type PredictionResult struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

const StatsSourceDefault = "default"

// HistoricalStats holds baseline outcome rates for a domain. Good is the
// favourable outcome (accepted, paid on time, attended).
type HistoricalStats struct {
	Domain    Domain
	GoodRate  float64
	BadRate   float64
	Total     int
	GoodCount int
	BadCount  int
	Source    string
}

func (s HistoricalStats) IsDefault() bool {
	return s.Source == StatsSourceDefault
}

// Map renders the stats under the domain specific keys.
func (s HistoricalStats) Map() map[string]interface{} {
	spec, ok := s.Domain.Spec()
	if !ok {
		return map[string]interface{}{
			"good_rate": s.GoodRate,
			"bad_rate":  s.BadRate,
			"total":     s.Total,
			"source":    s.Source,
		}
	}
	out := map[string]interface{}{
		spec.GoodRateKey: s.GoodRate,
		spec.BadRateKey:  s.BadRate,
		spec.TotalKey:    s.Total,
		"source":         s.Source,
	}
	if !s.IsDefault() {
		out[spec.GoodCountKey] = s.GoodCount
		out[spec.BadCountKey] = s.BadCount
	}
	return out
}

func (s HistoricalStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// DefaultStats returns the static baseline used when no reference data exists.
func DefaultStats(d Domain) HistoricalStats {
	spec, ok := d.Spec()
	if !ok {
		return HistoricalStats{Domain: d, Source: StatsSourceDefault}
	}
	return spec.Default
}

// InsightResponse is the combined prediction, baseline and explanation.
type InsightResponse struct {
	Domain        Domain
	Prediction    int
	Probability   float64
	GoodPct       float64
	BadPct        float64
	Stats         HistoricalStats
	Insights      string
	InsightSource string
}

// NewInsightResponse derives the percentage fields from a prediction. The
// probability belongs to the predicted label, so the favourable share is
// p when the label is 0 and 1-p otherwise.
func NewInsightResponse(d Domain, result PredictionResult, stats HistoricalStats, text, source string) InsightResponse {
	good := result.Probability * 100
	if result.Prediction == 1 {
		good = (1 - result.Probability) * 100
	}
	return InsightResponse{
		Domain:        d,
		Prediction:    result.Prediction,
		Probability:   result.Probability,
		GoodPct:       Round(good, 1),
		BadPct:        Round(100-good, 1),
		Stats:         stats,
		Insights:      text,
		InsightSource: source,
	}
}

func (r InsightResponse) MarshalJSON() ([]byte, error) {
	goodKey, badKey := "good_rate_pct", "bad_rate_pct"
	if spec, ok := r.Domain.Spec(); ok {
		goodKey, badKey = spec.GoodPctKey, spec.BadPctKey
	}
	return json.Marshal(map[string]interface{}{
		"prediction":       r.Prediction,
		"probability":      r.Probability,
		goodKey:            r.GoodPct,
		badKey:             r.BadPct,
		"historical_stats": r.Stats,
		"insights":         r.Insights,
		"insights_source":  r.InsightSource,
	})
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Event bus envelope
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// ModelInfo describes a model artifact known to the serving process.
type ModelInfo struct {
	Domain       Domain    `json:"domain"`
	Path         string    `json:"path"`
	Loaded       bool      `json:"loaded"`
	Algorithm    string    `json:"algorithm,omitempty"`
	FeatureNames []string  `json:"feature_names,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}
