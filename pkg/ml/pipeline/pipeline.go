// Package pipeline holds the persisted model artifact: a fitted
// preprocessing stage followed by a classifier, serialized as JSON.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/ml/forest"
	"github.com/medibots/ml-platform/pkg/ml/linear"
)

const (
	AlgorithmRandomForest = "random_forest"
	AlgorithmLogistic     = "logistic"
)

// Classifier returns one probability per class for an encoded sample.
type Classifier interface {
	PredictProba(x []float64) []float64
}

type ClassifierSpec struct {
	Algorithm string          `json:"algorithm"`
	Forest    *forest.Forest  `json:"forest,omitempty"`
	Logistic  *linear.Weights `json:"logistic,omitempty"`
}

func (c ClassifierSpec) resolve(width int) (Classifier, error) {
	switch c.Algorithm {
	case AlgorithmRandomForest:
		if c.Forest == nil {
			return nil, errors.New("random_forest artifact without trees")
		}
		if err := c.Forest.Validate(width); err != nil {
			return nil, err
		}
		return c.Forest, nil
	case AlgorithmLogistic:
		if c.Logistic == nil {
			return nil, errors.New("logistic artifact without weights")
		}
		if err := c.Logistic.Validate(width); err != nil {
			return nil, err
		}
		return *c.Logistic, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", c.Algorithm)
	}
}

// Pipeline is a fitted model bound to one domain.
type Pipeline struct {
	Domain       models.Domain      `json:"domain"`
	Target       string             `json:"target"`
	CreatedAt    time.Time          `json:"created_at"`
	Preprocessor *Preprocessor      `json:"preprocessor"`
	Classifier   ClassifierSpec     `json:"classifier"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`

	clf Classifier
}

func New(domain models.Domain, target string, pre *Preprocessor, spec ClassifierSpec) (*Pipeline, error) {
	p := &Pipeline{
		Domain:       domain,
		Target:       target,
		CreatedAt:    time.Now().UTC(),
		Preprocessor: pre,
		Classifier:   spec,
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) init() error {
	if p.Preprocessor == nil {
		return errors.New("artifact has no preprocessor")
	}
	if err := p.Preprocessor.validate(); err != nil {
		return err
	}
	clf, err := p.Classifier.resolve(p.Preprocessor.Width())
	if err != nil {
		return err
	}
	p.clf = clf
	return nil
}

// Predict runs one inference pass. The label is the most probable class and
// the reported probability is that class's posterior.
func (p *Pipeline) Predict(row models.Record) (models.PredictionResult, error) {
	probs, err := p.PredictProba(row)
	if err != nil {
		return models.PredictionResult{}, err
	}
	if len(probs) != 2 {
		return models.PredictionResult{}, fmt.Errorf("expected binary classifier, got %d classes", len(probs))
	}
	label := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[label] {
			label = c
		}
	}
	return models.PredictionResult{
		Prediction:  label,
		Probability: clamp01(probs[label]),
	}, nil
}

func (p *Pipeline) PredictProba(row models.Record) ([]float64, error) {
	if p.clf == nil {
		if err := p.init(); err != nil {
			return nil, err
		}
	}
	x, err := p.Preprocessor.Transform(row)
	if err != nil {
		return nil, err
	}
	return p.clf.PredictProba(x), nil
}

func (p *Pipeline) FeatureNames() []string {
	if p.Preprocessor == nil {
		return nil
	}
	return p.Preprocessor.Columns()
}

// Decode reads and validates an artifact.
func Decode(r io.Reader) (*Pipeline, error) {
	var p Pipeline
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pipeline) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(p)
}

// Save writes the artifact atomically.
func (p *Pipeline) Save(path string) error {
	return writeJSON(path, p)
}

// SavePreprocessor persists the preprocessing stage on its own.
func SavePreprocessor(path string, pre *Preprocessor) error {
	return writeJSON(path, pre)
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
