package predictor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/ml/linear"
	"github.com/medibots/ml-platform/pkg/ml/pipeline"
)

func writeArtifact(t *testing.T, path string, d models.Domain) {
	t.Helper()
	rows := []models.Record{
		{"amount": 100.0, "tier": "gold"},
		{"amount": 900.0, "tier": "basic"},
		{"amount": 300.0, "tier": "gold"},
	}
	pre, err := pipeline.FitPreprocessor([]pipeline.ColumnSpec{{Name: "amount", Numeric: true}, {Name: "tier"}}, rows)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	weights := &linear.Weights{Bias: 0.2, Coefficients: make([]float64, pre.Width())}
	weights.Coefficients[0] = 2
	p, err := pipeline.New(d, "flag", pre, pipeline.ClassifierSpec{Algorithm: pipeline.AlgorithmLogistic, Logistic: weights})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestStorePredict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "denial_model.json")
	writeArtifact(t, path, models.DomainDenial)
	store := NewStore(map[models.Domain]string{models.DomainDenial: path})

	result, err := store.Predict(context.Background(), models.DomainDenial, models.Record{"amount": 900.0, "tier": "basic"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if result.Prediction != 1 {
		t.Fatalf("expected label 1 for a large amount, got %d", result.Prediction)
	}
	if result.Probability < 0.5 || result.Probability > 1 {
		t.Fatalf("probability out of range: %v", result.Probability)
	}
}

func TestStoreMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "no_show_model.json")
	if err := os.WriteFile(corrupt, []byte("not an artifact"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewStore(map[models.Domain]string{
		models.DomainDenial: filepath.Join(dir, "missing.json"),
		models.DomainNoShow: corrupt,
	})

	_, err := store.Predict(context.Background(), models.DomainDenial, models.Record{})
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = store.Predict(context.Background(), models.DomainNoShow, models.Record{})
	if !errors.Is(err, ErrArtifactCorrupt) {
		t.Fatalf("expected corrupt, got %v", err)
	}
	_, err = store.Predict(context.Background(), models.DomainPaymentDelay, models.Record{})
	if !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("expected unknown domain, got %v", err)
	}
	if loaded := store.Preload(); loaded != 0 {
		t.Fatalf("expected nothing preloaded, got %d", loaded)
	}
}

func TestStoreRejectsForeignDomainArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path, models.DomainNoShow)
	store := NewStore(map[models.Domain]string{models.DomainDenial: path})
	if _, err := store.Get(models.DomainDenial); !errors.Is(err, ErrArtifactCorrupt) {
		t.Fatalf("expected corrupt for mismatched domain, got %v", err)
	}
}

func TestStoreCachesWithoutInvalidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "denial_model.json")
	writeArtifact(t, path, models.DomainDenial)
	store := NewStore(map[models.Domain]string{models.DomainDenial: path})

	var wg sync.WaitGroup
	got := make([]*pipeline.Pipeline, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := store.Get(models.DomainDenial)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			got[i] = p
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(got); i++ {
		if got[i] != got[0] {
			t.Fatal("concurrent loads returned different pipelines")
		}
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Get(models.DomainDenial); err != nil {
		t.Fatalf("cached artifact should survive file removal: %v", err)
	}

	infos := store.Models()
	if len(infos) != 1 || !infos[0].Loaded || infos[0].Algorithm != pipeline.AlgorithmLogistic {
		t.Fatalf("unexpected model info %+v", infos)
	}
	if len(infos[0].FeatureNames) != 2 {
		t.Fatalf("expected two input columns, got %v", infos[0].FeatureNames)
	}
}
