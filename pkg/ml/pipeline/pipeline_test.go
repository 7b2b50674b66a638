package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/ml/forest"
)

func trainingRows() []models.Record {
	var rows []models.Record
	for i := 0; i < 40; i++ {
		tier, base := "gold", 1000
		if i%2 == 1 {
			tier, base = "basic", 5000
		}
		var amount interface{} = float64(base + i*10)
		if i == 3 {
			amount = nil
		}
		rows = append(rows, models.Record{"amount": amount, "tier": tier})
	}
	return rows
}

func fitPipeline(t *testing.T) *Pipeline {
	t.Helper()
	rows := trainingRows()
	pre, err := FitPreprocessor([]ColumnSpec{{Name: "amount", Numeric: true}, {Name: "tier"}}, rows)
	if err != nil {
		t.Fatalf("fit preprocessor: %v", err)
	}

	var x [][]float64
	var y []int
	for i, row := range rows {
		v, err := pre.Transform(row)
		if err != nil {
			t.Fatalf("transform: %v", err)
		}
		x = append(x, v)
		y = append(y, i%2)
	}
	f, err := forest.Train(x, y, 2, forest.Options{Trees: 10, Seed: 42})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	p, err := New(models.DomainDenial, "denial_flag", pre, ClassifierSpec{Algorithm: AlgorithmRandomForest, Forest: f})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestPreprocessorImputesAndEncodes(t *testing.T) {
	pre, err := FitPreprocessor([]ColumnSpec{{Name: "amount", Numeric: true}, {Name: "tier"}}, trainingRows())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if pre.Width() != 3 {
		t.Fatalf("expected width 3, got %d", pre.Width())
	}
	x, err := pre.Transform(models.Record{"amount": nil, "tier": "platinum"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if x[1] != 0 || x[2] != 0 {
		t.Fatalf("unseen category should encode as zeros, got %v", x)
	}
}

func TestPredictSinglePass(t *testing.T) {
	p := fitPipeline(t)
	result, err := p.Predict(models.Record{"amount": 5200.0, "tier": "basic"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if result.Prediction != 0 && result.Prediction != 1 {
		t.Fatalf("unexpected label %d", result.Prediction)
	}
	if result.Probability < 0.5 || result.Probability > 1 {
		t.Fatalf("probability of the predicted label must be in [0.5, 1], got %v", result.Probability)
	}
	if result.Prediction != 1 {
		t.Fatalf("expected basic tier to predict 1, got %d", result.Prediction)
	}
}

func TestPredictSchemaMismatch(t *testing.T) {
	p := fitPipeline(t)

	_, err := p.Predict(models.Record{"amount": 1500.0})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch for missing column, got %v", err)
	}
	_, err = p.Predict(models.Record{"amount": 1500.0, "tier": "gold", "extra": 1.0})
	if !errors.Is(err, ErrSchemaMismatch) || !strings.Contains(err.Error(), "extra") {
		t.Fatalf("expected schema mismatch naming the extra column, got %v", err)
	}
	_, err = p.Predict(models.Record{"amount": "lots", "tier": "gold"})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch for string amount, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := fitPipeline(t)
	path := filepath.Join(t.TempDir(), "model", "denial_model.json")
	if err := p.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	loaded, err := Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	row := models.Record{"amount": 2100.0, "tier": "gold"}
	want, _ := p.Predict(row)
	got, err := loaded.Predict(row)
	if err != nil {
		t.Fatalf("predict loaded: %v", err)
	}
	if got != want {
		t.Fatalf("loaded pipeline predicts %+v, original %+v", got, want)
	}
	if loaded.Domain != models.DomainDenial || loaded.Target != "denial_flag" {
		t.Fatalf("metadata lost: %+v", loaded)
	}
}

func TestDecodeRejectsCorruptArtifacts(t *testing.T) {
	cases := map[string]string{
		"not json":          "{{{",
		"no preprocessor":   `{"classifier":{"algorithm":"random_forest","forest":{"classes":2,"features":1,"trees":[]}}}`,
		"unknown algorithm": `{"preprocessor":{"numeric":[{"name":"a","scale":1}]},"classifier":{"algorithm":"svm"}}`,
		"width mismatch":    `{"preprocessor":{"numeric":[{"name":"a","scale":1}]},"classifier":{"algorithm":"logistic","logistic":{"bias":0,"coefficients":[1,2]}}}`,
		"cyclic tree":       `{"preprocessor":{"numeric":[{"name":"a","scale":1}]},"classifier":{"algorithm":"random_forest","forest":{"classes":2,"features":1,"trees":[{"nodes":[{"f":0,"t":0.5,"l":1,"r":2},{"f":0,"t":0.5,"l":1,"r":2},{"f":-1,"p":[0.5,0.5]}]}]}}}`,
	}
	for name, raw := range cases {
		if _, err := Decode(bytes.NewBufferString(raw)); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}
