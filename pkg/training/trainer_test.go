package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/ml/pipeline"
	"github.com/medibots/ml-platform/pkg/normalizer"
	"github.com/medibots/ml-platform/pkg/serving/predictor"
	"github.com/medibots/ml-platform/pkg/storage"
)

func claimsCSV(rows int) string {
	var b strings.Builder
	b.WriteString("claim_id,claim_amount,insurance_provider,documentation_complete,prior_denial_count,status\n")
	for i := 0; i < rows; i++ {
		denied := i%3 == 0
		status, docs, priors := "APPROVED", "true", 0
		if denied {
			status, docs, priors = "DENIED", "false", 2+i%2
		}
		fmt.Fprintf(&b, "C%d,%d,%s,%s,%d,%s\n", i, 1000+i*37, []string{"Star", "ICICI", "NA", "HDFC"}[i%4], docs, priors, status)
	}
	return b.String()
}

func TestRepairDenialFlag(t *testing.T) {
	table, err := storage.DecodeTable(strings.NewReader("claim_id,status\nA,DENIED\nB,APPROVED\nC,\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !RepairDenialFlag(table) {
		t.Fatal("expected repair")
	}
	if table.HasColumn("status") {
		t.Fatal("status should be dropped")
	}
	col := table.Column("denial_flag")
	var flags []string
	for i := 0; i < table.Len(); i++ {
		v, _ := table.Cell(i, col)
		flags = append(flags, v)
	}
	if strings.Join(flags, ",") != "1,0,0" {
		t.Fatalf("unexpected flags %v", flags)
	}
	if RepairDenialFlag(table) {
		t.Fatal("repair must only happen once")
	}
}

func TestTrainClaimsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "claims_400.csv")
	if err := os.WriteFile(dataset, []byte(claimsCSV(60)), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	job := Job{
		Domain:           models.DomainDenial,
		Dataset:          dataset,
		ModelPath:        filepath.Join(dir, "model", "denial_model.json"),
		PreprocessorPath: filepath.Join(dir, "model", "denial_preprocessor.json"),
	}
	opts := DefaultOptions()
	opts.Trees = 15

	report, err := NewTrainer(normalizer.DefaultContracts(), opts).Train(context.Background(), job)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !report.RepairedLabels || report.TrainRows != 48 || report.TestRows != 12 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Metrics["train_accuracy"] < 0.9 {
		t.Fatalf("expected the forest to fit its training data, got %v", report.Metrics)
	}
	for _, path := range []string{job.ModelPath, job.PreprocessorPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}

	rewritten, err := storage.ReadTable(dataset)
	if err != nil {
		t.Fatalf("read rewritten dataset: %v", err)
	}
	if rewritten.HasColumn("status") || !rewritten.HasColumn("denial_flag") {
		t.Fatalf("dataset not repaired: %v", rewritten.Header)
	}

	store := predictor.NewStore(map[models.Domain]string{models.DomainDenial: job.ModelPath})
	contract, _ := normalizer.DefaultContracts().For(models.DomainDenial)
	features, err := contract.Apply(normalizer.Normalize(models.Record{
		"amount":                 "1500.50",
		"insurance_provider":     "Star",
		"documentation_complete": "false",
		"prior_denial_count":     "3",
	}))
	if err != nil {
		t.Fatalf("apply contract: %v", err)
	}
	result, err := store.Predict(context.Background(), models.DomainDenial, features)
	if err != nil {
		t.Fatalf("predict with trained model: %v", err)
	}
	if result.Prediction != 1 || result.Probability < 0.5 || result.Probability > 1 {
		t.Fatalf("expected a denial prediction, got %+v", result)
	}
}

func TestTrainLogisticInvoices(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("invoice_id,invoice_amount,previous_late_payments,payment_delay_flag\n")
	for i := 0; i < 40; i++ {
		late := i % 2
		fmt.Fprintf(&b, "I%d,%d,%d,%d\n", i, 500+i*10, late*4, late)
	}
	dataset := filepath.Join(dir, "invoices.csv")
	if err := os.WriteFile(dataset, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts := DefaultOptions()
	opts.Algorithm = pipeline.AlgorithmLogistic
	report, err := NewTrainer(normalizer.DefaultContracts(), opts).Train(context.Background(), Job{
		Domain:           models.DomainPaymentDelay,
		Dataset:          dataset,
		ModelPath:        filepath.Join(dir, "payment_delay_model.json"),
		PreprocessorPath: filepath.Join(dir, "payment_preprocessor.json"),
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.RepairedLabels {
		t.Fatal("only claims datasets are repaired")
	}
	if report.Metrics["test_accuracy"] != 1 {
		t.Fatalf("expected a separable dataset to be learned, got %v", report.Metrics)
	}
}

func TestTrainMissingTarget(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "appointments.csv")
	if err := os.WriteFile(dataset, []byte("appointment_id,weekday\nA1,Monday\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewTrainer(normalizer.DefaultContracts(), DefaultOptions()).Train(context.Background(), Job{
		Domain:  models.DomainNoShow,
		Dataset: dataset,
	})
	if err == nil || !strings.Contains(err.Error(), "no_show_flag") {
		t.Fatalf("expected missing target error, got %v", err)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	examples := make([]example, 10)
	for i := range examples {
		examples[i] = example{label: i}
	}
	trainA, testA := split(examples, 0.2, 42)
	trainB, testB := split(examples, 0.2, 42)
	if len(trainA) != 8 || len(testA) != 2 {
		t.Fatalf("unexpected split sizes %d/%d", len(trainA), len(testA))
	}
	for i := range testA {
		if testA[i].label != testB[i].label {
			t.Fatal("split must be reproducible for a fixed seed")
		}
	}
	_ = trainB
}
