// Package training fits a domain pipeline from its labeled dataset and
// persists the artifacts the serving process loads.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/ml/forest"
	"github.com/medibots/ml-platform/pkg/ml/linear"
	"github.com/medibots/ml-platform/pkg/ml/pipeline"
	"github.com/medibots/ml-platform/pkg/normalizer"
	"github.com/medibots/ml-platform/pkg/storage"
)

const (
	claimsStatusColumn = "status"
	claimsDeniedStatus = "DENIED"
)

type Options struct {
	Algorithm string
	Trees     int
	MaxDepth  int
	TestSize  float64
	Seed      int64
}

func DefaultOptions() Options {
	return Options{
		Algorithm: pipeline.AlgorithmRandomForest,
		Trees:     100,
		TestSize:  0.2,
		Seed:      42,
	}
}

type Trainer struct {
	contracts normalizer.Contracts
	opts      Options
	dirs      []string
}

// NewTrainer trains on the columns of each domain's field contract.
// Relative dataset paths are also looked up under dirs.
func NewTrainer(contracts normalizer.Contracts, opts Options, dirs ...string) *Trainer {
	if opts.Algorithm == "" {
		opts.Algorithm = pipeline.AlgorithmRandomForest
	}
	if opts.TestSize < 0 || opts.TestSize >= 1 {
		opts.TestSize = 0.2
	}
	return &Trainer{contracts: contracts, opts: opts, dirs: dirs}
}

type example struct {
	features models.Record
	label    int
}

func (t *Trainer) Train(ctx context.Context, job Job) (Report, error) {
	report := Report{Domain: job.Domain, Algorithm: t.opts.Algorithm, ModelPath: job.ModelPath, PreprocessorPath: job.PreprocessorPath}

	spec, ok := job.Domain.Spec()
	if !ok {
		return report, fmt.Errorf("unknown domain %q", job.Domain)
	}
	contract, ok := t.contracts.For(job.Domain)
	if !ok {
		return report, fmt.Errorf("no field contract for %s", job.Domain)
	}

	path, err := storage.ResolvePath(job.Dataset, t.dirs...)
	if err != nil {
		return report, err
	}
	table, err := storage.ReadTable(path)
	if err != nil {
		return report, err
	}
	report.Dataset = table.Name

	if job.Domain == models.DomainDenial && RepairDenialFlag(table) {
		if err := storage.WriteTable(path, table); err != nil {
			return report, fmt.Errorf("rewrite %s: %w", path, err)
		}
		report.RepairedLabels = true
		logger.Log.WithField("dataset", path).Info("Derived denial_flag from status")
	}
	if !table.HasColumn(spec.FlagColumn) {
		return report, fmt.Errorf("dataset %s has no %s column", table.Name, spec.FlagColumn)
	}

	examples, skipped := t.examples(table, spec.FlagColumn, contract)
	report.Rows = table.Len()
	report.SkippedRows = skipped
	if len(examples) == 0 {
		return report, errors.New("no usable training rows")
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	train, test := split(examples, t.opts.TestSize, t.opts.Seed)
	report.TrainRows, report.TestRows = len(train), len(test)

	p, err := t.fit(job.Domain, spec.FlagColumn, contract, train)
	if err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Metrics = evaluate(p, train, "train")
	for k, v := range evaluate(p, test, "test") {
		report.Metrics[k] = v
	}
	p.Metrics = report.Metrics

	if err := p.Save(job.ModelPath); err != nil {
		return report, fmt.Errorf("save model: %w", err)
	}
	if err := pipeline.SavePreprocessor(job.PreprocessorPath, p.Preprocessor); err != nil {
		return report, fmt.Errorf("save preprocessor: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"domain":        job.Domain,
		"rows":          report.Rows,
		"train_rows":    report.TrainRows,
		"test_rows":     report.TestRows,
		"test_accuracy": report.Metrics["test_accuracy"],
		"model_path":    job.ModelPath,
	}).Info("Model trained")
	return report, nil
}

// RepairDenialFlag derives denial_flag from the status column when the flag
// is absent, dropping status so it cannot leak the label. It reports whether
// the table changed.
func RepairDenialFlag(table *storage.Table) bool {
	spec, _ := models.DomainDenial.Spec()
	if table.HasColumn(spec.FlagColumn) || !table.HasColumn(claimsStatusColumn) {
		return false
	}
	col := table.Column(claimsStatusColumn)
	values := make([]string, table.Len())
	for i := range values {
		values[i] = "0"
		if v, ok := table.Cell(i, col); ok && v == claimsDeniedStatus {
			values[i] = "1"
		}
	}
	if err := table.SetColumn(spec.FlagColumn, values); err != nil {
		return false
	}
	table.DropColumn(claimsStatusColumn)
	return true
}

func (t *Trainer) examples(table *storage.Table, target string, contract normalizer.Contract) ([]example, int) {
	col := table.Column(target)
	records := table.Records()
	out := make([]example, 0, len(records))
	skipped := 0
	for i, raw := range records {
		cell, ok := table.Cell(i, col)
		if !ok {
			skipped++
			continue
		}
		label, ok := parseLabel(cell)
		if !ok {
			skipped++
			continue
		}
		features, err := contract.Apply(normalizer.Normalize(raw))
		if err != nil {
			logger.Log.WithError(err).WithField("row", i+1).Debug("Skipping training row")
			skipped++
			continue
		}
		out = append(out, example{features: features, label: label})
	}
	return out, skipped
}

func parseLabel(cell string) (int, bool) {
	switch v := normalizer.NormalizeValue(cell).(type) {
	case int64:
		if v == 0 || v == 1 {
			return int(v), true
		}
	case float64:
		if v == 0 || v == 1 {
			return int(v), true
		}
	}
	return 0, false
}

// split shuffles with a fixed seed and holds out ceil(testSize*n) rows.
func split(examples []example, testSize float64, seed int64) ([]example, []example) {
	n := len(examples)
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test := make([]example, 0, nTest)
	train := make([]example, 0, n-nTest)
	for i, idx := range perm {
		if i < nTest {
			test = append(test, examples[idx])
		} else {
			train = append(train, examples[idx])
		}
	}
	return train, test
}

func (t *Trainer) fit(d models.Domain, target string, contract normalizer.Contract, train []example) (*pipeline.Pipeline, error) {
	columns := make([]pipeline.ColumnSpec, 0, len(contract.Fields))
	for _, f := range contract.Fields {
		columns = append(columns, pipeline.ColumnSpec{Name: f.Name, Numeric: f.Type != normalizer.FieldCategory})
	}
	rows := make([]models.Record, len(train))
	for i, ex := range train {
		rows[i] = ex.features
	}
	pre, err := pipeline.FitPreprocessor(columns, rows)
	if err != nil {
		return nil, err
	}

	x := make([][]float64, len(train))
	for i, row := range rows {
		if x[i], err = pre.Transform(row); err != nil {
			return nil, err
		}
	}

	var spec pipeline.ClassifierSpec
	switch t.opts.Algorithm {
	case pipeline.AlgorithmRandomForest:
		y := make([]int, len(train))
		for i, ex := range train {
			y[i] = ex.label
		}
		f, err := forest.Train(x, y, 2, forest.Options{Trees: t.opts.Trees, MaxDepth: t.opts.MaxDepth, Seed: t.opts.Seed})
		if err != nil {
			return nil, err
		}
		spec = pipeline.ClassifierSpec{Algorithm: pipeline.AlgorithmRandomForest, Forest: f}
	case pipeline.AlgorithmLogistic:
		y := make([]float64, len(train))
		for i, ex := range train {
			y[i] = float64(ex.label)
		}
		w, _, err := linear.TrainLogistic(x, y, linear.Options{Epochs: 300, LearningRate: 0.1, L2: 0.001})
		if err != nil {
			return nil, err
		}
		spec = pipeline.ClassifierSpec{Algorithm: pipeline.AlgorithmLogistic, Logistic: &w}
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", t.opts.Algorithm)
	}
	return pipeline.New(d, target, pre, spec)
}

func evaluate(p *pipeline.Pipeline, examples []example, prefix string) map[string]float64 {
	out := map[string]float64{}
	if len(examples) == 0 {
		return out
	}
	var correct, tp, fp, fn int
	for _, ex := range examples {
		res, err := p.Predict(ex.features)
		if err != nil {
			continue
		}
		switch {
		case res.Prediction == ex.label:
			correct++
			if ex.label == 1 {
				tp++
			}
		case res.Prediction == 1:
			fp++
		default:
			fn++
		}
	}
	n := float64(len(examples))
	out[prefix+"_accuracy"] = models.Round(float64(correct)/n, 4)
	if tp+fp > 0 {
		out[prefix+"_precision"] = models.Round(float64(tp)/float64(tp+fp), 4)
	}
	if tp+fn > 0 {
		out[prefix+"_recall"] = models.Round(float64(tp)/float64(tp+fn), 4)
	}
	return out
}
