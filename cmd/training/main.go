package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/medibots/ml-platform/pkg/common/config"
	"github.com/medibots/ml-platform/pkg/common/database"
	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/normalizer"
	"github.com/medibots/ml-platform/pkg/storage"
	"github.com/medibots/ml-platform/pkg/training"
	"golang.org/x/sync/errgroup"
)

func main() {
	defaults := training.DefaultOptions()
	domainFlag := flag.String("domain", "all", "domain to train: all, denial, payment-delay or no-show")
	algorithm := flag.String("algorithm", defaults.Algorithm, "classifier: random_forest or logistic")
	trees := flag.Int("trees", defaults.Trees, "number of trees for random_forest")
	maxDepth := flag.Int("max-depth", 0, "maximum tree depth, 0 for unlimited")
	parallel := flag.Int("parallel", 3, "domains trained concurrently")
	record := flag.Bool("record", false, "record runs in the training_runs table")
	history := flag.Int("history", 0, "print the latest N recorded runs and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	logger.Init("training")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo *training.Repository
	if *record || *history > 0 {
		db, err := database.OpenPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		defer database.ClosePostgres(db)
		repo = training.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate training_runs")
		}
	}
	if *history > 0 {
		printHistory(ctx, repo, *history)
		return
	}

	domains, err := selectDomains(*domainFlag)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid domain")
	}
	contracts, err := normalizer.LoadContracts(cfg.FieldContractsPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load field contracts")
	}

	opts := defaults
	opts.Algorithm = *algorithm
	opts.Trees = *trees
	opts.MaxDepth = *maxDepth
	trainer := training.NewTrainer(contracts, opts, storage.InstallDir())

	var mu sync.Mutex
	reports := make([]training.Report, 0, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*parallel)
	for _, d := range domains {
		paths, _ := cfg.Paths(d)
		job := training.Job{
			Domain:           d,
			Dataset:          paths.Dataset,
			ModelPath:        paths.Model,
			PreprocessorPath: paths.Preprocessor,
		}
		g.Go(func() error {
			report, err := run(gctx, trainer, repo, job, opts.Algorithm)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Domain, err)
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Log.WithError(err).Fatal("Training failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(reports)
	logger.Log.WithField("models", len(reports)).Info("All models trained successfully")
}

func run(ctx context.Context, trainer *training.Trainer, repo *training.Repository, job training.Job, algorithm string) (training.Report, error) {
	var runID uuid.UUID
	if repo != nil {
		id, err := repo.Start(ctx, job, algorithm)
		if err != nil {
			logger.Log.WithError(err).WithField("domain", job.Domain).Warn("Failed to record training run")
		}
		runID = id
	}

	logger.Log.WithField("domain", job.Domain).Info("Training model")
	report, err := trainer.Train(ctx, job)

	if repo != nil && runID != uuid.Nil {
		if ferr := repo.Finish(context.Background(), runID, report, err); ferr != nil {
			logger.Log.WithError(ferr).WithField("domain", job.Domain).Warn("Failed to finish training run record")
		}
	}
	return report, err
}

func selectDomains(name string) ([]models.Domain, error) {
	if strings.EqualFold(name, "all") || name == "" {
		return models.Domains(), nil
	}
	var out []models.Domain
	for _, part := range strings.Split(name, ",") {
		d, ok := models.ParseDomain(part)
		if !ok {
			return nil, fmt.Errorf("unknown domain %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

func printHistory(ctx context.Context, repo *training.Repository, limit int) {
	runs, err := repo.List(ctx, limit)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to list training runs")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(runs)
}
