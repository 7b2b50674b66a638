// Package predictor loads persisted pipelines by domain and runs inference.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/ml/pipeline"
	"github.com/medibots/ml-platform/pkg/storage"
	"golang.org/x/sync/singleflight"
)

var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrArtifactCorrupt  = errors.New("model artifact corrupt")
	ErrUnknownDomain    = errors.New("unknown model domain")
)

// Store holds one pipeline per domain. Artifacts are loaded on first use or
// by Preload and are never reloaded for the life of the process.
type Store struct {
	paths  map[models.Domain]string
	dirs   []string
	mu     sync.RWMutex
	cache  map[models.Domain]*pipeline.Pipeline
	loader singleflight.Group
}

// NewStore copies paths; relative paths are also looked up under dirs.
func NewStore(paths map[models.Domain]string, dirs ...string) *Store {
	p := make(map[models.Domain]string, len(paths))
	for d, path := range paths {
		p[d] = path
	}
	return &Store{
		paths: p,
		dirs:  dirs,
		cache: make(map[models.Domain]*pipeline.Pipeline),
	}
}

// Get returns the pipeline of a domain, loading it if needed. Concurrent
// first requests share a single load.
func (s *Store) Get(d models.Domain) (*pipeline.Pipeline, error) {
	s.mu.RLock()
	p, ok := s.cache[d]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	path, ok := s.paths[d]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, d)
	}

	v, err, _ := s.loader.Do(string(d), func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.cache[d]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}
		loaded, err := s.load(d, path)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[d] = loaded
		s.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline.Pipeline), nil
}

func (s *Store) load(d models.Domain, path string) (*pipeline.Pipeline, error) {
	resolved, err := storage.ResolvePath(path, s.dirs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, resolved, err)
	}
	defer f.Close()

	p, err := pipeline.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, resolved, err)
	}
	if p.Domain != "" && p.Domain != d {
		return nil, fmt.Errorf("%w: %s holds a %s model", ErrArtifactCorrupt, resolved, p.Domain)
	}

	logger.Log.WithFields(map[string]interface{}{
		"domain":    d,
		"path":      resolved,
		"algorithm": p.Classifier.Algorithm,
	}).Info("Loaded model artifact")
	return p, nil
}

// Preload loads every configured artifact. Missing or broken artifacts are
// logged and left for the first request to report.
func (s *Store) Preload() int {
	loaded := 0
	for _, d := range s.domains() {
		if _, err := s.Get(d); err != nil {
			logger.Log.WithError(err).WithField("domain", d).Warn("Model artifact not preloaded")
			continue
		}
		loaded++
	}
	return loaded
}

// Predict applies a contract-projected record to the domain's pipeline.
func (s *Store) Predict(ctx context.Context, d models.Domain, rec models.Record) (models.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return models.PredictionResult{}, err
	}
	p, err := s.Get(d)
	if err != nil {
		return models.PredictionResult{}, err
	}
	return p.Predict(rec)
}

// Models describes each configured domain without triggering loads.
func (s *Store) Models() []models.ModelInfo {
	out := make([]models.ModelInfo, 0, len(s.paths))
	for _, d := range s.domains() {
		info := models.ModelInfo{Domain: d, Path: s.paths[d]}
		s.mu.RLock()
		p, ok := s.cache[d]
		s.mu.RUnlock()
		if ok {
			info.Loaded = true
			info.Algorithm = p.Classifier.Algorithm
			info.FeatureNames = p.FeatureNames()
			info.CreatedAt = p.CreatedAt
		}
		out = append(out, info)
	}
	return out
}

func (s *Store) domains() []models.Domain {
	out := make([]models.Domain, 0, len(s.paths))
	for d := range s.paths {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
