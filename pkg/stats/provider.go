// Package stats computes historical outcome rates from reference datasets.
package stats

import (
	"context"
	"strconv"
	"strings"

	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/storage"
)

// Cache is the optional store for computed stats.
type Cache interface {
	Get(ctx context.Context, d models.Domain) (models.HistoricalStats, bool)
	Set(ctx context.Context, stats models.HistoricalStats)
}

// Provider never fails: anything that prevents computing stats from data
// yields the domain's static defaults.
type Provider struct {
	datasets map[models.Domain]string
	dirs     []string
	cache    Cache
}

// NewProvider copies datasets; relative paths are also looked up under dirs.
func NewProvider(datasets map[models.Domain]string, dirs ...string) *Provider {
	ds := make(map[models.Domain]string, len(datasets))
	for d, path := range datasets {
		ds[d] = path
	}
	return &Provider{datasets: ds, dirs: dirs}
}

// WithCache returns a provider that consults c before reading datasets.
func (p *Provider) WithCache(c Cache) *Provider {
	cp := *p
	cp.cache = c
	return &cp
}

func (p *Provider) StatsFor(ctx context.Context, d models.Domain) models.HistoricalStats {
	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, d); ok {
			return cached
		}
	}
	stats := p.compute(d)
	if p.cache != nil {
		p.cache.Set(ctx, stats)
	}
	return stats
}

func (p *Provider) compute(d models.Domain) models.HistoricalStats {
	spec, ok := d.Spec()
	if !ok {
		return models.DefaultStats(d)
	}
	path, ok := p.datasets[d]
	if !ok {
		return spec.Default
	}

	table, err := storage.ReadTable(path, p.dirs...)
	if err != nil {
		logger.Log.WithError(err).WithField("domain", d).Debug("Reference dataset unavailable, using defaults")
		return spec.Default
	}
	col := table.Column(spec.FlagColumn)
	if col < 0 {
		logger.Log.WithFields(map[string]interface{}{
			"domain": d,
			"column": spec.FlagColumn,
			"source": table.Name,
		}).Warn("Reference dataset has no outcome column, using defaults")
		return spec.Default
	}

	total := table.Len()
	bad := 0
	for i := 0; i < total; i++ {
		if v, ok := table.Cell(i, col); ok && adverse(v) {
			bad++
		}
	}
	good := total - bad

	stats := models.HistoricalStats{
		Domain:    d,
		Total:     total,
		GoodCount: good,
		BadCount:  bad,
		Source:    table.Name,
	}
	if total > 0 {
		stats.GoodRate = models.Round(float64(good)/float64(total), 4)
		stats.BadRate = models.Round(float64(bad)/float64(total), 4)
	}
	return stats
}

// adverse reports whether a flag cell marks the unfavourable outcome.
func adverse(cell string) bool {
	if strings.EqualFold(cell, "true") {
		return true
	}
	f, err := strconv.ParseFloat(cell, 64)
	return err == nil && f != 0
}
