package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const statsKeyPrefix = "ml:stats:"

// StatsCache keeps computed historical stats in Redis for a fixed TTL.
type StatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

type cachedStats struct {
	GoodRate  float64 `json:"good_rate"`
	BadRate   float64 `json:"bad_rate"`
	Total     int     `json:"total"`
	GoodCount int     `json:"good_count"`
	BadCount  int     `json:"bad_count"`
	Source    string  `json:"source"`
}

func NewStatsCache(client redis.Cmdable, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(d models.Domain) string {
	return fmt.Sprintf("%s%s", statsKeyPrefix, d)
}

// Get returns the cached stats of a domain. A miss or a Redis failure both
// report ok=false.
func (c *StatsCache) Get(ctx context.Context, d models.Domain) (models.HistoricalStats, bool) {
	raw, err := c.client.Get(ctx, statsKey(d)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("domain", d).Warn("stats cache read failed")
		}
		return models.HistoricalStats{}, false
	}
	var cached cachedStats
	if err := json.Unmarshal(raw, &cached); err != nil {
		logger.Log.WithError(err).WithField("domain", d).Warn("stats cache entry unreadable")
		return models.HistoricalStats{}, false
	}
	return models.HistoricalStats{
		Domain:    d,
		GoodRate:  cached.GoodRate,
		BadRate:   cached.BadRate,
		Total:     cached.Total,
		GoodCount: cached.GoodCount,
		BadCount:  cached.BadCount,
		Source:    cached.Source,
	}, true
}

// Set stores stats computed from data. Defaults are never cached so a
// dataset appearing later is picked up.
func (c *StatsCache) Set(ctx context.Context, stats models.HistoricalStats) {
	if stats.IsDefault() {
		return
	}
	data, err := json.Marshal(cachedStats{
		GoodRate:  stats.GoodRate,
		BadRate:   stats.BadRate,
		Total:     stats.Total,
		GoodCount: stats.GoodCount,
		BadCount:  stats.BadCount,
		Source:    stats.Source,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(stats.Domain), data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("domain", stats.Domain).Warn("stats cache write failed")
	}
}
