package insights

import (
	"context"
	"time"

	"github.com/medibots/ml-platform/pkg/common/config"
	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
)

// Composer never fails: every remote problem falls back to the template.
type Composer struct {
	generator Generator
	timeout   time.Duration
}

// NewComposer uses gen when non-nil. timeout bounds the whole remote
// attempt, retries included.
func NewComposer(gen Generator, timeout time.Duration) *Composer {
	return &Composer{generator: gen, timeout: timeout}
}

// NewComposerFromConfig wires a remote generator only when a credential is
// configured.
func NewComposerFromConfig(cfg config.Config) *Composer {
	if !cfg.InsightsEnabled() {
		return NewComposer(nil, cfg.InsightTimeout)
	}
	return NewComposer(NewRemoteGenerator(cfg), cfg.InsightTimeout)
}

func (c *Composer) RemoteEnabled() bool {
	return c.generator != nil
}

func (c *Composer) Compose(ctx context.Context, d models.Domain, rec models.Record, result models.PredictionResult, stats models.HistoricalStats) Insight {
	if c.generator == nil {
		return Insight{Text: Template(d, result.Prediction, stats), Source: SourceTemplate, Reason: ReasonNoCredential}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res := c.generator.Generate(ctx, BuildPrompt(d, rec, result, stats))
	if res.OK() {
		return Insight{Text: res.Text, Source: SourceRemote}
	}

	entry := logger.Log.WithFields(map[string]interface{}{
		"domain": d,
		"reason": res.Reason,
	})
	if res.Err != nil {
		entry = entry.WithError(res.Err)
	}
	entry.Warn("Remote insight unavailable, using template")
	return Insight{Text: Template(d, result.Prediction, stats), Source: SourceTemplate, Reason: res.Reason}
}
