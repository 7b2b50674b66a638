package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/medibots/ml-platform/pkg/common/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	t.Setenv("GROK_API_KEY", "")
	t.Setenv("MODEL_DIR", "")

	cfg := Load()
	if cfg.InsightsEnabled() {
		t.Fatal("insights should be disabled without a credential")
	}
	if cfg.InsightTimeout != 15*time.Second {
		t.Fatalf("expected 15s insight timeout, got %s", cfg.InsightTimeout)
	}
	p, ok := cfg.Paths(models.DomainPaymentDelay)
	if !ok {
		t.Fatal("expected payment-delay paths")
	}
	if p.Model != filepath.Join("model", "payment_delay_model.json") {
		t.Fatalf("unexpected model path %s", p.Model)
	}
	if p.Dataset != "data/invoices_350.csv" {
		t.Fatalf("unexpected dataset path %s", p.Dataset)
	}
	if cfg.KafkaEnabled() {
		t.Fatal("kafka should be disabled without brokers")
	}
}

func TestLoadCredentialFallback(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	t.Setenv("GROK_API_KEY", "grok-secret")
	if got := Load().LLMAPIKey; got != "grok-secret" {
		t.Fatalf("expected GROK_API_KEY fallback, got %q", got)
	}

	t.Setenv("XAI_API_KEY", "xai-secret")
	if got := Load().LLMAPIKey; got != "xai-secret" {
		t.Fatalf("expected XAI_API_KEY precedence, got %q", got)
	}
}

func TestKafkaBrokersSplit(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestWithDomainPathsDoesNotMutate(t *testing.T) {
	base := Load()
	custom := base.WithDomainPaths(models.DomainNoShow, DomainPaths{Model: "x.json"})

	if p, _ := custom.Paths(models.DomainNoShow); p.Model != "x.json" {
		t.Fatalf("expected override, got %s", p.Model)
	}
	if p, _ := base.Paths(models.DomainNoShow); p.Model == "x.json" {
		t.Fatal("base config was mutated")
	}
}
