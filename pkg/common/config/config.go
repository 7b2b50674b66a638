package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/medibots/ml-platform/pkg/common/models"
)

// DomainPaths locates the persisted state of one prediction domain.
type DomainPaths struct {
	Model        string
	Preprocessor string
	Dataset      string
}

// Config is built once at process start and handed to components by value.
type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Models and reference data
	ModelDir           string
	FieldContractsPath string
	PreloadModels      bool
	RedactionRulesPath string
	domains            map[models.Domain]DomainPaths

	// LLM
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModelName      string
	LLMMaxTokens      int
	LLMTemperature    float64
	InsightTimeout    time.Duration
	InsightMaxRetries int
	InsightRetryBase  time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresMaxConns int

	// Kafka
	KafkaBrokers    []string
	KafkaGroupID    string
	PredictionTopic string
}

func Load() Config {
	modelDir := getEnv("MODEL_DIR", "model")

	cfg := Config{
		ServerPort:     getEnv("SERVER_PORT", "8000"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),

		ModelDir:           modelDir,
		FieldContractsPath: getEnv("FIELD_CONTRACTS_PATH", ""),
		PreloadModels:      getBoolEnv("PRELOAD_MODELS", true),
		RedactionRulesPath: getEnv("REDACTION_RULES_PATH", ""),
		domains: map[models.Domain]DomainPaths{
			models.DomainDenial: {
				Model:        getEnv("DENIAL_MODEL_PATH", filepath.Join(modelDir, "denial_model.json")),
				Preprocessor: getEnv("DENIAL_PREPROCESSOR_PATH", filepath.Join(modelDir, "denial_preprocessor.json")),
				Dataset:      getEnv("CLAIMS_PATH", "data/claims_400.csv"),
			},
			models.DomainPaymentDelay: {
				Model:        getEnv("PAYMENT_MODEL_PATH", filepath.Join(modelDir, "payment_delay_model.json")),
				Preprocessor: getEnv("PAYMENT_PREPROCESSOR_PATH", filepath.Join(modelDir, "payment_preprocessor.json")),
				Dataset:      getEnv("INVOICES_PATH", "data/invoices_350.csv"),
			},
			models.DomainNoShow: {
				Model:        getEnv("NO_SHOW_MODEL_PATH", filepath.Join(modelDir, "no_show_model.json")),
				Preprocessor: getEnv("NO_SHOW_PREPROCESSOR_PATH", filepath.Join(modelDir, "no_show_preprocessor.json")),
				Dataset:      getEnv("APPOINTMENTS_PATH", "data/appointments_250.csv"),
			},
		},

		LLMAPIKey:         getEnv("XAI_API_KEY", os.Getenv("GROK_API_KEY")),
		LLMBaseURL:        getEnv("LLM_BASE_URL", "https://api.x.ai/v1"),
		LLMModelName:      getEnv("LLM_MODEL_NAME", "grok-3-latest"),
		LLMMaxTokens:      getIntEnv("LLM_MAX_TOKENS", 300),
		LLMTemperature:    getFloatEnv("LLM_TEMPERATURE", 0.3),
		InsightTimeout:    getDuration("INSIGHT_TIMEOUT", 15*time.Second),
		InsightMaxRetries: getIntEnv("INSIGHT_MAX_RETRIES", 2),
		InsightRetryBase:  getDuration("INSIGHT_RETRY_BASE", 250*time.Millisecond),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		StatsCacheTTL: getDuration("STATS_CACHE_TTL", 0),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "medibots"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "medibots"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresMaxConns: getIntEnv("POSTGRES_MAX_CONNS", 10),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "medibots-prediction-audit"),
		PredictionTopic: getEnv("PREDICTION_TOPIC", "ml.predictions"),
	}
	return cfg
}

// Paths returns the persisted state locations of a domain.
func (c Config) Paths(d models.Domain) (DomainPaths, bool) {
	p, ok := c.domains[d]
	return p, ok
}

// ModelPaths returns a fresh domain to artifact path map.
func (c Config) ModelPaths() map[models.Domain]string {
	out := make(map[models.Domain]string, len(c.domains))
	for d, p := range c.domains {
		out[d] = p.Model
	}
	return out
}

// DatasetPaths returns a fresh domain to reference dataset path map.
func (c Config) DatasetPaths() map[models.Domain]string {
	out := make(map[models.Domain]string, len(c.domains))
	for d, p := range c.domains {
		out[d] = p.Dataset
	}
	return out
}

// WithDomainPaths returns a copy of c using the given paths for d.
func (c Config) WithDomainPaths(d models.Domain, p DomainPaths) Config {
	domains := make(map[models.Domain]DomainPaths, len(c.domains)+1)
	for k, v := range c.domains {
		domains[k] = v
	}
	domains[d] = p
	c.domains = domains
	return c
}

func (c Config) InsightsEnabled() bool {
	return c.LLMAPIKey != ""
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
