package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in LLM_PROVIDER.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Normalization service
	LLMProvider      string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIModel      string
	LLMTimeout       time.Duration

	// Retry policy
	NormalizeMaxAttempts  int
	NormalizeBackoffUnit  time.Duration
	NormalizeThrottleStep int
	NormalizeFailureDelay int

	// Worker pool
	WorkerCount            int
	MaxQueueSize           int
	MaxConcurrentNormalize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Storage
	DBPath string

	// Classifier rules file, optional
	RulesFile string

	// PDF
	PDFFallbackPdftotext bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads .env (if any) and then the environment.
func Load() Config {
	loadDotEnv()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("COURSEMD_API_KEY"),

		LLMProvider:      strings.ToLower(envOr("LLM_PROVIDER", ProviderAnthropic)),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		OpenAIBaseURL:    envOr("OPENAI_BASE_URL", "http://localhost:8081"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      envOr("OPENAI_MODEL", "default"),
		LLMTimeout:       envDuration("LLM_TIMEOUT", 120*time.Second),

		NormalizeMaxAttempts:  envInt("NORMALIZE_MAX_ATTEMPTS", 3),
		NormalizeBackoffUnit:  envDuration("NORMALIZE_BACKOFF_UNIT", time.Second),
		NormalizeThrottleStep: envInt("NORMALIZE_THROTTLE_STEP", 10),
		NormalizeFailureDelay: envInt("NORMALIZE_FAILURE_DELAY", 2),

		WorkerCount:            envInt("WORKER_COUNT", 4),
		MaxQueueSize:           envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentNormalize: envInt("MAX_CONCURRENT_NORMALIZE", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		DBPath:    envOr("DB_PATH", "./data/coursemd.db"),
		RulesFile: os.Getenv("RULES_FILE"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentNormalize <= 0 {
		cfg.MaxConcurrentNormalize = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.NormalizeMaxAttempts <= 0 {
		cfg.NormalizeMaxAttempts = 3
	}
	if cfg.NormalizeBackoffUnit <= 0 {
		cfg.NormalizeBackoffUnit = time.Second
	}

	return cfg
}

// Validate checks the settings the server cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("COURSEMD_API_KEY is required")
	}
	return c.ValidateProvider()
}

// ValidateProvider checks only the normalization service settings; the CLI
// needs these but no API key.
func (c Config) ValidateProvider() error {
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	case ProviderOpenAI:
		if c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_BASE_URL is required when LLM_PROVIDER=openai")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// loadDotEnv loads the first .env found in the working directory or up to
// five parents. Variables already set are not overridden.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for range 6 {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
