// Package app wires configuration into the conversion pipeline for the
// server and the command-line tool.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/coursemd/internal/classify"
	"github.com/dgallion1/coursemd/internal/config"
	"github.com/dgallion1/coursemd/internal/convert"
	"github.com/dgallion1/coursemd/internal/llm"
	"github.com/dgallion1/coursemd/internal/normalize"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Policy returns the retry policy configured by the NORMALIZE_* keys.
func Policy(cfg config.Config) normalize.Policy {
	return normalize.Policy{
		MaxAttempts:  cfg.NormalizeMaxAttempts,
		Unit:         cfg.NormalizeBackoffUnit,
		ThrottleStep: cfg.NormalizeThrottleStep,
		FailureDelay: cfg.NormalizeFailureDelay,
	}
}

// NewService returns the completion client for cfg.LLMProvider, or nil for
// the none provider.
func NewService(cfg config.Config) (llm.Service, *llm.Stats, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		c := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, cfg.LLMTimeout)
		return c, c.Stats, nil
	case config.ProviderOpenAI:
		c := llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
		return c, c.Stats, nil
	case config.ProviderNone:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// NewPipeline loads the classifier rules and builds the converter around
// svc. A nil svc leaves table candidates as written.
func NewPipeline(cfg config.Config, svc llm.Service, log *slog.Logger) (*convert.Pipeline, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	rules := classify.DefaultRules()
	if cfg.RulesFile != "" {
		var err error
		if rules, err = classify.LoadRules(cfg.RulesFile); err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		log.Info("loaded classifier rules", "path", cfg.RulesFile)
	}
	cls, err := classify.New(rules)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	var n convert.Normalizer
	if svc != nil {
		n = normalize.NewAdapter(svc, Policy(cfg), log)
	}
	return convert.New(cls, n, convert.Options{MaxConcurrent: cfg.MaxConcurrentNormalize}, log), nil
}
