package provider

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/N9work/CrewAi-Project/config"
	"github.com/N9work/CrewAi-Project/internal/agent/core"
	anthropic_provider "github.com/N9work/CrewAi-Project/provider/anthropic"
	openai_provider "github.com/N9work/CrewAi-Project/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Groq      Client = "groq"
	Anthropic Client = "anthropic"
)

// ErrMissingAPIKey is returned when the selected provider has no key.
var ErrMissingAPIKey = errors.New("llm api key not set")

// New creates the worker backend selected by cfg.Provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (core.Backend, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))

	switch Client(cfg.Provider) {
	case OpenAI, Groq:
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
			openai_provider.WithLogger(logger),
		), nil
	case Anthropic:
		return anthropic_provider.NewAnthropicClient(
			cfg.APIKey,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
			nil,
			anthropic_provider.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
