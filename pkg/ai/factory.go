package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrUnknownProvider is returned when no evaluator backs the requested provider.
var ErrUnknownProvider = errors.New("unknown ai provider")

// FactoryConfig carries the per-provider defaults used when a credential arrives at runtime.
type FactoryConfig struct {
	GeminiModel   string
	GeminiBaseURL string
	OpenAIModel   string
	OpenAIBaseURL string
	Logger        zerolog.Logger
}

// Factory builds evaluators for a provider and API key.
type Factory interface {
	New(ctx context.Context, provider, apiKey string) (Evaluator, error)
}

// ProviderFactory builds Gemini or OpenAI evaluators.
type ProviderFactory struct {
	cfg FactoryConfig
}

// NewFactory returns a provider factory using cfg for model names and endpoints.
func NewFactory(cfg FactoryConfig) *ProviderFactory {
	return &ProviderFactory{cfg: cfg}
}

// New constructs an evaluator for provider authenticated with apiKey.
func (f *ProviderFactory) New(ctx context.Context, provider, apiKey string) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderGemini:
		return NewGeminiEvaluator(ctx, GeminiConfig{
			APIKey:  apiKey,
			Model:   f.cfg.GeminiModel,
			BaseURL: f.cfg.GeminiBaseURL,
			Logger:  f.cfg.Logger,
		})
	case ProviderOpenAI:
		return NewOpenAIEvaluator(OpenAIConfig{
			APIKey:  apiKey,
			Model:   f.cfg.OpenAIModel,
			BaseURL: f.cfg.OpenAIBaseURL,
			Logger:  f.cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}
