package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// ProviderGemini identifies the Google Gemini backend.
const ProviderGemini = "gemini"

// GeminiConfig defines configuration options for the Gemini evaluator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  zerolog.Logger
}

// GeminiEvaluator implements Evaluator against the Gemini generateContent API.
type GeminiEvaluator struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiEvaluator configures a Gemini client bound to a single API key.
func NewGeminiEvaluator(ctx context.Context, cfg GeminiConfig) (*GeminiEvaluator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiEvaluator{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-evaluator/pkg/ai/gemini"),
		logger: logger.With().Str("provider", ProviderGemini).Logger(),
	}, nil
}

// Evaluate submits the prompt and returns the generated feedback text.
func (e *GeminiEvaluator) Evaluate(parent context.Context, input EvaluationInput) (EvaluationResult, error) {
	ctx, span := e.tracer.Start(parent, "gemini.evaluate", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.Int("max_tokens", input.Sampling.MaxTokens),
	))
	defer span.End()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(input.Sampling.Temperature),
		TopP:            genai.Ptr(input.Sampling.TopP),
		MaxOutputTokens: int32(input.Sampling.MaxTokens),
	}

	start := time.Now()
	resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model, genai.Text(input.Prompt), config)
	aiDuration.WithLabelValues(ProviderGemini, e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return EvaluationResult{}, e.fail(span, fmt.Errorf("gemini evaluate: %w", err))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return EvaluationResult{}, e.fail(span, ErrEmptyResponse)
	}

	result := EvaluationResult{
		Text:     text,
		Model:    e.cfg.Model,
		Provider: ProviderGemini,
	}
	if usage := resp.UsageMetadata; usage != nil {
		result.InputTokens = int(usage.PromptTokenCount)
		result.OutputTokens = int(usage.CandidatesTokenCount)
	}

	e.logger.Debug().
		Str("model", e.cfg.Model).
		Int("prompt_tokens", result.InputTokens).
		Int("completion_tokens", result.OutputTokens).
		Msg("gemini evaluation completed")

	return result, nil
}

func (e *GeminiEvaluator) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(ProviderGemini, e.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
