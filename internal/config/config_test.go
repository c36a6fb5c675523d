package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("EVALUATOR_GEMINI_API_KEY", "gemini-key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "GEMA Evaluator", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "gemini", cfg.AIProvider)
	require.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.InDelta(t, 0.5, cfg.DefaultTemperature, 0.0001)
	require.Equal(t, 1200, cfg.DefaultMaxTokens)
	require.InDelta(t, 0.9, cfg.TopP, 0.0001)
	require.Equal(t, 1, cfg.EvaluationWorkers)
	require.Equal(t, "gemini-key", cfg.ProviderAPIKey("gemini"))
	require.False(t, cfg.AuthEnabled())
	require.False(t, cfg.CloudinaryEnabled())
}

func TestLoadClampsOutOfRangeSampling(t *testing.T) {
	t.Setenv("EVALUATOR_AI_TEMPERATURE", "3")
	t.Setenv("EVALUATOR_AI_MAX_TOKENS", "50000")
	t.Setenv("EVALUATOR_AI_TOP_P", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.InDelta(t, 0.5, cfg.DefaultTemperature, 0.0001)
	require.Equal(t, 1200, cfg.DefaultMaxTokens)
	require.InDelta(t, 0.9, cfg.TopP, 0.0001)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("EVALUATOR_AI_PROVIDER", "llama")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidSessionTTL(t *testing.T) {
	t.Setenv("EVALUATOR_SESSION_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
}

func TestProviderAPIKeySelectsOpenAI(t *testing.T) {
	cfg := Config{GeminiAPIKey: "g", OpenAIAPIKey: "o"}
	require.Equal(t, "o", cfg.ProviderAPIKey("OpenAI"))
	require.Equal(t, "g", cfg.ProviderAPIKey(""))
}
