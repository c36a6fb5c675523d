package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the evaluator service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	LogLevel               string
	AccessLog              bool
	CORSAllowOrigins       string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	NATSSubject            string
	JWTSecret              string
	SessionTTL             time.Duration
	AIProvider             string
	GeminiAPIKey           string
	GeminiModel            string
	OpenAIAPIKey           string
	OpenAIModel            string
	DefaultTemperature     float32
	DefaultMaxTokens       int
	TopP                   float32
	MaxUploadMB            int
	EvaluationWorkers      int
	EvaluateRateLimit      int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AuthEnabled reports whether bearer tokens are required on the session routes.
func (c Config) AuthEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

// CloudinaryEnabled reports whether evaluation reports should be archived.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ProviderAPIKey returns the server-side credential configured for the given provider.
func (c Config) ProviderAPIKey(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return c.OpenAIAPIKey
	default:
		return c.GeminiAPIKey
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EVALUATOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Evaluator")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.access", true)
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("nats.subject", "evaluator.progress")
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.5)
	v.SetDefault("ai.max_tokens", 1200)
	v.SetDefault("ai.top_p", 0.9)
	v.SetDefault("upload.max_mb", 20)
	v.SetDefault("evaluation.workers", 1)
	v.SetDefault("evaluation.rate_limit", 30)
	v.SetDefault("cloudinary.folder", "gema/evaluations")

	ttlString := v.GetString("session.ttl")
	if ttlString == "" {
		ttlString = "2h"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid session ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		AccessLog:              v.GetBool("log.access"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		SessionTTL:             ttl,
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		GeminiAPIKey:           v.GetString("gemini.api_key"),
		GeminiModel:            v.GetString("gemini.model"),
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIModel:            v.GetString("openai.model"),
		DefaultTemperature:     float32(v.GetFloat64("ai.temperature")),
		DefaultMaxTokens:       v.GetInt("ai.max_tokens"),
		TopP:                   float32(v.GetFloat64("ai.top_p")),
		MaxUploadMB:            v.GetInt("upload.max_mb"),
		EvaluationWorkers:      v.GetInt("evaluation.workers"),
		EvaluateRateLimit:      v.GetInt("evaluation.rate_limit"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.AIProvider != "gemini" && cfg.AIProvider != "openai" {
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	if cfg.DefaultTemperature < 0 || cfg.DefaultTemperature > 1 {
		cfg.DefaultTemperature = 0.5
	}

	if cfg.DefaultMaxTokens < 100 || cfg.DefaultMaxTokens > 2000 {
		cfg.DefaultMaxTokens = 1200
	}

	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 0.9
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}

	if cfg.EvaluationWorkers <= 0 {
		cfg.EvaluationWorkers = 1
	}

	return cfg, nil
}
