package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-evaluator/internal/dto"
	"github.com/noah-isme/gema-evaluator/internal/extract"
	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/internal/repository"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

var (
	// ErrSessionNotFound indicates the session expired or never existed.
	ErrSessionNotFound = repository.ErrSessionNotFound
	// ErrRubricMissing indicates evaluation was requested before a rubric was loaded.
	ErrRubricMissing = errors.New("rubric has not been uploaded")
	// ErrCredentialMissing indicates no API key is available for the session provider.
	ErrCredentialMissing = errors.New("api credential has not been provided")
	// ErrRubricUnreadable indicates the rubric PDF yielded no text.
	ErrRubricUnreadable = errors.New("rubric could not be read")
)

// SessionConfig holds server-side defaults applied to new sessions.
type SessionConfig struct {
	Provider    string
	Temperature float32
	MaxTokens   int
	// FallbackKey returns the server key for a provider, or "" when none is configured.
	FallbackKey func(provider string) string
}

// SessionService manages the interactive state of an evaluation session.
type SessionService interface {
	Create(ctx context.Context, payload dto.SessionCreateRequest) (dto.SessionResponse, error)
	Get(ctx context.Context, id string) (dto.SessionResponse, error)
	UpdateSettings(ctx context.Context, id string, payload dto.SessionSettingsRequest) (dto.SessionResponse, error)
	SetCredential(ctx context.Context, id string, payload dto.CredentialRequest) (dto.SessionResponse, error)
	UploadRubric(ctx context.Context, id string, doc Document) (dto.RubricResponse, error)
	Rubric(ctx context.Context, id string) (dto.RubricResponse, error)
	Delete(ctx context.Context, id string) error
	Load(ctx context.Context, id string) (models.Session, error)
	ResolveCredential(session models.Session) (string, error)
}

type sessionService struct {
	store     repository.SessionStore
	validator *validator.Validate
	cfg       SessionConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSessionService constructs a session service backed by store.
func NewSessionService(store repository.SessionStore, validate *validator.Validate, cfg SessionConfig, logger zerolog.Logger) SessionService {
	if cfg.Provider == "" {
		cfg.Provider = ai.ProviderGemini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1200
	}
	if cfg.FallbackKey == nil {
		cfg.FallbackKey = func(string) string { return "" }
	}

	return &sessionService{
		store:     store,
		validator: validate,
		cfg:       cfg,
		logger:    logger.With().Str("component", "session_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-evaluator/internal/service/session"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) Create(ctx context.Context, payload dto.SessionCreateRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "session.create")
	defer span.End()

	now := s.now()
	session := models.Session{
		ID:         uuid.NewString(),
		Provider:   s.cfg.Provider,
		Credential: strings.TrimSpace(payload.Credential),
		Settings: models.SessionSettings{
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		},
		CreatedAt: now,
	}
	if payload.Provider != "" {
		session.Provider = payload.Provider
	}
	if payload.Settings != nil {
		applySettings(&session.Settings, *payload.Settings)
	}
	span.SetAttributes(attribute.String("session.id", session.ID), attribute.String("session.provider", session.Provider))

	if err := s.save(ctx, &session); err != nil {
		span.RecordError(err)
		return dto.SessionResponse{}, err
	}

	s.logger.Info().Str("session_id", session.ID).Str("provider", session.Provider).Msg("session created")
	return s.toResponse(session), nil
}

func (s *sessionService) Get(ctx context.Context, id string) (dto.SessionResponse, error) {
	session, err := s.Load(ctx, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	return s.toResponse(session), nil
}

func (s *sessionService) UpdateSettings(ctx context.Context, id string, payload dto.SessionSettingsRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	session, err := s.Load(ctx, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	applySettings(&session.Settings, payload)
	if err := s.save(ctx, &session); err != nil {
		return dto.SessionResponse{}, err
	}
	return s.toResponse(session), nil
}

func (s *sessionService) SetCredential(ctx context.Context, id string, payload dto.CredentialRequest) (dto.SessionResponse, error) {
	payload.Credential = strings.TrimSpace(payload.Credential)
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	session, err := s.Load(ctx, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	session.Credential = payload.Credential
	if payload.Provider != "" {
		session.Provider = payload.Provider
	}
	if err := s.save(ctx, &session); err != nil {
		return dto.SessionResponse{}, err
	}

	s.logger.Info().Str("session_id", id).Str("provider", session.Provider).Msg("session credential replaced")
	return s.toResponse(session), nil
}

func (s *sessionService) UploadRubric(ctx context.Context, id string, doc Document) (dto.RubricResponse, error) {
	ctx, span := s.tracer.Start(ctx, "session.upload_rubric", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("rubric.name", doc.Name),
	))
	defer span.End()

	session, err := s.Load(ctx, id)
	if err != nil {
		return dto.RubricResponse{}, err
	}

	if format := extract.DetectFormat(doc.Data, doc.Name); format != extract.FormatPDF {
		return dto.RubricResponse{}, fmt.Errorf("rubric must be a pdf: %w", ErrUploadTypeNotAllowed)
	}

	text, _, err := extract.Text(ctx, doc.Data, doc.Name)
	if err != nil {
		span.RecordError(err)
		return dto.RubricResponse{}, fmt.Errorf("%w: %v", ErrRubricUnreadable, err)
	}
	if strings.TrimSpace(text) == "" {
		return dto.RubricResponse{}, fmt.Errorf("%w: no text found", ErrRubricUnreadable)
	}

	session.RubricName = doc.Name
	session.RubricText = text
	if err := s.save(ctx, &session); err != nil {
		return dto.RubricResponse{}, err
	}

	s.logger.Info().Str("session_id", id).Str("rubric", doc.Name).Int("characters", len([]rune(text))).Msg("rubric loaded")
	return rubricResponse(session), nil
}

func (s *sessionService) Rubric(ctx context.Context, id string) (dto.RubricResponse, error) {
	session, err := s.Load(ctx, id)
	if err != nil {
		return dto.RubricResponse{}, err
	}
	if !session.HasRubric() {
		return dto.RubricResponse{}, ErrRubricMissing
	}
	return rubricResponse(session), nil
}

// Delete discards the session state and its stored reports. Audit records are kept.
func (s *sessionService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionNotFound
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.Info().Str("session_id", id).Msg("session deleted")
	return nil
}

// Load fetches the session and slides its expiry.
func (s *sessionService) Load(ctx context.Context, id string) (models.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Session{}, ErrSessionNotFound
	}

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	if err := s.store.Touch(ctx, id); err != nil {
		return models.Session{}, err
	}
	session.ExpiresAt = s.now().Add(s.store.TTL())
	return session, nil
}

// ResolveCredential prefers the key entered in the session over the server key.
func (s *sessionService) ResolveCredential(session models.Session) (string, error) {
	if session.HasCredential() {
		return session.Credential, nil
	}
	if key := strings.TrimSpace(s.cfg.FallbackKey(session.Provider)); key != "" {
		return key, nil
	}
	return "", ErrCredentialMissing
}

func (s *sessionService) save(ctx context.Context, session *models.Session) error {
	now := s.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.store.TTL())
	return s.store.Save(ctx, *session)
}

func (s *sessionService) toResponse(session models.Session) dto.SessionResponse {
	return dto.NewSessionResponse(session, s.cfg.FallbackKey(session.Provider) != "")
}

func applySettings(settings *models.SessionSettings, payload dto.SessionSettingsRequest) {
	if payload.Temperature != nil {
		settings.Temperature = *payload.Temperature
	}
	if payload.MaxTokens != nil {
		settings.MaxTokens = *payload.MaxTokens
	}
	if payload.IncludeScore != nil {
		settings.IncludeScore = *payload.IncludeScore
	}
}

func rubricResponse(session models.Session) dto.RubricResponse {
	preview, truncated := dto.Preview(session.RubricText)
	return dto.RubricResponse{
		FileName:   session.RubricName,
		Preview:    preview,
		Characters: len([]rune(session.RubricText)),
		Truncated:  truncated,
	}
}
