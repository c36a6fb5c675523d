package dto

import (
	"time"

	"github.com/noah-isme/gema-evaluator/internal/models"
)

// SessionSettingsRequest adjusts sampling and template options. Nil fields are left unchanged.
type SessionSettingsRequest struct {
	Temperature  *float32 `json:"temperature" validate:"omitempty,gte=0,lte=1"`
	MaxTokens    *int     `json:"max_tokens" validate:"omitempty,gte=100,lte=2000"`
	IncludeScore *bool    `json:"include_score"`
}

// SessionCreateRequest is the optional body for opening a session.
type SessionCreateRequest struct {
	Provider   string                  `json:"provider" validate:"omitempty,oneof=gemini openai"`
	Credential string                  `json:"credential" validate:"omitempty,min=8,max=512"`
	Settings   *SessionSettingsRequest `json:"settings" validate:"omitempty"`
}

// CredentialRequest replaces the session API key.
type CredentialRequest struct {
	Provider   string `json:"provider" validate:"omitempty,oneof=gemini openai"`
	Credential string `json:"credential" validate:"required,min=8,max=512"`
}

// SessionResponse is returned for session reads. The credential is never echoed.
type SessionResponse struct {
	ID              string                 `json:"id"`
	Provider        string                 `json:"provider"`
	CredentialSet   bool                   `json:"credential_set"`
	CredentialHint  string                 `json:"credential_hint,omitempty"`
	RubricLoaded    bool                   `json:"rubric_loaded"`
	RubricName      string                 `json:"rubric_name,omitempty"`
	Settings        models.SessionSettings `json:"settings"`
	ReadyToEvaluate bool                   `json:"ready_to_evaluate"`
	CreatedAt       time.Time              `json:"created_at"`
	ExpiresAt       time.Time              `json:"expires_at"`
}

// RubricResponse previews extracted rubric text.
type RubricResponse struct {
	FileName   string `json:"file_name"`
	Preview    string `json:"preview"`
	Characters int    `json:"characters"`
	Truncated  bool   `json:"truncated"`
}

// NewSessionResponse maps a session to its public view. fallbackKey reports whether the
// server holds a key for the session's provider.
func NewSessionResponse(session models.Session, fallbackKey bool) SessionResponse {
	return SessionResponse{
		ID:              session.ID,
		Provider:        session.Provider,
		CredentialSet:   session.HasCredential(),
		CredentialHint:  MaskCredential(session.Credential),
		RubricLoaded:    session.HasRubric(),
		RubricName:      session.RubricName,
		Settings:        session.Settings,
		ReadyToEvaluate: session.HasRubric() && (session.HasCredential() || fallbackKey),
		CreatedAt:       session.CreatedAt,
		ExpiresAt:       session.ExpiresAt,
	}
}

// MaskCredential keeps the last four characters of a key.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	runes := []rune(credential)
	if len(runes) <= 4 {
		return "****"
	}
	return "****" + string(runes[len(runes)-4:])
}
