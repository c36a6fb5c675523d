package models

import "time"

// SessionSettings holds the user-tunable evaluation options.
type SessionSettings struct {
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	IncludeScore bool    `json:"include_score"`
}

// Session is the state of one interactive evaluation session. It lives in Redis.
type Session struct {
	ID         string          `json:"id"`
	Provider   string          `json:"provider"`
	Credential string          `json:"credential,omitempty"`
	RubricName string          `json:"rubric_name,omitempty"`
	RubricText string          `json:"rubric_text,omitempty"`
	Settings   SessionSettings `json:"settings"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// HasRubric reports whether rubric text has been loaded.
func (s Session) HasRubric() bool {
	return s.RubricText != ""
}

// HasCredential reports whether the user entered an API key.
func (s Session) HasCredential() bool {
	return s.Credential != ""
}

// StoredReport is the downloadable feedback of one evaluation, kept alongside the session.
type StoredReport struct {
	EvaluationID string `json:"evaluation_id"`
	FileName     string `json:"file_name"`
	DownloadName string `json:"download_name"`
	Feedback     string `json:"feedback"`
	// ArchiveURL is set when the report is served from the archive instead of Redis.
	ArchiveURL   string `json:"archive_url,omitempty"`
}
