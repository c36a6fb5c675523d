package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// EvaluationStatusCompleted indicates the model returned feedback.
	EvaluationStatusCompleted = "completed"
	// EvaluationStatusFailed indicates the model call failed and the feedback carries the error.
	EvaluationStatusFailed = "failed"
	// EvaluationStatusUnprocessable indicates the document could not be read.
	EvaluationStatusUnprocessable = "unprocessable"
)

// EvaluationRecord is the audit trail of one evaluated submission. Document text is never stored.
type EvaluationRecord struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	SessionID      string            `gorm:"size:36;index;not null" json:"session_id"`
	Position       int               `gorm:"not null" json:"position"`
	FileName       string            `gorm:"size:255;not null" json:"file_name"`
	SubmissionName string            `gorm:"size:255" json:"submission_name"`
	Format         string            `gorm:"size:16" json:"format"`
	Status         string            `gorm:"size:32;index;not null" json:"status"`
	Score          *float64          `json:"score,omitempty"`
	ScoreOutOf     *float64          `json:"score_out_of,omitempty"`
	Provider       string            `gorm:"size:32" json:"provider"`
	Model          string            `gorm:"size:64" json:"model"`
	Sampling       datatypes.JSONMap `json:"sampling"`
	Characters     int               `json:"characters"`
	InputTokens    int               `json:"input_tokens"`
	OutputTokens   int               `json:"output_tokens"`
	DurationMS     int64             `json:"duration_ms"`
	ReportURL      string            `gorm:"size:512" json:"report_url,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// TableName pins the audit table name.
func (EvaluationRecord) TableName() string {
	return "evaluation_records"
}

// HasScore reports whether a numeric grade was extracted.
func (r EvaluationRecord) HasScore() bool {
	return r.Score != nil
}
