package dto

import (
	"time"

	"github.com/noah-isme/gema-evaluator/internal/models"
)

// PreviewLimit is the number of characters of submission text echoed back.
const PreviewLimit = 5000

// ScoreResponse is a parsed numeric grade.
type ScoreResponse struct {
	Value float64 `json:"value"`
	OutOf float64 `json:"out_of"`
}

// EvaluationResponse is the outcome of evaluating one uploaded file.
type EvaluationResponse struct {
	ID             string         `json:"id"`
	Position       int            `json:"position"`
	FileName       string         `json:"file_name"`
	SubmissionName string         `json:"submission_name"`
	Status         string         `json:"status"`
	ContentType    string         `json:"content_type"`
	Message        string         `json:"message,omitempty"`
	Feedback       string         `json:"feedback"`
	FeedbackHTML   string         `json:"feedback_html,omitempty"`
	Sections       []string       `json:"sections,omitempty"`
	Score          *ScoreResponse `json:"score,omitempty"`
	Preview        string         `json:"preview,omitempty"`
	Characters     int            `json:"characters"`
	DownloadName   string         `json:"download_name"`
	DurationMS     int64          `json:"duration_ms"`
	ReportURL      string         `json:"report_url,omitempty"`
}

// EvaluationBatchResponse summarizes a multi-file evaluation request.
type EvaluationBatchResponse struct {
	SessionID string               `json:"session_id"`
	Total     int                  `json:"total"`
	Completed int                  `json:"completed"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"unprocessable"`
	Results   []EvaluationResponse `json:"results"`
}

// EvaluationRecordResponse lists audit entries for a session.
type EvaluationRecordResponse struct {
	ID             string                 `json:"id"`
	Position       int                    `json:"position"`
	FileName       string                 `json:"file_name"`
	SubmissionName string                 `json:"submission_name"`
	Status         string                 `json:"status"`
	Format         string                 `json:"format"`
	Score          *ScoreResponse         `json:"score,omitempty"`
	Provider       string                 `json:"provider"`
	Model          string                 `json:"model"`
	Sampling       map[string]interface{} `json:"sampling"`
	DurationMS     int64                  `json:"duration_ms"`
	ReportURL      string                 `json:"report_url,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// EvaluationHistoryResponse is the audit trail of a session with per-status totals.
type EvaluationHistoryResponse struct {
	Records []EvaluationRecordResponse
	Counts  map[string]int64
}

// NewEvaluationRecordResponse maps an audit record to its response shape.
func NewEvaluationRecordResponse(record models.EvaluationRecord) EvaluationRecordResponse {
	resp := EvaluationRecordResponse{
		ID:             record.ID,
		Position:       record.Position,
		FileName:       record.FileName,
		SubmissionName: record.SubmissionName,
		Status:         record.Status,
		Format:         record.Format,
		Provider:       record.Provider,
		Model:          record.Model,
		Sampling:       map[string]interface{}(record.Sampling),
		DurationMS:     record.DurationMS,
		ReportURL:      record.ReportURL,
		CreatedAt:      record.CreatedAt,
	}
	if record.HasScore() {
		outOf := 10.0
		if record.ScoreOutOf != nil {
			outOf = *record.ScoreOutOf
		}
		resp.Score = &ScoreResponse{Value: *record.Score, OutOf: outOf}
	}
	return resp
}

// Preview truncates text to PreviewLimit characters, appending an ellipsis when cut.
func Preview(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text, false
	}
	return string(runes[:PreviewLimit]) + "...", true
}
