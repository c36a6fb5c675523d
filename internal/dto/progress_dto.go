package dto

import "time"

// Progress stages published while a batch is evaluated.
const (
	ProgressStageProcessing = "processing"
	ProgressStageDone       = "done"
)

// ProgressEvent reports the state of one file within an evaluation batch.
type ProgressEvent struct {
	SessionID string    `json:"session_id"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	FileName  string    `json:"file_name"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status,omitempty"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}
