package ai

import (
	"context"
	"errors"
)

// ErrorPrefix marks evaluation text that carries a failure message instead of feedback.
const ErrorPrefix = "Error al evaluar: "

// ErrEmptyResponse indicates the model returned no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Sampling holds the tunable generation parameters.
type Sampling struct {
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float32 `json:"top_p"`
}

// EvaluationInput is a fully rendered prompt plus the sampling parameters to use.
type EvaluationInput struct {
	Prompt   string
	Sampling Sampling
}

// EvaluationResult is the free-form feedback returned by the model.
type EvaluationResult struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// Evaluator describes a hosted text model capable of grading a submission.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluationInput) (EvaluationResult, error)
}

// FailureText converts an evaluation error into the text shown in place of feedback.
func FailureText(err error) string {
	if err == nil {
		return ErrorPrefix + "unknown error"
	}
	return ErrorPrefix + err.Error()
}
