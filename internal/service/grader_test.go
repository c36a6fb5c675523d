package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-evaluator/internal/extract"
	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

var gradeOpts = GradeOptions{
	Rubric:   "Claridad y estructura",
	Sampling: ai.Sampling{Temperature: 0.5, MaxTokens: 1200, TopP: 0.9},
}

func TestGraderCompletesDOCXSubmission(t *testing.T) {
	evaluator := &fakeEvaluator{reply: func(string) string {
		return "## PUNTOS FUERTES\n- Claro\n\n## ÁREAS DE MEJORA\n- Citas\n\nCALIFICACIÓN: 8/10"
	}}
	grader := NewGrader(NewUploadPolicy(5), nil, testLogger())

	opts := gradeOpts
	opts.IncludeScore = true
	outcome := grader.Grade(context.Background(), evaluator,
		Document{Name: "ensayo final.docx", Data: buildDOCX(t, "Introduccion", "Conclusiones")}, opts)

	resp := outcome.Response
	require.Equal(t, models.EvaluationStatusCompleted, resp.Status)
	require.Equal(t, extract.FormatDOCX, outcome.Format)
	require.Equal(t, "ensayo final", resp.SubmissionName)
	require.Equal(t, "Evaluacion_ensayo final.txt", resp.DownloadName)
	require.Equal(t, "Introduccion\nConclusiones", resp.Preview)
	require.Equal(t, len([]rune("Introduccion\nConclusiones")), resp.Characters)
	require.NotNil(t, resp.Score)
	require.InDelta(t, 8, resp.Score.Value, 0.001)
	require.Contains(t, resp.FeedbackHTML, "<h2")
	require.Equal(t, []string{"PUNTOS FUERTES", "ÁREAS DE MEJORA"}, resp.Sections)

	require.Len(t, evaluator.prompts, 1)
	require.Contains(t, evaluator.prompts[0], "Claridad y estructura")
	require.Contains(t, evaluator.prompts[0], "Introduccion\nConclusiones")
	require.Contains(t, evaluator.prompts[0], "DOCENTE ENSAYO FINAL:")
	require.Contains(t, evaluator.prompts[0], ai.ScoreMarker)
}

func TestGraderSkipsScoreWhenNotRequested(t *testing.T) {
	evaluator := &fakeEvaluator{reply: func(string) string { return "CALIFICACIÓN: 9/10" }}
	grader := NewGrader(NewUploadPolicy(5), nil, testLogger())

	outcome := grader.Grade(context.Background(), evaluator, Document{Name: "a.pdf", Data: rubricPDF(t)}, gradeOpts)
	require.Equal(t, models.EvaluationStatusCompleted, outcome.Response.Status)
	require.Nil(t, outcome.Response.Score)
	require.NotContains(t, evaluator.prompts[0], ai.ScoreMarker)
}

func TestGraderMarksUnsupportedDocumentUnprocessable(t *testing.T) {
	evaluator := &fakeEvaluator{}
	grader := NewGrader(NewUploadPolicy(5), nil, testLogger())

	outcome := grader.Grade(context.Background(), evaluator, Document{Name: "notas.txt", Data: []byte("texto")}, gradeOpts)
	require.Equal(t, models.EvaluationStatusUnprocessable, outcome.Response.Status)
	require.Equal(t, "No se pudo procesar el archivo notas.txt", outcome.Response.Message)
	require.Empty(t, outcome.Response.Feedback)
	require.Empty(t, evaluator.prompts)
}

func TestGraderMarksMalformedPDFUnprocessable(t *testing.T) {
	evaluator := &fakeEvaluator{}
	grader := NewGrader(NewUploadPolicy(5), nil, testLogger())

	var outcome GradeOutcome
	require.NotPanics(t, func() {
		outcome = grader.Grade(context.Background(), evaluator, Document{Name: "roto.pdf", Data: malformedPDF(t)}, gradeOpts)
	})
	require.Equal(t, models.EvaluationStatusUnprocessable, outcome.Response.Status)
	require.Equal(t, "No se pudo procesar el archivo roto.pdf", outcome.Response.Message)
	require.Empty(t, evaluator.prompts)
}

func TestGraderMarksEmptyDocumentUnprocessable(t *testing.T) {
	grader := NewGrader(NewUploadPolicy(5), nil, testLogger())

	outcome := grader.Grade(context.Background(), &fakeEvaluator{}, Document{Name: "vacio.docx", Data: buildDOCX(t, "", "")}, gradeOpts)
	require.Equal(t, models.EvaluationStatusUnprocessable, outcome.Response.Status)
}

func TestGraderConvertsModelFailureIntoPrefixedText(t *testing.T) {
	evaluator := &fakeEvaluator{failFor: "TRABAJO"}
	grader := NewGrader(NewUploadPolicy(5), nil, testLogger())

	outcome := grader.Grade(context.Background(), evaluator, Document{Name: "a.pdf", Data: rubricPDF(t)}, gradeOpts)
	require.Equal(t, models.EvaluationStatusFailed, outcome.Response.Status)
	require.True(t, strings.HasPrefix(outcome.Response.Feedback, ai.ErrorPrefix))
	require.Contains(t, outcome.Response.Feedback, "quota exceeded")
	require.Empty(t, outcome.Response.FeedbackHTML)
}
