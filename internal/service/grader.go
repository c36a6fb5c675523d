package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-evaluator/internal/dto"
	"github.com/noah-isme/gema-evaluator/internal/extract"
	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/internal/observability"
	"github.com/noah-isme/gema-evaluator/internal/render"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

// GradeOptions carries the rubric and generation settings shared by a batch.
type GradeOptions struct {
	Rubric       string
	IncludeScore bool
	Sampling     ai.Sampling
}

// GradeOutcome is the result of grading one document.
type GradeOutcome struct {
	Response dto.EvaluationResponse
	Format   extract.Format
	Result   ai.EvaluationResult
}

// Grader runs the extract, prompt, evaluate and render pipeline for a single document.
type Grader struct {
	uploads  UploadPolicy
	renderer *render.Markdown
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewGrader builds a grader that scans documents against uploads.
func NewGrader(uploads UploadPolicy, renderer *render.Markdown, logger zerolog.Logger) *Grader {
	if renderer == nil {
		renderer = render.NewMarkdown()
	}
	return &Grader{
		uploads:  uploads,
		renderer: renderer,
		logger:   logger.With().Str("component", "grader").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-evaluator/internal/service/grader"),
	}
}

// UnprocessableMessage is shown for documents whose text could not be read.
func UnprocessableMessage(fileName string) string {
	return fmt.Sprintf("No se pudo procesar el archivo %s", fileName)
}

// Grade never returns an error: unreadable documents and model failures are reported
// through the outcome status so a batch can continue.
func (g *Grader) Grade(ctx context.Context, evaluator ai.Evaluator, doc Document, opts GradeOptions) GradeOutcome {
	ctx, span := g.tracer.Start(ctx, "grader.grade", trace.WithAttributes(
		attribute.String("document.name", doc.Name),
		attribute.Int("document.size", len(doc.Data)),
		attribute.Bool("grade.include_score", opts.IncludeScore),
	))
	defer span.End()

	start := time.Now()
	response := dto.EvaluationResponse{
		FileName:       doc.Name,
		SubmissionName: doc.SubmissionName(),
		DownloadName:   doc.DownloadName(),
	}
	finish := func(outcome GradeOutcome) GradeOutcome {
		outcome.Response.DurationMS = time.Since(start).Milliseconds()
		observability.Evaluations().WithLabelValues(outcome.Response.Status).Inc()
		observability.EvaluationDuration().Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("grade.status", outcome.Response.Status))
		return outcome
	}

	text, format, err := g.extract(ctx, doc)
	response.ContentType = format.MIMEType()
	if err != nil {
		g.logger.Warn().Err(err).Str("file_name", doc.Name).Str("format", string(format)).Msg("document could not be processed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "unprocessable")
		response.Status = models.EvaluationStatusUnprocessable
		response.Message = UnprocessableMessage(doc.Name)
		return finish(GradeOutcome{Response: response, Format: format})
	}

	response.Characters = len([]rune(text))
	response.Preview, _ = dto.Preview(text)

	prompt := ai.BuildPrompt(opts.Rubric, text, response.SubmissionName, ai.PromptOptions{IncludeScore: opts.IncludeScore})
	result, err := evaluator.Evaluate(ctx, ai.EvaluationInput{Prompt: prompt, Sampling: opts.Sampling})
	if err != nil {
		g.logger.Error().Err(err).Str("file_name", doc.Name).Msg("ai evaluation failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		response.Status = models.EvaluationStatusFailed
		response.Feedback = ai.FailureText(err)
		return finish(GradeOutcome{Response: response, Format: format, Result: result})
	}

	response.Status = models.EvaluationStatusCompleted
	response.Feedback = result.Text
	if opts.IncludeScore {
		if score, ok := ai.ExtractScore(result.Text); ok {
			response.Score = &dto.ScoreResponse{Value: score.Value, OutOf: score.OutOf}
		} else {
			g.logger.Debug().Str("file_name", doc.Name).Msg("feedback carries no score marker")
		}
	}

	html, err := g.renderer.HTML(result.Text)
	if err != nil {
		g.logger.Warn().Err(err).Str("file_name", doc.Name).Msg("render feedback markdown")
	} else {
		response.FeedbackHTML = html
	}
	response.Sections = g.renderer.Sections(result.Text)

	span.SetStatus(codes.Ok, "graded")
	return finish(GradeOutcome{Response: response, Format: format, Result: result})
}

func (g *Grader) extract(ctx context.Context, doc Document) (string, extract.Format, error) {
	format := extract.DetectFormat(doc.Data, doc.Name)
	if format == extract.FormatUnknown {
		observability.Extractions().WithLabelValues("unknown", "unsupported").Inc()
		return "", format, extract.ErrUnsupportedFormat
	}
	if err := g.uploads.Scan(doc, format); err != nil {
		observability.Extractions().WithLabelValues(string(format), "rejected").Inc()
		return "", format, err
	}

	text, format, err := extract.Text(ctx, doc.Data, doc.Name)
	if err != nil {
		observability.Extractions().WithLabelValues(string(format), "failed").Inc()
		return "", format, err
	}
	if strings.TrimSpace(text) == "" {
		observability.Extractions().WithLabelValues(string(format), "empty").Inc()
		return "", format, errors.New("document has no extractable text")
	}

	observability.Extractions().WithLabelValues(string(format), "ok").Inc()
	return text, format, nil
}
