package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluator/internal/dto"
	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/internal/repository"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

var (
	// ErrEvaluationNotFound indicates no downloadable report exists for the evaluation.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrReportExpired indicates the evaluation is audited but its report is gone and was never archived.
	ErrReportExpired = errors.New("report expired")
)

// FileStorage abstracts the destination that archives feedback reports.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// EvaluationConfig tunes batch processing.
type EvaluationConfig struct {
	Workers int
	TopP    float32
}

// EvaluationService evaluates submissions against the session rubric.
type EvaluationService interface {
	Evaluate(ctx context.Context, sessionID string, documents []Document) (dto.EvaluationBatchResponse, error)
	List(ctx context.Context, sessionID string) (dto.EvaluationHistoryResponse, error)
	Download(ctx context.Context, sessionID, evaluationID string) (models.StoredReport, error)
}

type evaluationService struct {
	sessions SessionService
	store    repository.SessionStore
	repo     repository.EvaluationRepository
	factory  ai.Factory
	grader   *Grader
	progress ProgressService
	storage  FileStorage
	cfg      EvaluationConfig
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewEvaluationService wires the evaluation pipeline. progress and storage may be nil.
func NewEvaluationService(
	sessions SessionService,
	store repository.SessionStore,
	repo repository.EvaluationRepository,
	factory ai.Factory,
	grader *Grader,
	progress ProgressService,
	storage FileStorage,
	cfg EvaluationConfig,
	logger zerolog.Logger,
) EvaluationService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TopP <= 0 {
		cfg.TopP = 0.9
	}

	return &evaluationService{
		sessions: sessions,
		store:    store,
		repo:     repo,
		factory:  factory,
		grader:   grader,
		progress: progress,
		storage:  storage,
		cfg:      cfg,
		logger:   logger.With().Str("component", "evaluation_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-evaluator/internal/service/evaluation"),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, sessionID string, documents []Document) (dto.EvaluationBatchResponse, error) {
	if len(documents) == 0 {
		return dto.EvaluationBatchResponse{}, ErrUploadMissing
	}

	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return dto.EvaluationBatchResponse{}, err
	}
	if !session.HasRubric() {
		return dto.EvaluationBatchResponse{}, ErrRubricMissing
	}
	credential, err := s.sessions.ResolveCredential(session)
	if err != nil {
		return dto.EvaluationBatchResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "evaluation.batch", trace.WithAttributes(
		attribute.String("session.id", session.ID),
		attribute.Int("batch.size", len(documents)),
		attribute.String("ai.provider", session.Provider),
	))
	defer span.End()

	evaluator, err := s.factory.New(ctx, session.Provider, credential)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationBatchResponse{}, fmt.Errorf("build evaluator: %w", err)
	}

	opts := GradeOptions{
		Rubric:       session.RubricText,
		IncludeScore: session.Settings.IncludeScore,
		Sampling: ai.Sampling{
			Temperature: session.Settings.Temperature,
			MaxTokens:   session.Settings.MaxTokens,
			TopP:        s.cfg.TopP,
		},
	}

	results := make([]dto.EvaluationResponse, len(documents))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Workers)

	for i, doc := range documents {
		i, doc := i, doc
		group.Go(func() error {
			response, err := s.evaluateOne(groupCtx, session, evaluator, doc, i, len(documents), opts)
			if err != nil {
				return err
			}
			results[i] = response
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return dto.EvaluationBatchResponse{}, err
	}

	batch := dto.EvaluationBatchResponse{
		SessionID: session.ID,
		Total:     len(results),
		Results:   results,
	}
	for _, result := range results {
		switch result.Status {
		case models.EvaluationStatusCompleted:
			batch.Completed++
		case models.EvaluationStatusFailed:
			batch.Failed++
		case models.EvaluationStatusUnprocessable:
			batch.Skipped++
		}
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Int("total", batch.Total).
		Int("completed", batch.Completed).
		Int("failed", batch.Failed).
		Int("unprocessable", batch.Skipped).
		Msg("evaluation batch finished")

	return batch, nil
}

func (s *evaluationService) evaluateOne(ctx context.Context, session models.Session, evaluator ai.Evaluator, doc Document, index, total int, opts GradeOptions) (dto.EvaluationResponse, error) {
	s.publish(ctx, dto.ProgressEvent{
		SessionID: session.ID,
		Index:     index,
		Total:     total,
		FileName:  doc.Name,
		Stage:     dto.ProgressStageProcessing,
		Percent:   percent(index, total),
		Message:   fmt.Sprintf("Procesando %d/%d: %s", index+1, total, doc.Name),
	})

	outcome := s.grader.Grade(ctx, evaluator, doc, opts)
	response := outcome.Response
	response.ID = uuid.NewString()
	response.Position = index

	if response.Status != models.EvaluationStatusUnprocessable {
		report := models.StoredReport{
			EvaluationID: response.ID,
			FileName:     doc.Name,
			DownloadName: response.DownloadName,
			Feedback:     response.Feedback,
		}
		if err := s.store.SaveReport(ctx, session.ID, report); err != nil {
			return dto.EvaluationResponse{}, fmt.Errorf("store report for %s: %w", doc.Name, err)
		}
		response.ReportURL = s.archive(ctx, session.ID, response)
	}

	s.audit(ctx, session, response, outcome)

	s.publish(ctx, dto.ProgressEvent{
		SessionID: session.ID,
		Index:     index,
		Total:     total,
		FileName:  doc.Name,
		Stage:     dto.ProgressStageDone,
		Status:    response.Status,
		Percent:   percent(index+1, total),
		Message:   progressMessage(response),
	})

	return response, nil
}

func (s *evaluationService) archive(ctx context.Context, sessionID string, response dto.EvaluationResponse) string {
	if s.storage == nil {
		return ""
	}

	name := sessionID + "-" + response.ID + "-" + sanitizeFileName(response.DownloadName)
	url, err := s.storage.Upload(ctx, name, strings.NewReader(response.Feedback))
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Str("file_name", response.FileName).Msg("failed to archive report")
		return ""
	}
	return url
}

func (s *evaluationService) audit(ctx context.Context, session models.Session, response dto.EvaluationResponse, outcome GradeOutcome) {
	if s.repo == nil {
		return
	}

	record := models.EvaluationRecord{
		ID:             response.ID,
		SessionID:      session.ID,
		Position:       response.Position,
		FileName:       response.FileName,
		SubmissionName: response.SubmissionName,
		Format:         string(outcome.Format),
		Status:         response.Status,
		Provider:       session.Provider,
		Model:          outcome.Result.Model,
		Sampling: datatypes.JSONMap{
			"temperature":   session.Settings.Temperature,
			"max_tokens":    session.Settings.MaxTokens,
			"top_p":         s.cfg.TopP,
			"include_score": session.Settings.IncludeScore,
		},
		Characters:   response.Characters,
		InputTokens:  outcome.Result.InputTokens,
		OutputTokens: outcome.Result.OutputTokens,
		DurationMS:   response.DurationMS,
		ReportURL:    response.ReportURL,
		CreatedAt:    time.Now().UTC(),
	}
	if response.Score != nil {
		value, outOf := response.Score.Value, response.Score.OutOf
		record.Score = &value
		record.ScoreOutOf = &outOf
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Str("evaluation_id", record.ID).Msg("failed to store evaluation audit record")
	}
}

func (s *evaluationService) List(ctx context.Context, sessionID string) (dto.EvaluationHistoryResponse, error) {
	if _, err := s.sessions.Load(ctx, sessionID); err != nil {
		return dto.EvaluationHistoryResponse{}, err
	}

	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return dto.EvaluationHistoryResponse{}, err
	}
	counts, err := s.repo.CountByStatus(ctx, sessionID)
	if err != nil {
		return dto.EvaluationHistoryResponse{}, err
	}

	responses := make([]dto.EvaluationRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewEvaluationRecordResponse(record))
	}
	return dto.EvaluationHistoryResponse{Records: responses, Counts: counts}, nil
}

func (s *evaluationService) Download(ctx context.Context, sessionID, evaluationID string) (models.StoredReport, error) {
	if _, err := s.sessions.Load(ctx, sessionID); err != nil {
		return models.StoredReport{}, err
	}

	report, err := s.store.GetReport(ctx, sessionID, evaluationID)
	if errors.Is(err, repository.ErrReportNotFound) {
		return s.archivedReport(ctx, sessionID, evaluationID)
	}
	if err != nil {
		return models.StoredReport{}, err
	}
	return report, nil
}

// archivedReport resolves a report missing from Redis through its audit record.
func (s *evaluationService) archivedReport(ctx context.Context, sessionID, evaluationID string) (models.StoredReport, error) {
	if s.repo == nil {
		return models.StoredReport{}, ErrEvaluationNotFound
	}

	record, err := s.repo.GetByID(ctx, sessionID, evaluationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StoredReport{}, ErrEvaluationNotFound
	}
	if err != nil {
		return models.StoredReport{}, err
	}
	if record.Status == models.EvaluationStatusUnprocessable {
		return models.StoredReport{}, ErrEvaluationNotFound
	}
	if record.ReportURL == "" {
		return models.StoredReport{}, ErrReportExpired
	}

	doc := Document{Name: record.FileName}
	return models.StoredReport{
		EvaluationID: record.ID,
		FileName:     record.FileName,
		DownloadName: doc.DownloadName(),
		ArchiveURL:   record.ReportURL,
	}, nil
}

func (s *evaluationService) publish(ctx context.Context, event dto.ProgressEvent) {
	if s.progress == nil {
		return
	}
	s.progress.Publish(ctx, event)
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}

func progressMessage(response dto.EvaluationResponse) string {
	switch response.Status {
	case models.EvaluationStatusUnprocessable:
		return response.Message
	case models.EvaluationStatusFailed:
		return response.Feedback
	default:
		return fmt.Sprintf("Evaluación completada: %s", response.FileName)
	}
}
