package handler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluator/internal/middleware"
	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/internal/service"
	"github.com/noah-isme/gema-evaluator/internal/utils"
)

// EvaluationHandler exposes batch evaluation, audit listing and report download.
type EvaluationHandler struct {
	service   service.EvaluationService
	uploads   service.UploadPolicy
	rateLimit int
	logger    zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler. rateLimit caps evaluation requests per minute.
func NewEvaluationHandler(service service.EvaluationService, uploads service.UploadPolicy, rateLimit int, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:   service,
		uploads:   uploads,
		rateLimit: rateLimit,
		logger:    logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the routes to a router group mounted at /sessions/:id/evaluations.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("", middleware.RateLimit("evaluate", h.rateLimit, time.Minute), h.evaluate)
	router.Get("", h.list)
	router.Get("/:evaluationID/download", h.download)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form with files is required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}

	documents, err := h.uploads.ReadAll(files)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	batch, err := h.service.Evaluate(requestContext(c), c.Params("id"), documents)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Str("session_id", batch.SessionID).
		Int("files", batch.Total).
		Msg("evaluation request served")

	return utils.OK(c, batch.Results, "evaluation finished", fiber.Map{
		"total":         batch.Total,
		"completed":     batch.Completed,
		"failed":        batch.Failed,
		"unprocessable": batch.Skipped,
	})
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	history, err := h.service.List(requestContext(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.OK(c, history.Records, "evaluations retrieved", fiber.Map{
		"total":         len(history.Records),
		"completed":     history.Counts[models.EvaluationStatusCompleted],
		"failed":        history.Counts[models.EvaluationStatusFailed],
		"unprocessable": history.Counts[models.EvaluationStatusUnprocessable],
	})
}

func (h *EvaluationHandler) download(c *fiber.Ctx) error {
	report, err := h.service.Download(requestContext(c), c.Params("id"), c.Params("evaluationID"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	if report.ArchiveURL != "" {
		return c.Redirect(report.ArchiveURL, fiber.StatusFound)
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, contentDisposition(report.DownloadName))
	return c.SendString(report.Feedback)
}

func contentDisposition(name string) string {
	quoted := strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(name)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, quoted, url.PathEscape(quoted))
}
