package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluator/internal/dto"
	"github.com/noah-isme/gema-evaluator/internal/service"
	"github.com/noah-isme/gema-evaluator/internal/utils"
)

// SessionHandler manages session, settings, credential and rubric endpoints.
type SessionHandler struct {
	service service.SessionService
	uploads service.UploadPolicy
	logger  zerolog.Logger
}

// NewSessionHandler builds a session handler instance.
func NewSessionHandler(service service.SessionService, uploads service.UploadPolicy, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		uploads: uploads,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/settings", h.updateSettings)
	router.Put("/:id/credential", h.setCredential)
	router.Post("/:id/rubric", h.uploadRubric)
	router.Get("/:id/rubric", h.rubric)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	var payload dto.SessionCreateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	session, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", session)
}

func (h *SessionHandler) get(c *fiber.Ctx) error {
	session, err := h.service.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "session retrieved", session)
}

func (h *SessionHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(requestContext(c), c.Params("id")); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "session deleted", nil)
}

func (h *SessionHandler) updateSettings(c *fiber.Ctx) error {
	var payload dto.SessionSettingsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.UpdateSettings(requestContext(c), c.Params("id"), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "settings updated", session)
}

func (h *SessionHandler) setCredential(c *fiber.Ctx) error {
	var payload dto.CredentialRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.SetCredential(requestContext(c), c.Params("id"), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "credential saved", session)
}

func (h *SessionHandler) uploadRubric(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	doc, err := h.uploads.Read(file)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	rubric, err := h.service.UploadRubric(requestContext(c), c.Params("id"), doc)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "rubric loaded", rubric)
}

func (h *SessionHandler) rubric(c *fiber.Ctx) error {
	rubric, err := h.service.Rubric(requestContext(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "rubric retrieved", rubric)
}
