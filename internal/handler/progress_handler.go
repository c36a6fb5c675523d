package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluator/internal/service"
)

const (
	progressWriteTimeout = 10 * time.Second
	progressPingInterval = 30 * time.Second
)

// ProgressHandler streams evaluation progress for a session over a websocket.
type ProgressHandler struct {
	sessions service.SessionService
	progress service.ProgressService
	logger   zerolog.Logger
}

// NewProgressHandler creates a progress handler instance.
func NewProgressHandler(sessions service.SessionService, progress service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		sessions: sessions,
		progress: progress,
		logger:   logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds the websocket route under a router group mounted at /sessions/:id/progress.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := h.sessions.Load(requestContext(c), c.Params("id")); err != nil {
			return handleServiceError(c, h.logger, err)
		}
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.stream))
}

func (h *ProgressHandler) stream(conn *websocket.Conn) {
	sessionID := conn.Params("id")
	events, cancel := h.progress.Subscribe(sessionID)
	defer cancel()

	h.logger.Info().Str("session_id", sessionID).Msg("progress websocket connected")
	defer h.logger.Info().Str("session_id", sessionID).Msg("progress websocket disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(progressPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Str("session_id", sessionID).Msg("progress write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(progressWriteTimeout)); err != nil {
				return
			}
		}
	}
}
