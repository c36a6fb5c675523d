package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-evaluator/internal/config"
	"github.com/noah-isme/gema-evaluator/internal/handler"
	"github.com/noah-isme/gema-evaluator/internal/middleware"
	"github.com/noah-isme/gema-evaluator/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler    *handler.SessionHandler
	EvaluationHandler *handler.EvaluationHandler
	ProgressHandler   *handler.ProgressHandler
	HealthChecks      map[string]handler.HealthCheckFunc
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	sessions := api.Group("/sessions")
	middleware.Protect(sessions, cfg.JWTSecret, middleware.RoleTeacher, middleware.RoleAdmin)

	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(sessions.Group("/:id/evaluations"))
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(sessions.Group("/:id/progress"))
	}
	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(sessions)
	}
}
