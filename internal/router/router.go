package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/autograder-io/examflow-api/internal/config"
	"github.com/autograder-io/examflow-api/internal/handler"
	"github.com/autograder-io/examflow-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	ProgressHandler   *handler.ProgressHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	protected := app.Group("/api/v1", jwtMiddleware)

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(protected)
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(protected)
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(protected)
	}
}
