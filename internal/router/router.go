package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/eduflow-api/internal/config"
	"github.com/noah-isme/eduflow-api/internal/handler"
	"github.com/noah-isme/eduflow-api/internal/middleware"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler   *handler.SubmissionHandler
	GradingHandler      *handler.GradingHandler
	PaymentHandler      *handler.PaymentHandler
	NotificationHandler *handler.NotificationHandler
	UploadHandler       *handler.UploadHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	instructorOnly := middleware.RequireRole(models.RoleInstructor, models.RoleAdmin)

	// Submissions and grading
	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)

		assignments := api.Group("/assignments", jwtMiddleware)
		deps.SubmissionHandler.RegisterAssignmentRoutes(assignments)

		if deps.UploadHandler != nil {
			uploads := api.Group("/assignments", jwtMiddleware, middleware.RateLimit("upload", 20, time.Minute))
			deps.UploadHandler.RegisterAssignmentRoutes(uploads)
		}

		if deps.GradingHandler != nil {
			// Students may read their own grading history; everything else
			// is instructor territory.
			deps.GradingHandler.RegisterHistoryRoutes(submissions)

			gradedSubmissions := api.Group("/submissions", jwtMiddleware, instructorOnly)
			deps.GradingHandler.Register(gradedSubmissions)

			gradedAssignments := api.Group("/assignments", jwtMiddleware, instructorOnly)
			deps.GradingHandler.RegisterAssignmentRoutes(gradedAssignments)

			grading := api.Group("/grading", jwtMiddleware, instructorOnly)
			deps.GradingHandler.RegisterBulk(grading)
		}
	}

	// Payments: authenticated client routes plus the gateway webhook
	if deps.PaymentHandler != nil {
		payments := api.Group("/payments", jwtMiddleware)
		deps.PaymentHandler.Register(payments)

		webhooks := api.Group("/webhooks", middleware.RateLimit("webhook", 120, time.Minute))
		deps.PaymentHandler.RegisterWebhook(webhooks)
	}

	// Notification feed
	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
