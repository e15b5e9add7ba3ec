package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-enrollment-api/internal/config"
	"github.com/noah-isme/gema-enrollment-api/internal/handler"
	"github.com/noah-isme/gema-enrollment-api/internal/middleware"
	"github.com/noah-isme/gema-enrollment-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EnrollmentHandler     *handler.EnrollmentHandler
	CourseHandler         *handler.CourseHandler
	TransferCreditHandler *handler.TransferCreditHandler
	NotificationHandler   *handler.NotificationHandler
	ActivityHandler       *handler.AdminActivityHandler
	JWTMiddleware         fiber.Handler
	HealthChecks          []handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	staffOnly := middleware.RequireStaff()

	v2 := app.Group("/api/v2", jwtMiddleware)

	if deps.EnrollmentHandler != nil {
		enrollments := v2.Group("/enrollments", middleware.RateLimit("enrollments", cfg.EnrollmentRateLimit, time.Minute))
		deps.EnrollmentHandler.Register(enrollments)
	}

	if deps.CourseHandler != nil {
		courses := v2.Group("/courses")
		deps.CourseHandler.Register(courses)
		deps.CourseHandler.RegisterAnalytics(courses, staffOnly)
	}

	if deps.TransferCreditHandler != nil {
		deps.TransferCreditHandler.Register(v2.Group("/transfer-credits", staffOnly))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(v2.Group("/notifications"))
	}

	if deps.ActivityHandler != nil {
		admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin))
		deps.ActivityHandler.Register(admin.Group("/activities"))
	}
}
