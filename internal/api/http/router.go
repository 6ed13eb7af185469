package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/idea-service/internal/api/http/handlers"
	"github.com/spec-kit/idea-service/internal/auth"
	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Ideas          *handlers.IdeasHandler
	Directory      *handlers.DirectoryHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
	// RateLimiter is optional; nil disables limiting.
	RateLimiter *RateLimiter
	Metrics     *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	api := app.Group("/api")
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware())
	}

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/me", cfg.Auth.Me)

	protected.Post("/ideas", auth.RequireAction(domain.ActionCreateIdea), cfg.Ideas.CreateIdea)
	protected.Get("/ideas", cfg.Ideas.ListIdeas)
	protected.Get("/ideas/:id", cfg.Ideas.GetIdea)
	protected.Put("/ideas/:id", auth.RequireRole(domain.RoleOwner), cfg.Ideas.UpdateIdea)
	protected.Delete("/ideas/:id/assignee", auth.RequireRole(domain.RoleOwner), cfg.Ideas.Unassign)
	protected.Post("/ideas/:id/updates", cfg.Ideas.PostUpdate)

	protected.Get("/developers", auth.RequireAction(domain.ActionListDevelopers), cfg.Directory.ListDevelopers)
	protected.Get("/users", auth.RequireAction(domain.ActionListUsers), cfg.Directory.ListUsers)
	protected.Get("/stats", cfg.Stats.Stats)
}
