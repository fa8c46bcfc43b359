package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/admin/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/closed", cfg.Tickets.ListClosed)
	protected.Post("/tickets/cleanup", cfg.Tickets.Cleanup)
	protected.Post("/tickets/:id/close", cfg.Tickets.CloseTicket)
	protected.Post("/tickets/:id/users", cfg.Tickets.AddUser)
	protected.Delete("/tickets/:id/users/:userId", cfg.Tickets.RemoveUser)
	protected.Post("/tickets/:id/transcript", cfg.Tickets.GenerateTranscript)
	protected.Get("/config", cfg.Tickets.GetConfig)
	protected.Patch("/config", cfg.Tickets.UpdateConfig)
	protected.Post("/panel", cfg.Tickets.PublishPanel)
	protected.Get("/metrics", cfg.Tickets.Metrics)
}
