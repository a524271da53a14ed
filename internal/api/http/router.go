package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Guilds         *handlers.GuildsHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/guilds/:guildId/ticket-types", cfg.Guilds.ListTicketTypes)
	protected.Get("/tickets/:channelId", cfg.Tickets.GetTicket)
}
