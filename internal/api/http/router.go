package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campuskit/helpdesk-service/internal/api/http/handlers"
	"github.com/campuskit/helpdesk-service/internal/auth"
	"github.com/campuskit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Statuses       *handlers.StatusesHandler
	Outbox         *handlers.OutboxHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)
	app.Post("/auth/register", cfg.Auth.Register)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)
	tickets.Post("/:id/rating", cfg.Tickets.Rate)

	staffOnly := tickets.Group("", auth.RequireHandler())
	staffOnly.Post("/:id/status", cfg.Tickets.ChangeStatus)
	staffOnly.Post("/:id/escalate", cfg.Tickets.Escalate)
	staffOnly.Post("/:id/forward", cfg.Tickets.Forward)
	staffOnly.Post("/:id/tat", cfg.Tickets.ExtendTAT)
	staffOnly.Get("/:id/history", cfg.Tickets.ListHistory)
	staffOnly.Post("/:id/reassign", cfg.Tickets.Reassign)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleSuperAdmin))
	admin.Get("/outbox/dead-letters", cfg.Outbox.ListDeadLetters)

	statuses := app.Group("/statuses")
	statuses.Get("", cfg.Statuses.List)
	statuses.Put("", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleSuperAdmin), cfg.Statuses.Upsert)
	statuses.Delete("/:value", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleSuperAdmin), cfg.Statuses.Delete)
}
