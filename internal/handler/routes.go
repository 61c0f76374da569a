package handler

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(
	app *fiber.App,
	authHandler *AuthHandler,
	workstreamHandler *WorkstreamHandler,
	healthHandler *HealthHandler,
	requireSession fiber.Handler,
	requireOwner fiber.Handler,
) {
	// Health checks (public)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)
	app.Get("/api/v0/info", healthHandler.Info)

	// Sign-in (public)
	app.Post("/authorize", authHandler.Authorize)

	// Workstream routes
	users := app.Group("/users")
	users.Get("/:address/workstreams", workstreamHandler.List)
	users.Get("/:address/workstreams/:id", workstreamHandler.Get)

	// Mutations on a user's workstreams require the session address to own
	// the path address; applications only require a valid session.
	users.Post("/:address/workstreams", requireOwner, workstreamHandler.Create)
	users.Put("/:address/workstreams/:id", requireOwner, workstreamHandler.Update)
	users.Post("/:address/workstreams/:id/applications", requireSession, workstreamHandler.Apply)
}
