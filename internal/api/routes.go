// Package api wires the HTTP surface of the scheduler.
package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
)

func RegisterRoutes(app *fiber.App, auth *middleware.AuthMiddleware, posts *handlers.PostHandler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := app.Group("/api", auth.AuthMiddleware())
	api.Get("/queue", posts.QueueStatus)
	api.Post("/confirmations", posts.Confirm)

	p := api.Group("/posts/:id")
	p.Post("/schedule", posts.SchedulePost)
	p.Post("/publish", posts.PublishPost)
	p.Post("/cancel", posts.CancelPost)
	p.Post("/submit", posts.SubmitPost)
	p.Post("/approve", posts.ApprovePost)
}
