// Package api wires the HTTP handlers onto a fiber router.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mit45/AutoSocial-Ai/internal/api/handlers"
	"github.com/mit45/AutoSocial-Ai/internal/api/middleware"
)

type Handlers struct {
	Posts    *handlers.PostHandler
	Content  *handlers.ContentHandler
	Accounts *handlers.AccountHandler
}

func SetupRoutes(app *fiber.App, auth *middleware.AuthMiddleware, h Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Use(auth.AuthMiddleware())

	// Accounts
	api.Post("/accounts", h.Accounts.CreateAccount)
	api.Get("/accounts", h.Accounts.ListAccounts)
	api.Get("/accounts/:id/automation", h.Accounts.GetAutomation)
	api.Put("/accounts/:id/automation", h.Accounts.UpdateAutomation)

	// Content
	api.Post("/generate", h.Content.Generate)
	api.Post("/pipeline/run", h.Content.Generate)
	api.Post("/render-image", h.Content.RenderImage)
	api.Post("/scheduled/check", h.Content.CheckScheduled)

	// Posts
	api.Get("/posts", h.Posts.ListPosts)
	api.Post("/posts", h.Posts.CreatePost)
	api.Get("/posts/:id", h.Posts.GetPost)
	api.Delete("/posts/:id", h.Posts.RemovePost)
	api.Post("/posts/:id/approve", h.Posts.ApprovePost)
	api.Post("/posts/:id/publish", h.Posts.PublishPost)
	api.Post("/posts/:id/republish", h.Posts.RepublishPost)
	api.Post("/approve/:id", h.Posts.ApprovePost)
	api.Post("/publish/:id", h.Posts.PublishPost)
}
