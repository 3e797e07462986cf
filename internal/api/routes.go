package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"tasktracker/internal/api/handlers"
	"tasktracker/internal/middleware"
)

func RegisterRoutes(app *fiber.App, h *handlers.Handler, mediaRoot string) {
	app.Get("/healthz", h.Health)
	app.Static("/media", mediaRoot, fiber.Static{Browse: false})

	app.Use(h.Auth.Identify)

	// Auth
	app.Get("/register/", h.RegisterForm)
	app.Post("/register/", h.Register)
	app.Get("/accounts/login/", h.LoginForm)
	app.Post("/accounts/login/", h.Login)
	app.Post("/accounts/logout/", middleware.RequireLogin, h.Logout)

	// Everything else needs a session.
	auth := app.Group("", middleware.RequireLogin)

	// Task
	auth.Get("/", h.ListTasks)
	auth.Get("/task/new/", h.NewTaskForm)
	auth.Post("/task/new/", h.CreateTask)
	auth.Get("/task/:id/edit/", h.EditTaskForm)
	auth.Post("/task/:id/edit/", h.UpdateTask)
	auth.Get("/task/:id/delete/", h.ConfirmDeleteTask)
	auth.Post("/task/:id/delete/", h.DeleteTask)
	auth.Get("/task/:id/", h.TaskDetail)
	auth.Post("/task/:id/", h.PostTaskDetail)

	// Dashboard
	auth.Get("/dashboard/", h.Dashboard)

	// Profile
	auth.Get("/profile/", h.Profile)
	auth.Get("/profile/update/", h.ProfileUpdateForm)
	auth.Post("/profile/update/", h.UpdateProfile)

	// Taxonomy
	auth.Get("/categories/", h.ListCategories)
	auth.Post("/categories/", middleware.RequireStaff, h.CreateCategory)
	auth.Post("/categories/:id/delete/", middleware.RequireStaff, h.DeleteCategory)
	auth.Get("/tags/", h.ListTags)

	// Live events
	if h.Hub != nil {
		auth.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		auth.Get("/ws", websocket.New(h.Hub.Serve))
	}
}
