package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"tasktracker/internal/middleware"
	"tasktracker/internal/models"
)

// Dashboard shows the counts over the tasks assigned to the current user,
// and the tasks themselves.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var (
		stats models.DashboardStats
		tasks []models.Task
	)
	g, gctx := errgroup.WithContext(c.UserContext())
	g.Go(func() (err error) { stats, err = h.Store.DashboardStats(gctx, userID); return })
	g.Go(func() (err error) { tasks, err = h.Store.AssignedTasks(gctx, userID); return })
	if err := g.Wait(); err != nil {
		return storeError(c, err, "Dashboard", nil)
	}

	return h.page(c, "Dashboard", fiber.Map{
		"tasks":           h.taskViews(c, tasks),
		"total_tasks":     stats.Total,
		"completed_tasks": stats.Completed,
		"overdue_tasks":   stats.Overdue,
		"pending_tasks":   stats.Pending,
	})
}
