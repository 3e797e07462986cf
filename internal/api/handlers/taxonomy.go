package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/internal/middleware"
	"tasktracker/pkg/logger"
)

func (h *Handler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.Store.ListCategories(c.UserContext())
	if err != nil {
		return storeError(c, err, "Categories", nil)
	}
	return respond(c, fiber.StatusOK, "Categories", categories)
}

type categoryRequest struct {
	Name string `form:"name" json:"name"`
}

// CreateCategory is staff only.
func (h *Handler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	category, err := h.Store.CreateCategory(c.UserContext(), req.Name)
	if err != nil {
		return storeError(c, err, "Category", req)
	}
	logger.AuditLogger.Info("Category created", zap.Int64("category_id", category.ID), zap.Int64("user_id", middleware.UserID(c)))
	return respond(c, fiber.StatusCreated, "Category created successfully", category)
}

// DeleteCategory is staff only. Tasks in the category stay, uncategorized.
func (h *Handler) DeleteCategory(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if err := h.Store.DeleteCategory(ctx, id); err != nil {
		return storeError(c, err, "Category", nil)
	}
	h.Cache.InvalidateAll(ctx)
	logger.AuditLogger.Info("Category deleted", zap.Int64("category_id", id), zap.Int64("user_id", middleware.UserID(c)))
	return respond(c, fiber.StatusOK, "Category deleted successfully", nil)
}

func (h *Handler) ListTags(c *fiber.Ctx) error {
	tags, err := h.Store.ListTags(c.UserContext())
	if err != nil {
		return storeError(c, err, "Tags", nil)
	}
	return respond(c, fiber.StatusOK, "Tags", tags)
}
