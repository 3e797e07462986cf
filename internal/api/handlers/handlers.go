// Package handlers serves the task tracker pages as JSON view models.
package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/internal/cache"
	"tasktracker/internal/middleware"
	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/internal/storage"
	"tasktracker/internal/validation"
	"tasktracker/internal/websocket"
	"tasktracker/pkg/logger"
)

// Store is the persistence the handlers need. *repository.Store
// implements it.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	UserCredentials(ctx context.Context, username string) (*models.User, string, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetOrCreateProfile(ctx context.Context, userID int64) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	ListTags(ctx context.Context) ([]models.Tag, error)

	CreateTask(ctx context.Context, in repository.TaskInput, createdBy int64) (*models.Task, error)
	UpdateTask(ctx context.Context, id int64, in repository.TaskInput) (*models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	ListTasks(ctx context.Context, f repository.TaskFilter) ([]models.Task, error)
	DeleteTask(ctx context.Context, id int64) ([]string, error)
	DashboardStats(ctx context.Context, userID int64) (models.DashboardStats, error)
	AssignedTasks(ctx context.Context, userID int64) ([]models.Task, error)

	AddTaskNotes(ctx context.Context, taskID, userID int64, content string, a *models.Attachment) (*models.Comment, error)
	ListComments(ctx context.Context, taskID int64) ([]models.Comment, error)
	ListAttachments(ctx context.Context, taskID int64) ([]models.Attachment, error)
}

type Handler struct {
	Store Store
	Cache cache.TaskCache
	Auth  *middleware.Auth
	Flash *middleware.Flash
	Files *storage.Local
	Hub   *websocket.Hub
}

// New wires the handlers. A nil cache disables caching and a nil hub
// disables live events.
func New(store Store, taskCache cache.TaskCache, auth *middleware.Auth, flash *middleware.Flash, files *storage.Local, hub *websocket.Hub) *Handler {
	if taskCache == nil {
		taskCache = cache.NopTaskCache{}
	}
	return &Handler{Store: store, Cache: taskCache, Auth: auth, Flash: flash, Files: files, Hub: hub}
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"success": status < 400,
		"status":  status,
		"data":    data,
	})
}

// page renders a GET view and hands over any pending notices.
func (h *Handler) page(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":  message,
		"success":  true,
		"status":   fiber.StatusOK,
		"data":     data,
		"messages": h.Flash.Pop(c),
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  status,
	})
}

func invalid(c *fiber.Ctx, errs validation.Errors, form interface{}) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation error",
		"success": false,
		"status":  fiber.StatusBadRequest,
		"errors":  errs,
		"data":    form,
	})
}

// redirect finishes a successful submission the way a browser form expects.
func redirect(c *fiber.Ctx, to, message string, data interface{}) error {
	c.Location(to)
	return c.Status(fiber.StatusSeeOther).JSON(fiber.Map{
		"message":  message,
		"success":  true,
		"status":   fiber.StatusSeeOther,
		"redirect": to,
		"data":     data,
	})
}

// storeError maps repository errors onto responses. Unknown errors are
// logged and become a 500.
func storeError(c *fiber.Ctx, err error, what string, form interface{}) error {
	if errs, ok := validation.AsErrors(err); ok {
		return invalid(c, errs, form)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, what+" not found")
	}
	if errors.Is(err, repository.ErrUnknownUser) {
		logger.SecurityLogger.Warn("Session for deleted user", zap.Int64("user_id", middleware.UserID(c)))
		middleware.ClearCookie(c)
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}
	logger.ErrorLogger.Error("Store error", zap.String("what", what), zap.String("url", c.OriginalURL()), zap.Error(err))
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.ErrNotFound
	}
	return id, nil
}

type taskView struct {
	models.Task
	IsOverdue bool `json:"is_overdue"`
	CanDelete bool `json:"can_delete"`
}

func (h *Handler) taskViews(c *fiber.Ctx, tasks []models.Task) []taskView {
	today := models.Today()
	views := make([]taskView, len(tasks))
	for i, t := range tasks {
		views[i] = taskView{
			Task:      t,
			IsOverdue: t.IsOverdue(today),
			CanDelete: repository.CanDelete(&tasks[i], middleware.UserID(c), middleware.IsStaff(c)),
		}
	}
	return views
}

type attachmentView struct {
	models.Attachment
	URL       string `json:"url"`
	SizeHuman string `json:"size_human"`
}

func attachmentViews(as []models.Attachment) []attachmentView {
	views := make([]attachmentView, len(as))
	for i, a := range as {
		views[i] = attachmentView{
			Attachment: a,
			URL:        storage.URL(a.File),
			SizeHuman:  humanize.Bytes(uint64(a.Size)),
		}
	}
	return views
}

type profileView struct {
	ID                int64       `json:"id"`
	User              models.User `json:"user"`
	Role              models.Role `json:"role"`
	DisplayName       string      `json:"display_name"`
	ProfilePicture    string      `json:"profile_picture"`
	ProfilePictureURL string      `json:"profile_picture_url"`
}

func newProfileView(u *models.User, p *models.Profile) profileView {
	return profileView{
		ID:                p.ID,
		User:              *u,
		Role:              p.Role,
		DisplayName:       p.DisplayName.String,
		ProfilePicture:    p.ProfilePicture.String,
		ProfilePictureURL: storage.URL(p.ProfilePicture.String),
	}
}

// Health reports whether the database answers.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.Store.Ping(c.UserContext()); err != nil {
		logger.ErrorLogger.Error("Health check failed", zap.Error(err))
		return fail(c, fiber.StatusServiceUnavailable, "Database unavailable")
	}
	return respond(c, fiber.StatusOK, "OK", nil)
}
