package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tasktracker/internal/forms"
	"tasktracker/internal/middleware"
	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/internal/storage"
	"tasktracker/internal/validation"
	"tasktracker/internal/websocket"
	"tasktracker/pkg/logger"
)

// ListTasks is the filtered task listing. The page also carries what the
// filter controls need: categories, tags, users and the current criteria.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	var f repository.TaskFilter
	if err := c.QueryParser(&f); err != nil {
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}

	ctx := c.UserContext()
	var (
		tasks      []models.Task
		categories []models.Category
		tags       []models.Tag
		users      []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { tasks, err = h.Store.ListTasks(gctx, f); return })
	g.Go(func() (err error) { categories, err = h.Store.ListCategories(gctx); return })
	g.Go(func() (err error) { tags, err = h.Store.ListTags(gctx); return })
	g.Go(func() (err error) { users, err = h.Store.ListUsers(gctx); return })
	if err := g.Wait(); err != nil {
		return storeError(c, err, "Tasks", fiber.Map{"filters": f})
	}

	return h.page(c, "Tasks", fiber.Map{
		"tasks":      h.taskViews(c, tasks),
		"categories": categories,
		"tags":       tags,
		"users":      users,
		"filters":    f,
		"statuses":   models.Statuses,
		"priorities": models.Priorities,
	})
}

func (h *Handler) taskFormPage(c *fiber.Ctx, form forms.TaskForm) (fiber.Map, error) {
	ctx := c.UserContext()
	var (
		categories []models.Category
		tags       []models.Tag
		users      []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { categories, err = h.Store.ListCategories(gctx); return })
	g.Go(func() (err error) { tags, err = h.Store.ListTags(gctx); return })
	g.Go(func() (err error) { users, err = h.Store.ListUsers(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fiber.Map{"form": form.Fields(categories, tags, users)}, nil
}

func (h *Handler) NewTaskForm(c *fiber.Ctx) error {
	data, err := h.taskFormPage(c, forms.TaskForm{})
	if err != nil {
		return storeError(c, err, "Task form", nil)
	}
	return h.page(c, "New task", data)
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	var form forms.TaskForm
	if err := c.BodyParser(&form); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	in, errs := form.Clean()
	if !errs.Empty() {
		return invalid(c, errs, form)
	}

	userID := middleware.UserID(c)
	task, err := h.Store.CreateTask(c.UserContext(), in, userID)
	if err != nil {
		return storeError(c, err, "Task", form)
	}

	logger.AuditLogger.Info("Task created", zap.Int64("task_id", task.ID), zap.Int64("user_id", userID))
	h.Hub.Publish(websocket.Event{Type: websocket.EventTaskCreated, TaskID: task.ID, UserID: userID, Data: task})
	h.Flash.Add(c, middleware.FlashSuccess, "Task created successfully!")
	return redirect(c, "/", "Task created successfully!", task)
}

func (h *Handler) EditTaskForm(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	task, err := h.Store.GetTask(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Task", nil)
	}
	data, err := h.taskFormPage(c, forms.TaskFormFrom(task))
	if err != nil {
		return storeError(c, err, "Task form", nil)
	}
	data["task"] = task
	return h.page(c, "Edit task", data)
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.Store.GetTask(ctx, id); err != nil {
		return storeError(c, err, "Task", nil)
	}

	var form forms.TaskForm
	if err := c.BodyParser(&form); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	in, errs := form.Clean()
	if !errs.Empty() {
		return invalid(c, errs, form)
	}

	task, err := h.Store.UpdateTask(ctx, id, in)
	if err != nil {
		return storeError(c, err, "Task", form)
	}
	h.Cache.Invalidate(ctx, id)

	userID := middleware.UserID(c)
	logger.AuditLogger.Info("Task updated", zap.Int64("task_id", id), zap.Int64("user_id", userID))
	h.Hub.Publish(websocket.Event{Type: websocket.EventTaskUpdated, TaskID: id, UserID: userID, Data: task})
	h.Flash.Add(c, middleware.FlashSuccess, "Task updated successfully!")
	return redirect(c, "/", "Task updated successfully!", task)
}

// deniedDelete sends a user who may not delete the task back to the
// listing with an error notice.
func (h *Handler) deniedDelete(c *fiber.Ctx, task *models.Task) error {
	logger.SecurityLogger.Warn("Delete denied",
		zap.Int64("task_id", task.ID), zap.Int64("user_id", middleware.UserID(c)))
	const msg = "You do not have permission to delete this task."
	h.Flash.Add(c, middleware.FlashError, msg)
	c.Location("/")
	return c.Status(fiber.StatusSeeOther).JSON(fiber.Map{
		"message":  msg,
		"success":  false,
		"status":   fiber.StatusSeeOther,
		"redirect": "/",
	})
}

func (h *Handler) ConfirmDeleteTask(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	task, err := h.Store.GetTask(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Task", nil)
	}
	if !repository.CanDelete(task, middleware.UserID(c), middleware.IsStaff(c)) {
		return h.deniedDelete(c, task)
	}
	return h.page(c, "Are you sure you want to delete this task?", fiber.Map{"task": task})
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	task, err := h.Store.GetTask(ctx, id)
	if err != nil {
		return storeError(c, err, "Task", nil)
	}
	if !repository.CanDelete(task, middleware.UserID(c), middleware.IsStaff(c)) {
		return h.deniedDelete(c, task)
	}

	files, err := h.Store.DeleteTask(ctx, id)
	if err != nil {
		return storeError(c, err, "Task", nil)
	}
	h.Cache.Invalidate(ctx, id)
	if err := h.Files.Delete(files...); err != nil {
		logger.ErrorLogger.Error("Error removing attachment files", zap.Int64("task_id", id), zap.Error(err))
	}

	userID := middleware.UserID(c)
	logger.AuditLogger.Info("Task deleted", zap.Int64("task_id", id), zap.Int64("user_id", userID))
	h.Hub.Publish(websocket.Event{Type: websocket.EventTaskDeleted, TaskID: id, UserID: userID})
	h.Flash.Add(c, middleware.FlashSuccess, "Task deleted successfully.")
	return redirect(c, "/", "Task deleted successfully.", nil)
}

// cachedTask reads the task through the cache.
func (h *Handler) cachedTask(ctx context.Context, id int64) (*models.Task, error) {
	if t, ok := h.Cache.Get(ctx, id); ok {
		return t, nil
	}
	t, err := h.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	h.Cache.Set(ctx, t)
	return t, nil
}

// TaskDetail shows the task with its comments and attachments, loaded
// concurrently.
func (h *Handler) TaskDetail(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var (
		task        *models.Task
		comments    []models.Comment
		attachments []models.Attachment
	)
	g, gctx := errgroup.WithContext(c.UserContext())
	g.Go(func() (err error) { task, err = h.cachedTask(gctx, id); return })
	g.Go(func() (err error) { comments, err = h.Store.ListComments(gctx, id); return })
	g.Go(func() (err error) { attachments, err = h.Store.ListAttachments(gctx, id); return })
	if err := g.Wait(); err != nil {
		return storeError(c, err, "Task", nil)
	}

	return h.page(c, "Task", fiber.Map{
		"task":            h.taskViews(c, []models.Task{*task})[0],
		"comments":        comments,
		"attachments":     attachmentViews(attachments),
		"comment_form":    forms.CommentForm{}.Fields(),
		"attachment_form": forms.AttachmentForm{}.Fields(),
	})
}

// PostTaskDetail takes a comment, a file or both. Every submitted part is
// validated before anything is stored.
func (h *Handler) PostTaskDetail(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.Store.GetTask(ctx, id); err != nil {
		return storeError(c, err, "Task", nil)
	}

	var comment forms.CommentForm
	// A multipart body may carry only a file; anything else must parse.
	if err := c.BodyParser(&comment); err != nil && len(c.Body()) > 0 &&
		!strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		logger.ErrorLogger.Error("Bad request in task detail", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	hasComment := strings.TrimSpace(comment.Content) != ""
	fh, fileErr := c.FormFile("file")
	hasFile := fileErr == nil

	errs := validation.Errors{}
	if !hasComment && !hasFile {
		errs.Add(validation.NonField, "Add a comment or choose a file to upload.")
	}
	if hasComment {
		errs.Merge(forms.Validate(comment))
	}
	if hasFile {
		errs.Merge(forms.Validate(forms.AttachmentForm{File: fh.Filename}))
	}
	if !errs.Empty() {
		return invalid(c, errs, fiber.Map{"content": comment.Content})
	}

	userID := middleware.UserID(c)
	var a *models.Attachment
	if hasFile {
		stored, err := h.Files.Save(fh, storage.TaskAttachments)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrFileType) {
				return invalid(c, validation.Errors{"file": {err.Error()}}, nil)
			}
			logger.ErrorLogger.Error("Error saving attachment", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Error saving file")
		}
		a = &models.Attachment{
			File:         stored.Path,
			OriginalName: stored.OriginalName,
			ContentType:  stored.ContentType,
			Size:         stored.Size,
		}
	}

	var content string
	if hasComment {
		content = comment.Content
	}
	cm, err := h.Store.AddTaskNotes(ctx, id, userID, content, a)
	if err != nil {
		if a != nil {
			_ = h.Files.Delete(a.File)
		}
		return storeError(c, err, "Task", nil)
	}

	data := fiber.Map{}
	if cm != nil {
		data["comment"] = cm
		logger.AuditLogger.Info("Comment added", zap.Int64("task_id", id), zap.Int64("comment_id", cm.ID), zap.Int64("user_id", userID))
		h.Hub.Publish(websocket.Event{Type: websocket.EventCommentAdded, TaskID: id, UserID: userID, Data: cm})
		h.Flash.Add(c, middleware.FlashSuccess, "Comment added successfully!")
	}
	if a != nil {
		data["attachment"] = attachmentViews([]models.Attachment{*a})[0]
		logger.AuditLogger.Info("Attachment uploaded", zap.Int64("task_id", id), zap.String("file", a.File), zap.Int64("user_id", userID))
		h.Hub.Publish(websocket.Event{Type: websocket.EventAttachment, TaskID: id, UserID: userID, Data: data["attachment"]})
		h.Flash.Add(c, middleware.FlashSuccess, "Attachment uploaded successfully!")
	}

	return redirect(c, fmt.Sprintf("/task/%d/", id), "Saved", data)
}
