package handlers

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/internal/forms"
	"tasktracker/internal/middleware"
	"tasktracker/internal/models"
	"tasktracker/internal/storage"
	"tasktracker/internal/validation"
	"tasktracker/pkg/logger"
)

func (h *Handler) currentProfile(c *fiber.Ctx) (*models.User, *models.Profile, error) {
	ctx := c.UserContext()
	userID := middleware.UserID(c)
	u, err := h.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	p, err := h.Store.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return u, p, nil
}

func (h *Handler) Profile(c *fiber.Ctx) error {
	u, p, err := h.currentProfile(c)
	if err != nil {
		return storeError(c, err, "Profile", nil)
	}
	return h.page(c, "Profile", fiber.Map{"profile": newProfileView(u, p)})
}

func (h *Handler) ProfileUpdateForm(c *fiber.Ctx) error {
	u, p, err := h.currentProfile(c)
	if err != nil {
		return storeError(c, err, "Profile", nil)
	}
	return h.page(c, "Update profile", fiber.Map{
		"profile": newProfileView(u, p),
		"form":    forms.ProfileFormFrom(p).Fields(),
	})
}

// UpdateProfile stores the display name and, when one is uploaded, a new
// profile picture. The old picture file is removed after the save.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	u, p, err := h.currentProfile(c)
	if err != nil {
		return storeError(c, err, "Profile", nil)
	}

	var form forms.ProfileForm
	if err := c.BodyParser(&form); err != nil {
		logger.ErrorLogger.Error("Bad request in update profile", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if errs := forms.Validate(form); !errs.Empty() {
		return invalid(c, errs, form)
	}

	oldPicture := p.ProfilePicture.String
	var stored *storage.Stored
	if fh, err := c.FormFile("profile_picture"); err == nil {
		stored, err = h.Files.Save(fh, storage.ProfilePictures)
		if err != nil {
			if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrTooLarge) {
				return invalid(c, validation.Errors{"profile_picture": {err.Error()}}, form)
			}
			logger.ErrorLogger.Error("Error saving profile picture", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Error saving file")
		}
		p.ProfilePicture = sql.NullString{String: stored.Path, Valid: true}
	}

	name := strings.TrimSpace(form.DisplayName)
	p.DisplayName = sql.NullString{String: name, Valid: name != ""}

	if err := h.Store.UpdateProfile(c.UserContext(), p); err != nil {
		if stored != nil {
			_ = h.Files.Delete(stored.Path)
		}
		return storeError(c, err, "Profile", form)
	}
	if stored != nil && oldPicture != "" {
		if err := h.Files.Delete(oldPicture); err != nil {
			logger.ErrorLogger.Error("Error removing old profile picture", zap.Error(err))
		}
	}

	logger.AuditLogger.Info("Profile updated", zap.Int64("user_id", u.ID))
	h.Flash.Add(c, middleware.FlashSuccess, "Profile updated successfully.")
	return redirect(c, "/profile/", "Profile updated successfully.", newProfileView(u, p))
}
