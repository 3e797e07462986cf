package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tasktracker/internal/forms"
	"tasktracker/internal/middleware"
	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/pkg/logger"
)

func (h *Handler) RegisterForm(c *fiber.Ctx) error {
	return h.page(c, "Register", fiber.Map{"form": forms.RegisterForm{}.Fields()})
}

// Register creates the account and its profile, then logs the user in.
func (h *Handler) Register(c *fiber.Ctx) error {
	var form forms.RegisterForm
	if err := c.BodyParser(&form); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	form.Username = strings.TrimSpace(form.Username)
	if errs := forms.Validate(form); !errs.Empty() {
		logger.AuditLogger.Warn("Validation error during register", zap.String("username", form.Username))
		return invalid(c, errs, fiber.Map{"username": form.Username, "email": form.Email})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(form.Password1), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error hashing password")
	}

	user, err := h.Store.CreateUser(c.UserContext(), form.Username, form.Email, string(hashedPassword))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.SecurityLogger.Warn("Duplicate username", zap.String("username", form.Username))
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Username already exists",
				"success": false,
				"status":  fiber.StatusConflict,
				"errors":  fiber.Map{"username": []string{"A user with that username already exists."}},
			})
		}
		return storeError(c, err, "User", nil)
	}

	token, err := h.login(c, user)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error generating token")
	}
	logger.AuditLogger.Info("User registered successfully", zap.Int64("user_id", user.ID))
	h.Flash.Add(c, middleware.FlashSuccess, "Account created successfully!")
	return redirect(c, "/dashboard/", "Account created successfully!", fiber.Map{"user": user, "token": token})
}

func (h *Handler) LoginForm(c *fiber.Ctx) error {
	return h.page(c, "Log in", fiber.Map{"form": []forms.Field{
		{Name: "username", Label: "Username", Kind: forms.KindText, Required: true, Class: forms.ClassFor(forms.KindText)},
		{Name: "password", Label: "Password", Kind: forms.KindPassword, Required: true, Class: forms.ClassFor(forms.KindPassword)},
	}})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var form forms.LoginForm
	if err := c.BodyParser(&form); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if errs := forms.Validate(form); !errs.Empty() {
		return invalid(c, errs, fiber.Map{"username": form.Username})
	}

	user, hash, err := h.Store.UserCredentials(c.UserContext(), form.Username)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(form.Password))
	}
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return storeError(c, err, "User", nil)
		}
		logger.SecurityLogger.Warn("Failed login", zap.String("username", form.Username))
		return fail(c, fiber.StatusUnauthorized, "Please enter a correct username and password.")
	}

	token, err := h.login(c, user)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error generating token")
	}
	logger.AuditLogger.Info("Login success", zap.Int64("user_id", user.ID))
	next := c.Query("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	return redirect(c, next, "Login success", fiber.Map{"user": user, "token": token})
}

// login issues a session token and sets the cookie.
func (h *Handler) login(c *fiber.Ctx, u *models.User) (string, error) {
	token, err := h.Auth.IssueToken(c.UserContext(), u)
	if err != nil {
		return "", err
	}
	h.Auth.SetCookie(c, token)
	return token, nil
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.Auth.Revoke(c); err != nil {
		logger.ErrorLogger.Error("Error revoking session", zap.Error(err))
	}
	middleware.ClearCookie(c)
	logger.AuditLogger.Info("Logout", zap.Int64("user_id", middleware.UserID(c)))
	return redirect(c, "/accounts/login/", "Logged out", nil)
}
