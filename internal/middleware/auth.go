package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasktracker/internal/cache"
	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/pkg/logger"
)

const SessionCookie = "session"

var ErrSessionRevoked = errors.New("session revoked")

// Claims is what a session token carries.
type Claims struct {
	UserID int64 `json:"user_id"`
	Staff  bool  `json:"staff"`
	jwt.RegisteredClaims
}

// UserLookup reloads the account behind a token.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Auth issues and checks session tokens. Tokens are HS256 JWTs whose id
// is also recorded in the session store, so a logout can revoke them.
type Auth struct {
	secret   []byte
	ttl      time.Duration
	sessions cache.SessionStore
	users    UserLookup
}

func NewAuth(secret string, ttl time.Duration, sessions cache.SessionStore) *Auth {
	if sessions == nil {
		sessions = cache.NopSessionStore{}
	}
	return &Auth{secret: []byte(secret), ttl: ttl, sessions: sessions}
}

// WithUsers makes Identify reload each caller, so staff changes and
// deleted accounts take effect before the token expires.
func (a *Auth) WithUsers(users UserLookup) *Auth {
	a.users = users
	return a
}

func (a *Auth) IssueToken(ctx context.Context, u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Staff:  u.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", err
	}
	if err := a.sessions.Save(ctx, claims.ID, u.ID, a.ttl); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return token, nil
}

func (a *Auth) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	live, err := a.sessions.Exists(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !live {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Revoke ends the session behind the request's token, if any.
func (a *Auth) Revoke(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*Claims)
	if !ok {
		return nil
	}
	return a.sessions.Revoke(c.UserContext(), claims.ID)
}

func (a *Auth) SetCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(a.ttl),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func tokenFrom(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Cookies(SessionCookie)
}

// Identify puts the caller's identity in Locals when a valid token is
// present and lets the request through either way.
func (a *Auth) Identify(c *fiber.Ctx) error {
	tokenString := tokenFrom(c)
	if tokenString == "" {
		return c.Next()
	}
	claims, err := a.Parse(c.UserContext(), tokenString)
	if err != nil {
		logger.SecurityLogger.Warn("Invalid token", zap.String("path", c.Path()), zap.Error(err))
		return c.Next()
	}
	staff := claims.Staff
	if a.users != nil {
		u, err := a.users.GetUser(c.UserContext(), claims.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			logger.SecurityLogger.Warn("Token for deleted user", zap.Int64("user_id", claims.UserID))
			return c.Next()
		}
		if err != nil {
			return err
		}
		staff = u.IsStaff
	}
	c.Locals("claims", claims)
	c.Locals("userID", claims.UserID)
	c.Locals("isStaff", staff)
	return c.Next()
}

// RequireLogin rejects requests Identify could not authenticate.
func RequireLogin(c *fiber.Ctx) error {
	if _, ok := c.Locals("claims").(*Claims); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message":   "Authentication required",
			"success":   false,
			"status":    fiber.StatusUnauthorized,
			"login_url": "/accounts/login/",
		})
	}
	return c.Next()
}

func RequireStaff(c *fiber.Ctx) error {
	if !IsStaff(c) {
		logger.SecurityLogger.Warn("Staff route denied", zap.Int64("user_id", UserID(c)), zap.String("path", c.Path()))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "You do not have permission to perform this action.",
			"success": false,
			"status":  fiber.StatusForbidden,
		})
	}
	return c.Next()
}

func UserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals("userID").(int64)
	return id
}

func IsStaff(c *fiber.Ctx) bool {
	staff, _ := c.Locals("isStaff").(bool)
	return staff
}
