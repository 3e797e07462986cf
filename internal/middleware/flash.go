package middleware

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/pkg/crypto"
	"tasktracker/pkg/logger"
)

const FlashCookie = "flash"

type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashError   FlashLevel = "error"
	FlashInfo    FlashLevel = "info"
)

type FlashMessage struct {
	Level FlashLevel `json:"level"`
	Text  string     `json:"text"`
}

// Flash keeps one-shot notices in an encrypted cookie until the next
// page that shows them.
type Flash struct {
	key string
}

func NewFlash(secret string) *Flash {
	return &Flash{key: secret}
}

func (f *Flash) read(c *fiber.Ctx) []FlashMessage {
	if pending, ok := c.Locals("flash").([]FlashMessage); ok {
		return pending
	}
	raw := c.Cookies(FlashCookie)
	if raw == "" {
		return nil
	}
	plain, err := crypto.Decrypt(raw, f.key)
	if err != nil {
		logger.SecurityLogger.Warn("Unreadable flash cookie", zap.Error(err))
		return nil
	}
	var msgs []FlashMessage
	if err := json.Unmarshal(plain, &msgs); err != nil {
		return nil
	}
	return msgs
}

// Add queues a message on top of any already pending.
func (f *Flash) Add(c *fiber.Ctx, level FlashLevel, text string) {
	msgs := append(f.read(c), FlashMessage{Level: level, Text: text})
	c.Locals("flash", msgs)

	data, _ := json.Marshal(msgs)
	sealed, err := crypto.Encrypt(data, f.key)
	if err != nil {
		logger.ErrorLogger.Error("Encrypt flash", zap.Error(err))
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     FlashCookie,
		Value:    sealed,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Pop returns the pending messages and clears them.
func (f *Flash) Pop(c *fiber.Ctx) []FlashMessage {
	msgs := f.read(c)
	if len(msgs) == 0 {
		return []FlashMessage{}
	}
	c.Locals("flash", []FlashMessage{})
	c.Cookie(&fiber.Cookie{
		Name:     FlashCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return msgs
}
