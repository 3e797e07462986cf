package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("PORT", "")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("UPLOAD_DIR", "")

	cfg := LoadConfig()
	assert.Equal(t, 3004, cfg.Port)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "media", cfg.UploadDir)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("PORT", "8080")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("ADMIN_USERNAME", "root")

	cfg := LoadConfig()
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "root", cfg.AdminUsername)
}

func TestLoadConfigResetDB(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("RESET_DB", "true")
	assert.True(t, LoadConfig().ResetDB)

	t.Setenv("RESET_DB", "nope")
	assert.False(t, LoadConfig().ResetDB)
}
