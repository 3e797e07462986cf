package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	RedisHost     string
	RedisPort     int
	SecretKey     string
	UploadDir     string
	LogDir        string
	SessionTTL    time.Duration
	AdminUsername string
	AdminPassword string
	CORSOrigins   string
	ResetDB       bool
}

// RedisEnabled reports whether a Redis host was configured.
func (c Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		// Only noisy outside of tests
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using environment and defaults")
		}
	}

	return Config{
		Port:          envInt("PORT", 3004),
		DBHost:        envString("DB_HOST", "localhost"),
		DBPort:        envInt("DB_PORT", 5432),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     envInt("REDIS_PORT", 6379),
		SecretKey:     envString("SECRET_KEY", "change-me"),
		UploadDir:     envString("UPLOAD_DIR", "media"),
		LogDir:        envString("LOG_DIR", "logs"),
		SessionTTL:    envDuration("SESSION_TTL", 24*time.Hour),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		CORSOrigins:   envString("CORS_ORIGINS", "*"),
		ResetDB:       envBool("RESET_DB"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
