package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"tasktracker/configs"
	"tasktracker/internal/api"
	"tasktracker/internal/api/handlers"
	"tasktracker/internal/cache"
	"tasktracker/internal/config"
	"tasktracker/internal/middleware"
	"tasktracker/internal/repository"
	"tasktracker/internal/storage"
	"tasktracker/internal/websocket"
	"tasktracker/pkg/database"
	"tasktracker/pkg/logger"
)

func main() {
	cfg := configs.LoadConfig()

	if err := logger.InitLoggers(cfg.LogDir); err != nil {
		log.Fatalf("Failed to init loggers: %v", err)
	}
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	db, err := database.ConnectDB(config.Ctx, cfg)
	if err != nil {
		logger.ErrorLogger.Error("Database connection failed", zap.Error(err))
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()
	logger.SystemLogger.Info("Database connected")

	if cfg.ResetDB {
		logger.SystemLogger.Warn("RESET_DB set, dropping all tables")
		if err := repository.DeleteAllTable(db); err != nil {
			logger.ErrorLogger.Error("Reset failed", zap.Error(err))
			log.Fatalf("Reset failed: %v", err)
		}
	}
	if err := repository.CreateTableIfNotExists(db); err != nil {
		logger.ErrorLogger.Error("Migration failed", zap.Error(err))
		log.Fatalf("Migration failed: %v", err)
	}
	store := repository.NewStore(db)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if _, err := store.CreateAdminUser(config.Ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logger.ErrorLogger.Error("Admin bootstrap failed", zap.Error(err))
			log.Fatalf("Admin bootstrap failed: %v", err)
		}
		logger.SystemLogger.Info("Admin user ready", zap.String("username", cfg.AdminUsername))
	}

	var (
		taskCache cache.TaskCache    = cache.NopTaskCache{}
		sessions  cache.SessionStore = cache.NopSessionStore{}
	)
	redisClient, err := database.ConnectRedis(config.Ctx, cfg)
	if err != nil {
		logger.ErrorLogger.Error("Redis connection failed", zap.Error(err))
		log.Fatalf("Redis connection failed: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		taskCache = cache.NewRedisTaskCache(redisClient)
		sessions = cache.NewRedisSessionStore(redisClient)
		logger.SystemLogger.Info("Redis connected")
	} else {
		logger.SystemLogger.Info("Redis disabled, running without cache and session revocation")
	}

	files, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		logger.ErrorLogger.Error("Media dir setup failed", zap.Error(err))
		log.Fatalf("Media dir setup failed: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	h := handlers.New(store, taskCache,
		middleware.NewAuth(cfg.SecretKey, cfg.SessionTTL, sessions).WithUsers(store),
		middleware.NewFlash(cfg.SecretKey),
		files, hub)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorResponder,
		BodyLimit:    storage.MaxUploadSize + 1<<20,
	})

	// Middleware
	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.CORSOrigins != "*",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	api.RegisterRoutes(app, h, cfg.UploadDir)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.SystemLogger.Info("Shutting down")
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
