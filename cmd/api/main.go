package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tmshq/tms-go-api/internal/config"
	"github.com/tmshq/tms-go-api/internal/database"
	"github.com/tmshq/tms-go-api/internal/handler"
	"github.com/tmshq/tms-go-api/internal/middleware"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/repository"
	"github.com/tmshq/tms-go-api/internal/router"
	"github.com/tmshq/tms-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.TaskNote{},
		&models.TaskAttachment{},
		&models.ActivityEvent{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	activityRepo := repository.NewActivityLogRepository(db)
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	recorder := service.NewActivityRecorder(activityRepo, userRepo, natsConn, cfg.NATSSubject, validate, logger)
	queryService := service.NewActivityQueryService(activityRepo, userRepo, projectRepo, taskRepo, redisClient, cfg.BadgeCacheTTL, validate, logger)
	authService := service.NewAuthService(userRepo, recorder, validate, cfg.JWTSecret, cfg.TokenTTL, logger)
	userService := service.NewUserService(userRepo, recorder, validate, logger)
	projectService := service.NewProjectService(projectRepo, userRepo, recorder, validate, logger)
	taskService := service.NewTaskService(taskRepo, projectRepo, userRepo, recorder, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService, logger),
		ActivityHandler: handler.NewActivityHandler(queryService, recorder, logger),
		TaskHandler:     handler.NewTaskHandler(taskService, cfg.MaxAttachmentKB, logger),
		ProjectHandler:  handler.NewProjectHandler(projectService, logger),
		UserHandler:     handler.NewUserHandler(userService, logger),
		HealthHandler:   handler.NewHealthHandler(cfg.AppName, cfg.AppEnv),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
