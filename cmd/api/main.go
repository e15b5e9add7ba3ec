package main

import (
	"context"
	"fmt"
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

	"github.com/noah-isme/gema-enrollment-api/internal/config"
	"github.com/noah-isme/gema-enrollment-api/internal/database"
	"github.com/noah-isme/gema-enrollment-api/internal/handler"
	"github.com/noah-isme/gema-enrollment-api/internal/middleware"
	"github.com/noah-isme/gema-enrollment-api/internal/observability"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
	"github.com/noah-isme/gema-enrollment-api/internal/router"
	"github.com/noah-isme/gema-enrollment-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PostgresOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		ConnectAttempts: cfg.DatabaseConnectAttempts,
	}, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	healthChecks := []handler.DependencyCheck{{
		Name: "postgres",
		Ping: func(ctx context.Context) error { return database.PingPostgres(ctx, db) },
	}}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, logger)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		healthChecks = append(healthChecks, handler.DependencyCheck{
			Name:     "redis",
			Optional: true,
			Ping:     func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		logger.Warn().Msg("redis not configured; using in-process offering locks and no analytics cache")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		healthChecks = append(healthChecks, handler.DependencyCheck{
			Name:     "nats",
			Optional: true,
			Ping: func(context.Context) error {
				if !natsConn.IsConnected() {
					return fmt.Errorf("nats status %s", natsConn.Status())
				}
				return nil
			},
		})
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	historyRepo := repository.NewAcademicHistoryRepository(db)
	equivalencyRepo := repository.NewEquivalencyRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	analyticsRepo := repository.NewCourseAnalyticsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	locker := service.NewLocalOfferingLocker()
	if redisClient != nil {
		locker = service.NewRedisOfferingLocker(redisClient, cfg.EventsChannel, cfg.OfferingLockTTL)
	}

	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.EventsChannel, natsConn, logger)
	capacityService := service.NewCapacityService(courseRepo, offeringRepo, locker, notificationService, logger)
	enrollmentService := service.NewEnrollmentService(studentRepo, courseRepo, historyRepo, capacityService, activityService, prerequisitePolicy(cfg), validate, logger)
	transferService := service.NewTransferCreditService(service.NewEquivalencyResolver(equivalencyRepo, logger), validate, logger)
	analyticsService := service.NewCourseAnalyticsService(analyticsRepo, capacityService, activityService, analyticsPolicy(cfg), redisClient, cfg.AnalyticsCacheTTL, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		Development:  cfg.IsDevelopment(),
	})
	router.Register(app, cfg, router.Dependencies{
		EnrollmentHandler:     handler.NewEnrollmentHandler(enrollmentService, logger),
		CourseHandler:         handler.NewCourseHandler(capacityService, analyticsService, logger),
		TransferCreditHandler: handler.NewTransferCreditHandler(transferService, transferPolicy(cfg), logger),
		NotificationHandler:   handler.NewNotificationHandler(notificationService, logger, 30*time.Second),
		ActivityHandler:       handler.NewAdminActivityHandler(activityService, logger),
		JWTMiddleware:         middleware.JWTProtected(middleware.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}),
		HealthChecks:          healthChecks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationService.Start(ctx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func prerequisitePolicy(cfg config.Config) service.PrerequisitePolicy {
	policy := service.DefaultPrerequisitePolicy()
	if len(cfg.Prerequisite.FailingGrades) > 0 {
		policy.FailingGrades = cfg.Prerequisite.FailingGrades
	}
	policy.MinimumGrade = cfg.Prerequisite.MinimumGrade
	return policy
}

func transferPolicy(cfg config.Config) service.TransferPolicy {
	policy := service.DefaultTransferPolicy()
	policy.MaxCourseAgeYears = cfg.Transfer.MaxCourseAgeYears
	policy.MinimumGrade = cfg.Transfer.MinimumGrade
	policy.MaxTransferCredits = cfg.Transfer.MaxTransferCredits
	return policy
}

func analyticsPolicy(cfg config.Config) service.AnalyticsPolicy {
	policy := service.DefaultAnalyticsPolicy()
	if cfg.Analytics.SuccessThreshold != "" {
		policy.SuccessThreshold = cfg.Analytics.SuccessThreshold
	}
	if cfg.Analytics.AtRiskThreshold != "" {
		policy.AtRiskThreshold = cfg.Analytics.AtRiskThreshold
	}
	policy.LowUtilizationPercent = cfg.Analytics.LowUtilizationPercent
	return policy
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
