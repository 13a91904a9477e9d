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
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduflow-api/internal/config"
	"github.com/noah-isme/eduflow-api/internal/database"
	"github.com/noah-isme/eduflow-api/internal/handler"
	"github.com/noah-isme/eduflow-api/internal/middleware"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/repository"
	"github.com/noah-isme/eduflow-api/internal/router"
	"github.com/noah-isme/eduflow-api/internal/service"
	cloud "github.com/noah-isme/eduflow-api/pkg/cloudinary"
	"github.com/noah-isme/eduflow-api/pkg/paystack"
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
		&models.Course{},
		&models.Enrollment{},
		&models.Application{},
		&models.ApplicationDraft{},
		&models.Assignment{},
		&models.AssignmentSubmission{},
		&models.GradingHistory{},
		&models.Payment{},
		&models.PaymentPlan{},
		&models.PaymentInstallment{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	gateway, err := paystack.New(paystack.Config{
		SecretKey: cfg.GatewaySecretKey,
		BaseURL:   cfg.GatewayBaseURL,
		Timeout:   cfg.GatewayTimeout,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create payment gateway client: %v", err)
	}

	storage, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	repos := repository.NewRepositories(db)
	txManager := repository.NewTxManager(db)

	notifier := service.NewNotifier(repos.Notifications, redisClient, cfg.NotificationChannel, natsConn, logger)
	submissionService := service.NewSubmissionService(repos.Submissions, repos.Assignments, repos.Enrollments, txManager, validate, notifier, logger)
	gradingService := service.NewGradingService(repos.Submissions, repos.Assignments, txManager, validate, notifier, redisClient, cfg.StatsCacheTTL, logger)
	paymentService, err := service.NewPaymentService(repos.Payments, txManager, service.NewPaystackVerifier(gateway), validate, notifier, logger)
	if err != nil {
		log.Fatalf("failed to create payment service: %v", err)
	}
	uploadService := service.NewUploadService(storage, repos.Assignments, repos.Enrollments, logger)

	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	notificationHandler := handler.NewNotificationHandler(notifier, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   submissionHandler,
		GradingHandler:      gradingHandler,
		PaymentHandler:      paymentHandler,
		NotificationHandler: notificationHandler,
		UploadHandler:       uploadHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
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
