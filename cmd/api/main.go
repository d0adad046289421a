package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/autograder-io/examflow-api/internal/config"
	"github.com/autograder-io/examflow-api/internal/database"
	"github.com/autograder-io/examflow-api/internal/handler"
	"github.com/autograder-io/examflow-api/internal/middleware"
	"github.com/autograder-io/examflow-api/internal/models"
	"github.com/autograder-io/examflow-api/internal/repository"
	"github.com/autograder-io/examflow-api/internal/router"
	"github.com/autograder-io/examflow-api/internal/service"
	"github.com/autograder-io/examflow-api/pkg/ai"
	"github.com/autograder-io/examflow-api/pkg/ocr"
	"github.com/autograder-io/examflow-api/pkg/storage"
)

const pipelineEventsSubject = "examflow.pipeline.events"

// maxBatchFiles caps how many answer sheets one multipart request may carry.
const maxBatchFiles = 32

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, cfg.WorkerPoolSize)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Exam{},
		&models.Question{},
		&models.Student{},
		&models.Submission{},
		&models.StudentAnswer{},
		&models.GradingResult{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, pipeline events stay in-process")
		} else {
			defer natsConn.Drain()
		}
	}

	store, err := newFileStore(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise file store: %v", err)
	}

	grader, err := newGrader(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise grader: %v", err)
	}

	extractor := ocr.NewFormatRouter(
		ocr.NewPlainTextExtractor(),
		ocr.NewPDFExtractor(),
		ocr.NewTesseractExtractor(cfg.OCRLanguages, logger),
	)

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradingRepo := repository.NewGradingRepository(db)

	events := service.NewPipelineEvents(natsConn, pipelineEventsSubject, logger)
	tombstones := service.NewTombstones()

	statusService := service.NewStatusService(submissionRepo, examRepo, gradingRepo, redisClient, cfg.StatusCacheTTL, logger)
	gradingService := service.NewGradingService(submissionRepo, examRepo, questionRepo, gradingRepo, grader, events, statusService, cfg.AdapterTimeout, logger)
	pipelineService := service.NewPipelineService(submissionRepo, store, extractor, gradingService, events, tombstones, cfg.AdapterTimeout, logger)

	dispatcher := service.NewDispatcher(cfg.WorkerPoolSize, pipelineService.Process, logger)
	dispatcher.Start()

	ingestService := service.NewIngestService(&cfg, examRepo, studentRepo, submissionRepo, gradingRepo, store, dispatcher, tombstones, events, logger)

	submissionHandler := handler.NewSubmissionHandler(ingestService, statusService, pipelineService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, statusService, logger)
	progressHandler := handler.NewProgressHandler(events, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxFileSize) * maxBatchFiles,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		GradingHandler:    gradingHandler,
		ProgressHandler:   progressHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, dispatcher)
}

func newFileStore(cfg config.Config, logger zerolog.Logger) (storage.FileStore, error) {
	if cfg.StorageBackend == "cloudinary" {
		return storage.NewCloudinaryStore(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}
	return storage.NewLocalStore(cfg.StorageRoot, logger)
}

func newGrader(cfg config.Config, logger zerolog.Logger) (ai.Grader, error) {
	if cfg.AIProvider == "anthropic" {
		return ai.NewAnthropicGrader(ai.AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AIModel,
		})
	}
	return ai.NewOpenAIGrader(ai.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.AIModel,
		Logger: logger,
	})
}

func waitForShutdown(app *fiber.App, dispatcher *service.Dispatcher) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if err := dispatcher.Shutdown(ctx); err != nil {
		log.Printf("dispatcher drain incomplete: %v", err)
	}

	log.Println("server stopped")
}
