package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluator/internal/config"
	"github.com/noah-isme/gema-evaluator/internal/database"
	"github.com/noah-isme/gema-evaluator/internal/handler"
	"github.com/noah-isme/gema-evaluator/internal/middleware"
	"github.com/noah-isme/gema-evaluator/internal/repository"
	"github.com/noah-isme/gema-evaluator/internal/router"
	"github.com/noah-isme/gema-evaluator/internal/service"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
	cloud "github.com/noah-isme/gema-evaluator/pkg/cloudinary"
)

// maxFilesPerRequest bounds the multipart body of a batch evaluation.
const maxFilesPerRequest = 20

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	healthChecks := map[string]handler.HealthCheckFunc{
		"postgres": database.PingPostgres(db),
		"redis":    database.PingRedis(redisClient),
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL,
			nats.Name(cfg.AppName+"-"+uuid.NewString()[:8]),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
		healthChecks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}

	var storage service.FileStorage
	if cfg.CloudinaryEnabled() {
		archive, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		storage = archive
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	uploads := service.NewUploadPolicy(cfg.MaxUploadMB)

	store := repository.NewSessionStore(redisClient, cfg.SessionTTL)
	evaluationRepo := repository.NewEvaluationRepository(db)

	sessionService := service.NewSessionService(store, validate, service.SessionConfig{
		Provider:    cfg.AIProvider,
		Temperature: cfg.DefaultTemperature,
		MaxTokens:   cfg.DefaultMaxTokens,
		FallbackKey: cfg.ProviderAPIKey,
	}, logger)

	progressService := service.NewProgressService(natsConn, cfg.NATSSubject, logger)
	if err := progressService.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start progress relay")
	}

	factory := ai.NewFactory(ai.FactoryConfig{
		GeminiModel: cfg.GeminiModel,
		OpenAIModel: cfg.OpenAIModel,
		Logger:      logger,
	})
	grader := service.NewGrader(uploads, nil, logger)

	evaluationService := service.NewEvaluationService(
		sessionService,
		store,
		evaluationRepo,
		factory,
		grader,
		progressService,
		storage,
		service.EvaluationConfig{Workers: cfg.EvaluationWorkers, TopP: cfg.TopP},
		logger,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    cfg.MaxUploadMB * 1024 * 1024 * maxFilesPerRequest,
		ReadTimeout:  30 * time.Second,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(sessionService, uploads, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, uploads, cfg.EvaluateRateLimit, logger),
		ProgressHandler:   handler.NewProgressHandler(sessionService, progressService, logger),
		HealthChecks:      healthChecks,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("ai_provider", cfg.AIProvider).Msg("evaluator listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
