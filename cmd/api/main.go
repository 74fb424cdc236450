package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/adequacy"
	"github.com/draftpilot/backend/internal/admissibility"
	"github.com/draftpilot/backend/internal/api/handlers"
	rediscache "github.com/draftpilot/backend/internal/cache/redis"
	"github.com/draftpilot/backend/internal/chunker"
	"github.com/draftpilot/backend/internal/extraction"
	"github.com/draftpilot/backend/internal/fetcher"
	"github.com/draftpilot/backend/internal/metrics"
	"github.com/draftpilot/backend/internal/middleware/ratelimit"
	"github.com/draftpilot/backend/internal/middleware/security"
	"github.com/draftpilot/backend/internal/storage/sqlite"
	"github.com/draftpilot/backend/internal/verification"
	"github.com/draftpilot/backend/pkg/circuitbreaker"
	"github.com/draftpilot/backend/pkg/config"
	appLogger "github.com/draftpilot/backend/pkg/logger"
	"github.com/draftpilot/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting research pipeline API server")

	metrics.Init()

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var fetchCache fetcher.Cache
	if cfg.Redis.Enabled {
		cacheClient, err := rediscache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLMin)*time.Minute,
		)
		if err != nil {
			appLogger.Warn("Fetch cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer cacheClient.Close()
			fetchCache = cacheClient
		}
	}

	filter := admissibility.NewFilter(cfg.Admissibility.BlockedDomains)

	breaker := circuitbreaker.New("outbound-fetch", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxRequests:      3,
		Logger:           appLogger.Log,
	})

	policy := retry.Policy{
		MaxAttempts:  cfg.Fetcher.MaxAttempts,
		InitialDelay: time.Duration(cfg.Fetcher.InitialBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		Logger:       appLogger.Log,
	}

	fetchTimeout := time.Duration(cfg.Fetcher.TimeoutSec) * time.Second
	f := fetcher.New(
		fetcher.NewTransport(fetchTimeout),
		filter,
		breaker,
		fetchCache,
		policy,
		fetcher.Config{
			Timeout:          fetchTimeout,
			MinContentLength: cfg.Fetcher.MinContentLength,
			MaxContentLength: cfg.Fetcher.MaxContentLength,
			BatchWarnBytes:   cfg.Fetcher.BatchWarnBytes,
		},
	)

	registry := extraction.NewRegistry()
	processor := chunker.NewProcessor(registry, cfg.Chunker.ChunkWords)
	preflight := chunker.NewPreflight(cfg.Upload.MaxBytes, cfg.Upload.AllowedExtensions)

	scorer := adequacy.NewScorer(adequacy.Policy{
		MinimumMinutes: cfg.Adequacy.MinimumMinutes,
		WordsPerMinute: cfg.Adequacy.WordsPerMinute,
		WordsWeight:    cfg.Adequacy.WordsWeight,
		SourcesWeight:  cfg.Adequacy.SourcesWeight,
		QualityWeight:  cfg.Adequacy.QualityWeight,
	})

	gate := verification.NewGate()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.Log,
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())

	sourceHandler := handlers.NewSourceHandler(f, db)
	documentHandler := handlers.NewDocumentHandler(processor, preflight, db)
	adequacyHandler := handlers.NewAdequacyHandler(scorer, db)
	verificationHandler := handlers.NewVerificationHandler(gate)
	wsHandler := handlers.NewWebSocketHandler(f)

	api := app.Group("/api/v1")

	api.Post("/sources/enrich", sourceHandler.EnrichSources)
	api.Get("/sources", sourceHandler.ListSources)
	api.Post("/documents", documentHandler.UploadDocument)
	api.Post("/adequacy", adequacyHandler.ScoreAdequacy)
	api.Post("/verification", verificationHandler.VerifyText)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/enrich", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
