package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/api"
	"github.com/stitts-dev/caddie-engine/internal/api/handlers"
	"github.com/stitts-dev/caddie-engine/internal/api/middleware"
	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/learning"
	"github.com/stitts-dev/caddie-engine/internal/planner"
	"github.com/stitts-dev/caddie-engine/internal/player"
	"github.com/stitts-dev/caddie-engine/internal/playslike"
	"github.com/stitts-dev/caddie-engine/internal/storage"
	"github.com/stitts-dev/caddie-engine/pkg/config"
	"github.com/stitts-dev/caddie-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger; level comes from LOG_LEVEL with a
	// debug default in development.
	structuredLogger := logger.InitLogger("", cfg.IsDevelopment())
	logger.WithService("caddie-engine").WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting Caddie Engine")

	// Setup Gin mode
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Key-value store: redis when configured, in-memory otherwise
	var store storage.Store
	if cfg.RedisURL != "" {
		redisStore, err := storage.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithService("caddie-engine").Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
		logger.WithService("caddie-engine").Info("Using redis store")
	} else {
		store = storage.NewMemoryStore()
		logger.WithService("caddie-engine").Warn("REDIS_URL not set; using in-memory store")
	}

	// Telemetry database
	telemetry, err := learning.NewTelemetryStore(cfg.TelemetryDBPath, structuredLogger)
	if err != nil {
		logger.WithService("caddie-engine").Fatalf("Failed to open telemetry database: %v", err)
	}
	defer telemetry.Close()

	// Persistence layers over the KV store
	dispersionStore := player.NewDispersionStore(store, structuredLogger, cfg.DispersionMinSamples)
	tuningStore := playslike.NewTuningStore(store, structuredLogger)
	learningStore := learning.NewStore(store, structuredLogger)

	// Learning fold service with its schedule
	learningService := learning.NewService(telemetry, learningStore, learning.Options{
		Alpha:           cfg.LearningAlpha,
		TargetPrecision: cfg.LearningTarget,
		Gain:            cfg.LearningGain,
		MinSamples:      cfg.LearningMinSamples,
	}, cfg.TelemetryRetention, structuredLogger)
	if cfg.LearningFoldCron != "" {
		if err := learningService.StartSchedule(cfg.LearningFoldCron); err != nil {
			logger.WithService("caddie-engine").Fatalf("Failed to start fold schedule: %v", err)
		}
		defer learningService.Stop()
	}

	// Course bundle provider
	var courses course.BundleProvider
	if cfg.CourseServiceURL != "" {
		courses = course.NewHTTPProvider(course.HTTPProviderConfig{
			BaseURL:  cfg.CourseServiceURL,
			Timeout:  cfg.CourseFetchTimeout,
			CacheTTL: cfg.CourseCacheTTL,
		}, structuredLogger)
	} else {
		logger.WithService("caddie-engine").Info("COURSE_SERVICE_URL not set; plans require inline bundles")
	}

	// Shot planner
	tuning := planner.DefaultTuning()
	if cfg.RiskGate > 0 && cfg.RiskGate <= 1 {
		tuning.RiskGate = cfg.RiskGate
	}
	if cfg.MCTopTee > 0 {
		tuning.MCTopTee = cfg.MCTopTee
	}
	if cfg.MCTopApproach > 0 {
		tuning.MCTopApproach = cfg.MCTopApproach
	}
	shotPlanner := planner.New(tuning, structuredLogger)

	// HTTP server
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(structuredLogger))
	router.Use(middleware.CORS(cfg.CorsOrigins))
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	healthHandler := handlers.NewHealthHandler(store, telemetry, structuredLogger)
	router.GET("/health", healthHandler.GetHealth)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(rateLimiter.Middleware())
	api.SetupRoutes(apiV1, api.Dependencies{
		Config:          cfg,
		Logger:          structuredLogger,
		Planner:         shotPlanner,
		Courses:         courses,
		Store:           store,
		Dispersion:      dispersionStore,
		Tuning:          tuningStore,
		LearningStore:   learningStore,
		Telemetry:       telemetry,
		LearningService: learningService,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithService("caddie-engine").WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService("caddie-engine").Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.WithService("caddie-engine").Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithService("caddie-engine").Errorf("Forced shutdown: %v", err)
	}
	logger.WithService("caddie-engine").Info("Server stopped")
}
