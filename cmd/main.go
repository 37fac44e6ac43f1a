package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	liveadapter "github.com/hearthside/companion/adapters/live"
	"github.com/hearthside/companion/adapters/memory"
	"github.com/hearthside/companion/adapters/mongo"
	"github.com/hearthside/companion/adapters/stt"
	"github.com/hearthside/companion/domain/repositories"
	"github.com/hearthside/companion/internal/api"
	"github.com/hearthside/companion/internal/config"
	"github.com/hearthside/companion/internal/metrics"
	"github.com/hearthside/companion/internal/websocket"
	"github.com/hearthside/companion/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Storage: MongoDB when configured, otherwise in-memory with file
	// snapshots.
	var store repositories.Store
	var cleanup func(context.Context)
	if cfg.MongoURI != "" {
		client, err := mongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		store = mongo.NewStore(client.Database)
		cleanup = func(ctx context.Context) {
			if err := client.Close(ctx); err != nil {
				logger.Error("Failed to close MongoDB client", zap.Error(err))
			}
		}
	} else {
		memStore := memory.NewStore()
		snapshotter := memory.NewSnapshotter(memStore, cfg.SnapshotPath, time.Minute, logger)
		if err := snapshotter.Restore(context.Background()); err != nil {
			logger.Error("Failed to restore store snapshot", zap.Error(err))
		}
		snapshotter.Start()
		store = memStore
		cleanup = func(ctx context.Context) {
			snapshotter.Stop()
		}
	}

	// Initialize adapters
	endpoint, err := liveadapter.NewGeminiEndpoint(context.Background(), cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Fatal("Failed to create Gemini endpoint", zap.Error(err))
	}
	speechToText := stt.NewGoogleSpeechToText()

	// Initialize usecase services
	statusService := usecase.NewStatusService(store)
	dashboardService := usecase.NewDashboardService(store)

	m := metrics.New()

	// Initialize WebSocket hub
	hub := websocket.NewHub(endpoint, statusService, websocket.Options{
		Model: cfg.Model,
		Voice: cfg.Voice,
		Stats: m,
	}, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, store, dashboardService, statusService, speechToText, m.Handler(), logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Companion server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if cleanup != nil {
		cleanup(ctx)
	}

	logger.Info("Server exited")
}
