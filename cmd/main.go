package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/dukepan/talkwire/internal/api"
	"github.com/dukepan/talkwire/internal/cluster"
	"github.com/dukepan/talkwire/internal/config"
	"github.com/dukepan/talkwire/internal/observability"
	"github.com/dukepan/talkwire/internal/store"
	"github.com/dukepan/talkwire/internal/utils"
)

func main() {
	// Load .env if present; real environment wins over file values
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load(os.Args)

	// Initialize OpenTelemetry
	otelCleanup, err := observability.InitOpenTelemetry("talkwire", "1.0.0")
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// Initialize structured logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Initialize the durable store (single shared Postgres connection)
	st, err := store.Connect(context.Background(), cfg.PostgresDSN)
	if err != nil {
		logger.Fatal(context.Background(), "Failed to connect to Postgres: %v", err)
	}

	// Connect to the Redis Cluster (RESP3, sharded pub/sub)
	redisClient, err := cluster.NewClient(context.Background(), cfg.RedisNodes)
	if err != nil {
		logger.Fatal(context.Background(), "Failed to connect to Redis cluster: %v", err)
	}

	// Shared publish connection for all peer handlers
	publisher := cluster.NewPublisher(redisClient)

	// Setup HTTP router
	router := api.NewRouter(logger, st, publisher, redisClient)

	// Create HTTP server
	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info(context.Background(), "Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(context.Background(), "Server error: %v", err)
		}
	}()

	// Graceful shutdown setup
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Block until a signal is received
	<-sigChan

	gracefulShutdown(context.Background(), logger, server, st, redisClient, otelCleanup)

	logger.Info(context.Background(), "Application stopped.")
}

// gracefulShutdown handles the graceful shutdown of all components
func gracefulShutdown(ctx context.Context, logger *utils.Logger, server *http.Server, st *store.Store, redisClient redis.UniversalClient, otelCleanup func(context.Context) error) {
	logger.Info(ctx, "Shutting down server...")

	// Create a context with a timeout for shutdown operations
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// 1. Shut down HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error: %v", err)
	} else {
		logger.Info(ctx, "HTTP server stopped.")
	}

	// 2. Close the durable store connection
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error(ctx, "Store close error: %v", err)
	} else {
		logger.Info(ctx, "Store connection closed.")
	}

	// 3. Close the Redis cluster client
	if err := redisClient.Close(); err != nil {
		logger.Error(ctx, "Redis client close error: %v", err)
	} else {
		logger.Info(ctx, "Redis client closed.")
	}

	// 4. Shutdown OpenTelemetry
	if otelCleanup != nil {
		if err := otelCleanup(shutdownCtx); err != nil {
			logger.Error(ctx, "OpenTelemetry shutdown error: %v", err)
		} else {
			logger.Info(ctx, "OpenTelemetry shut down.")
		}
	}

	logger.Info(ctx, "Graceful shutdown complete.")
}
