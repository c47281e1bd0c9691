package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/elcrypto/scoring-analyzer/internal/api"
	"github.com/elcrypto/scoring-analyzer/internal/config"
	"github.com/elcrypto/scoring-analyzer/internal/database"
	"github.com/elcrypto/scoring-analyzer/internal/logging"
	"github.com/elcrypto/scoring-analyzer/internal/services"
)

const serviceName = "scoring-analyzer"

func main() {
	// Optional .env for local development; real deployments use env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewStandardLogger(cfg.LogLevel)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure result tables: %v", err)
	}

	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Services
	resolver := services.NewOutcomeResolver(db.Pool, cfg.Analysis, logger)
	aggregator := services.NewWinRateAggregator(db.Pool, logger)
	orchestrator := services.NewStatisticsOrchestrator(db.Pool, redisClient, aggregator, cfg.Aggregation, logger)
	recalculator := services.NewBulkRecalculator(db.Pool, resolver, cfg.Analysis, logger)
	summary := services.NewDirectionSummaryService(db.Pool, logger)

	// Setup Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	handler := api.NewHandler(orchestrator, recalculator, summary, redisClient, cfg, logger)
	api.SetupRoutes(router, db, redisClient, handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.LogStartup(serviceName, cfg.Aggregation.Version, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.LogShutdown(serviceName, "signal received")

	shutdownTimeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Server.ShutdownTimeout); err == nil {
		shutdownTimeout = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}
