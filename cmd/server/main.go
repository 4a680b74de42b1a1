package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // Server closed detection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"content_platform/internal/api"     // Custom package for API handlers
	"content_platform/internal/app"     // Service wiring
	"content_platform/internal/config"  // Custom package for configuration
	"content_platform/internal/db"      // Database connection and migrations
	"content_platform/internal/logging" // Structured logging setup

	"github.com/gin-contrib/cors"  // CORS middleware
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration
	logging.Setup(cfg)         // Setup logger
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	// Connect to the database and bring the schema up to date
	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer redisClient.Close()

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	collaborators, err := app.NewCollaborators(cfg, gdb)
	if err != nil {
		logrus.Fatalf("failed to set up integrations: %v", err)
	}
	defer collaborators.Close()
	services := app.Build(cfg, gdb, redisClient, collaborators)
	if err := api.RegisterValidators(); err != nil {
		logrus.Fatalf("failed to register validators: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.New() // Gin router instance
	r.Use(gin.Recovery(), logging.RequestLogger(), cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-CSRF-Token", logging.RequestIDHeader},
		ExposeHeaders:    []string{logging.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true, // Session and CSRF cookies
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = cfg.MediaMaxBytes

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	api.RegisterRoutes(r, services)

	if cfg.CronSchedulerEnable {
		if err := services.Cron.Start(); err != nil {
			logrus.Fatalf("failed to start cron scheduler: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	// Wait for SIGINT or SIGTERM, then drain requests and cron jobs
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Forced server shutdown")
	}
	services.Cron.Stop(ctx)
}
