package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/radicle-dev/workstreams-api/internal/config"
	"github.com/radicle-dev/workstreams-api/internal/handler"
	"github.com/radicle-dev/workstreams-api/internal/handler/middleware"
	"github.com/radicle-dev/workstreams-api/internal/kv"
	"github.com/radicle-dev/workstreams-api/internal/service"
	"github.com/radicle-dev/workstreams-api/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Redis client
	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}()
	log.Println("✓ Redis connection established")

	// Initialize validator
	validate := validator.NewValidator()

	// Initialize key-value namespaces (sessions expire via TTL, the rest do not)
	sessionStore := kv.NewNamespace(redisClient, "auth:session")
	userStore := kv.NewNamespace(redisClient, "users")
	hubStore := kv.NewNamespace(redisClient, "dripshubs")

	// Initialize services
	authService := service.NewAuthService(sessionStore, nil)
	workstreamService := service.NewWorkstreamService(userStore, hubStore, nil)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, validate)
	workstreamHandler := handler.NewWorkstreamHandler(workstreamService, validate)
	healthHandler := handler.NewHealthHandler(redisClient)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Workstreams API v0.1",
		DisableStartupMessage: false,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	// Setup global middlewares
	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware(cfg))

	// Setup session middlewares
	requireSession := middleware.RequireSession(authService)
	requireOwner := middleware.RequireOwner(authService)

	// Setup routes
	handler.SetupRoutes(
		app,
		authHandler,
		workstreamHandler,
		healthHandler,
		requireSession,
		requireOwner,
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("🚀 Server starting on http://localhost%s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		if err := app.Listen(addr); err != nil {
			// Don't use log.Fatalf in goroutine, send error to main
			log.Printf("❌ Server failed to start: %v", err)
			stop() // Trigger shutdown
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("⏳ Shutting down server gracefully...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server stopped")
}

// initRedis initializes Redis client with retry logic and verifies connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	maxRetries := 5
	retryInterval := 2 * time.Second

	var err error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return client, nil
		}

		log.Printf("Failed to connect to Redis (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if closeErr := client.Close(); closeErr != nil {
		log.Printf("Error closing Redis after ping failure: %v", closeErr)
	}
	return nil, fmt.Errorf("failed to ping Redis after %d attempts: %w", maxRetries, err)
}

// customErrorHandler handles Fiber errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Log error for debugging (sanitized)
	log.Printf("Error handling request [%s %s]: %v", c.Method(), c.Path(), err)

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
