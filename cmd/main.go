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
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"credential-service/internal/config"
	"credential-service/internal/cron"
	"credential-service/internal/handler"
	"credential-service/internal/handler/middleware"
	"credential-service/internal/repository/postgres"
	"credential-service/internal/service"
	"credential-service/pkg/blacklist"
	"credential-service/pkg/email"
	"credential-service/pkg/jwt"
	"credential-service/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}()
	log.Println("Database connection established")

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}()
	log.Println("Redis connection established")

	// A missing or weak signing key is fatal here, never a per-request error.
	tokenService, err := jwt.NewTokenService(
		cfg.JWT.SigningKey,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
	)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	validate := validator.New()

	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)

	tokenBlacklist := blacklist.New(redisClient)

	var mailer email.Mailer
	if cfg.Email.Enabled {
		mailer, err = email.NewResendMailer(&email.Config{
			APIKey:    cfg.Email.APIKey,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
		})
		if err != nil {
			log.Printf("Warning: failed to initialize mailer, notifications disabled: %v", err)
			mailer = nil
		} else {
			log.Println("Mailer initialized (Resend)")
		}
	}

	sessionService := service.NewSessionService(
		sessionRepo, userRepo,
		tokenService, tokenBlacklist, mailer, cfg.JWT.RefreshTokenTTL,
	)
	authService := service.NewAuthService(
		userRepo, roleRepo, tenantRepo,
		sessionService, tokenService, tokenBlacklist, mailer, cfg,
	)

	authHandler := handler.NewAuthHandler(authService, validate, cfg)
	userHandler := handler.NewUserHandler(userRepo, authService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	healthHandler := handler.NewHealthHandler(db)

	app := fiber.New(fiber.Config{
		AppName:      "Credential Service v1.0",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokenService, tokenBlacklist)

	handler.SetupRoutes(app, authHandler, userHandler, sessionHandler, healthHandler, authMiddleware)

	purgeScheduler := cron.StartSessionPurge(sessionRepo)
	defer purgeScheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s (%s)", addr, cfg.Server.Environment)
		if err := app.Listen(addr); err != nil {
			log.Printf("Server failed to start: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initDB initializes the PostgreSQL connection with retry logic.
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initRedis initializes the Redis client and verifies the connection.
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Error closing Redis after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
