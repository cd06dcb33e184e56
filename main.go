package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mobooking/internal/auth"
	"mobooking/internal/booking"
	"mobooking/internal/booking/booking_api"
	bookingdb "mobooking/internal/booking/db"
	bookingredis "mobooking/internal/booking/redis"
	"mobooking/internal/catalog"
	catalogdb "mobooking/internal/catalog/db"
	"mobooking/internal/config"
	"mobooking/internal/coverage"
	"mobooking/internal/database/migrations"
	"mobooking/internal/kafka"
	"mobooking/internal/logger"
	"mobooking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

const (
	maxConnectAttempts = 5
	connectRetryDelay  = 2 * time.Second
)

func connectPostgres(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error

	for i := 0; i < maxConnectAttempts; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxConnectAttempts))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(connectRetryDelay)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxConnectAttempts-1 {
			time.Sleep(connectRetryDelay)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxConnectAttempts, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// runMigrations uses its own handle since the migrator closes the one it was built on.
func runMigrations(cfg config.DatabaseConfig, logger *logger.Logger) {
	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL for migrations: %v", err))
	}

	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{
		MigrationsDir: cfg.MigrationsDir,
		SeedData:      cfg.SeedData,
	}, logger)
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("DATABASE", fmt.Sprintf("Failed to close migrator: %v", err))
		}
	}()

	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, continuing without coverage cache and submit guard: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func setupEvents(ctx context.Context, cfg config.KafkaConfig, logger *logger.Logger) (booking.EventPublisher, func()) {
	if !cfg.Enabled {
		logger.Info("KAFKA", "Kafka disabled, booking events will only be logged")
		return kafka.NoopPublisher{Logger: logger}, func() {}
	}

	topics := []string{cfg.Topics.BookingCreated, cfg.Topics.BookingStatusChanged}
	if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, topics, logger); err != nil {
		logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		logger.Info("KAFKA", "Required topics ensured successfully")
	}

	producer := kafka.NewProducer(cfg.Brokers, cfg.Topics.BookingCreated, cfg.Topics.BookingStatusChanged, logger)
	logger.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Brokers))
	return producer, func() {
		if err := producer.Close(); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func healthHandler(store *bookingdb.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "disabled"}
		status := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				// Redis is optional; coverage falls back to the database.
				checks["redis"] = "unavailable"
			}
		}

		utils.WriteJSON(w, status, utils.APIResponse{
			Success: status == http.StatusOK,
			Data:    checks,
		})
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger, err := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.Log.Level),
		Dir:   cfg.Log.Dir,
		Color: cfg.Log.Color,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("APP", "Starting MoBooking service initialization")
	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, logger)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runMigrations(cfg.Database, logger)
	}

	var (
		rdb   *redis.Client
		cache coverage.Cache
		guard booking.SubmissionGuard
	)
	if cfg.Redis.Enabled {
		rdb = connectRedis(ctx, cfg.Redis, logger)
	}
	if rdb != nil {
		defer rdb.Close()
		cache = coverage.NewRedisCache(rdb, cfg.Redis.CoverageTTL)
		guard = bookingredis.NewGuard(rdb, cfg.Redis.SubmitLockTTL, logger)
	}

	events, closeEvents := setupEvents(ctx, cfg.Kafka, logger)
	defer closeEvents()

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Failed to configure owner authentication: %v", err))
	}

	catalogStore := &catalogdb.DB{Bun: bunDB}
	bookingStore := &bookingdb.DB{Bun: bunDB}

	index, err := coverage.NewIndex(catalogStore, cache, cfg.Booking.ZipPattern, logger)
	if err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Invalid ZIP pattern: %v", err))
	}

	catalogService := catalog.NewCatalogService(catalogStore, index, logger)
	bookingService := booking.NewBookingService(bookingStore, catalogStore, index, guard, events, logger)

	dispatcher := booking_api.NewDispatcher(bookingService, catalogService, cfg.Booking.CurrencySymbol)
	handler := booking_api.NewHandler(dispatcher, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(booking_api.RequestLogger(logger))

	r.Get("/health", healthHandler(bookingStore, rdb))
	handler.Routes(r, auth.Middleware(verifier, logger))
	logger.Info("ROUTER", "Public routes registered under /api/public/{ownerId}, owner routes under /api/owner")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 MoBooking service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ MoBooking service shutdown complete")
	}
}
