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

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-express-checkout/internal/checkout"
	"ms-express-checkout/internal/checkout/api"
	checkoutdb "ms-express-checkout/internal/checkout/db"
	"ms-express-checkout/internal/checkout/qr"
	"ms-express-checkout/internal/config"
	"ms-express-checkout/internal/database/migrations"
	"ms-express-checkout/internal/gateway"
	"ms-express-checkout/internal/kafka"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/reference"
	"ms-express-checkout/internal/settings"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Express Checkout service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.Run(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	// Redis only serves the settings cache; a dead instance degrades to
	// reading settings from Postgres on every call.
	var settingsCache settings.Cache
	if cfg.Redis.SettingsEnabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unavailable, settings cache disabled: %v", err))
		} else {
			log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
			settingsCache = settings.NewRedisCache(redisClient, cfg.Redis.SettingsTTL, log)
			defer redisClient.Close()
		}
	}

	dbLayer := &checkoutdb.DB{Bun: bunDB}
	provider := settings.NewProvider(dbLayer, settingsCache, cfg.Paypal, log)

	client := &http.Client{Timeout: 10 * time.Second}
	nvpClient := gateway.NewClient(provider, client, log)

	var publisher checkout.EventPublisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		publisher = kafka.NopPublisher{}
		log.Warn("KAFKA", "Kafka disabled, payment events will not be published")
	}

	dispatcher := reference.NewDispatcher(cfg.Cart, cfg.Server.BaseURL, log)
	docs := &reference.Docs{Bun: bunDB}
	docs.RegisterAll(dispatcher)

	service := checkout.NewService(dbLayer, nvpClient, publisher, dispatcher, cfg.Server.BaseURL, log)
	handler := &api.Handler{
		Checkout: service,
		QR:       qr.NewGenerator(nvpClient),
		Logger:   log,
	}

	log.Info("HTTP", "Setting up router")
	r := chi.NewRouter()

	// All three checkout entry points are guest-accessible: the customer
	// arrives here from gateway redirects with no session of their own.
	r.HandleFunc("/api/method/express_checkout.set_express_checkout", handler.SetExpressCheckout)
	r.Get(checkout.DetailPath, handler.GetExpressCheckoutDetails)
	r.Get(checkout.ConfirmPath, handler.ConfirmPayment)
	r.Get("/api/method/express_checkout.checkout_qr", handler.CheckoutQR)
	log.Info("ROUTER", "Express checkout routes registered under /api/method")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Express Checkout service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Express Checkout service shutdown complete")
	}
}
