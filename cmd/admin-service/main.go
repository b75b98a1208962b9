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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-express-checkout/internal/admin"
	"ms-express-checkout/internal/auth"
	checkoutdb "ms-express-checkout/internal/checkout/db"
	"ms-express-checkout/internal/config"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/settings"
)

// Operational API over the checkout data: payment list, failure log,
// stored gateway settings. Runs separately from the customer-facing
// checkout service and requires a bearer token.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Express Checkout admin service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()
	log.Info("DATABASE", "PostgreSQL connection successful")

	dbLayer := &checkoutdb.DB{Bun: bunDB}

	var cache admin.SettingsCache
	if cfg.Redis.SettingsEnabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unavailable, settings cache will go stale on its own TTL: %v", err))
		} else {
			cache = settings.NewRedisCache(redisClient, cfg.Redis.SettingsTTL, log)
			defer redisClient.Close()
		}
	}

	handler := admin.NewHandler(dbLayer, cache, log)

	router := gin.Default()

	issuer := os.Getenv("OIDC_ISSUER")
	if issuer != "" {
		verifier, err := auth.NewVerifier(ctx, issuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to set up OIDC verifier: %v", err))
		}
		router.Use(verifier.GinMiddleware())
		log.Info("AUTH", "OIDC middleware applied to admin routes")
	} else {
		router.Use(auth.UnverifiedGinMiddleware())
		log.Warn("AUTH", "OIDC_ISSUER not set, admin routes use unverified token attribution")
	}

	handler.RegisterRoutes(router)
	log.Info("ROUTER", "Admin routes registered under /api/express-payments")

	port := getEnv("ADMIN_PORT", ":8087")
	server := &http.Server{
		Addr:    port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Admin service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Admin service shutdown complete")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
