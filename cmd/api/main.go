package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medport-health/medport-api/internal/api/router"
	"github.com/medport-health/medport-api/internal/bookings"
	"github.com/medport-health/medport-api/internal/catalog"
	appconfig "github.com/medport-health/medport-api/internal/config"
	"github.com/medport-health/medport-api/internal/events"
	"github.com/medport-health/medport-api/internal/notify"
	"github.com/medport-health/medport-api/internal/observability/metrics"
	"github.com/medport-health/medport-api/internal/payments"
	"github.com/medport-health/medport-api/internal/reviews"
	"github.com/medport-health/medport-api/internal/users"
	"github.com/medport-health/medport-api/pkg/logging"
)

func main() {
	// Load .env in development; real deployments set the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medport API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	redisClient := newRedisClient(cfg, logger)

	// Stores
	bookingStore := bookings.NewStore(pool)
	catalogRepo := catalog.NewRepository(pool)
	intentRepo := payments.NewRepository(pool)
	outboxStore := events.NewOutboxStore(pool)
	processedStore := events.NewProcessedStore(pool)
	userRepo := users.NewRepository(pool)
	reviewRepo := reviews.NewRepository(pool)

	// Payment gateway and lifecycle service
	gateway := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeAPIBaseURL, cfg.PaymentTimeout, logger)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	bookingService := bookings.NewService(bookingStore, catalogRepo, gateway, intentRepo, outboxStore, paymentMetrics, logger)

	velocity := payments.NewVelocityChecker(redisClient, payments.VelocityConfig{
		MaxAttemptsPerUser: cfg.MaxPaymentAttempts,
		AttemptWindow:      cfg.PaymentAttemptWindow,
		Enabled:            redisClient != nil,
	}, logger)

	// Outbox dispatcher for confirmation and cancellation emails
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails will be logged only")
		sender = notify.NewStubEmailSender(logger)
	}
	notifyService := notify.NewService(sender, notify.NewPgContactResolver(pool), logger)
	dispatcher := notify.NewDispatcher(outboxStore, notifyService, cfg.OutboxPollInterval, logger)
	go dispatcher.Run(ctx)

	// Handlers
	routerCfg := &router.Config{
		Logger:          logger,
		BookingsHandler: bookings.NewHandler(bookingService, logger),
		PaymentsHandler: payments.NewHandler(bookingService, velocity, logger),
		StripeWebhook:   payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, bookingService, processedStore, intentRepo, logger),
		UsersHandler:    users.NewHandler(userRepo, cfg.JWTSecret, cfg.TokenTTL, logger),
		CatalogHandler:  catalog.NewHandler(catalogRepo, logger),
		ReviewsHandler:  reviews.NewHandler(reviewRepo, logger),
		MetricsHandler:  promhttp.Handler(),

		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newRedisClient connects to Redis for payment velocity checks. Velocity is
// fail-open, so a missing Redis only disables the limit.
func newRedisClient(cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, payment velocity checks disabled", "error", err)
	}
	return client
}
