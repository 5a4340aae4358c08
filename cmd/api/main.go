package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/lumapay/lumapay-backend/api/routes"
	"github.com/lumapay/lumapay-backend/internal/analytics"
	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/internal/payouts"
	"github.com/lumapay/lumapay-backend/internal/products"
	"github.com/lumapay/lumapay-backend/internal/refunds"
	"github.com/lumapay/lumapay-backend/internal/wallets"
	circlewebhook "github.com/lumapay/lumapay-backend/internal/webhooks/circle"
	stripewebhook "github.com/lumapay/lumapay-backend/internal/webhooks/stripe"
	"github.com/lumapay/lumapay-backend/pkg/circle"
	"github.com/lumapay/lumapay-backend/pkg/config"
	"github.com/lumapay/lumapay-backend/pkg/db"
	"github.com/lumapay/lumapay-backend/pkg/logger"
	"github.com/lumapay/lumapay-backend/pkg/metrics"
	"github.com/lumapay/lumapay-backend/pkg/migrate"
	"github.com/lumapay/lumapay-backend/pkg/redis"
	"github.com/lumapay/lumapay-backend/pkg/stripe"
)

const (
	webhookIdempotencyTTL = 24 * time.Hour
	shutdownTimeout       = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	circleClient, err := circle.NewClient(context.Background(), cfg.Circle, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap circle", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	paymentsRepo := payments.NewRepository(dbClient.DB())
	walletsRepo := wallets.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())

	productsService, err := products.NewService(products.ServiceParams{
		Repo:   productsRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	walletsService, err := wallets.NewService(wallets.ServiceParams{
		Repo:   walletsRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallets service", err)
		os.Exit(1)
	}

	payoutsService, err := payouts.NewService(payouts.ServiceParams{
		Payments: paymentsRepo,
		Wallets:  walletsRepo,
		Provider: circleClient,
		Config:   cfg.Payouts,
		Logger:   logg,
		Metrics:  paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     paymentsRepo,
		Products: productsRepo,
		Payouts:  payoutsService,
		Stripe:   stripeClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	refundsService, err := refunds.NewService(refunds.ServiceParams{
		Payments: paymentsRepo,
		Stripe:   stripeClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	analyticsService, err := analytics.NewService(analytics.ServiceParams{
		Repo: analytics.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentsService,
		Logger:   logg,
		Metrics:  paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	circleWebhookService, err := circlewebhook.NewService(circlewebhook.ServiceParams{
		Payouts: payoutsService,
		Logger:  logg,
		Metrics: paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create circle webhook service", err)
		os.Exit(1)
	}
	circleWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "circle-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create circle webhook guard", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Registry: registry,

		Products:  productsService,
		Payments:  paymentsService,
		Payouts:   payoutsService,
		Refunds:   refundsService,
		Wallets:   walletsService,
		Analytics: analyticsService,

		StripeClient:       stripeClient,
		StripeWebhook:      stripeWebhookService,
		StripeWebhookGuard: stripeWebhookGuard,
		CircleWebhook:      circleWebhookService,
		CircleWebhookGuard: circleWebhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		err = multierr.Append(err, redisClient.Close())
		err = multierr.Append(err, dbClient.Close())
		if err != nil {
			logg.Error(ctx, "shutdown finished with errors", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server stopped")
		return
	}

	if err := multierr.Append(redisClient.Close(), dbClient.Close()); err != nil {
		logg.Error(ctx, "error closing clients", err)
	}
}
