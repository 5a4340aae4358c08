package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumapay/lumapay-backend/api/controllers"
	webhookcontrollers "github.com/lumapay/lumapay-backend/api/controllers/webhooks"
	"github.com/lumapay/lumapay-backend/api/middleware"
	"github.com/lumapay/lumapay-backend/internal/analytics"
	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/internal/payouts"
	"github.com/lumapay/lumapay-backend/internal/products"
	"github.com/lumapay/lumapay-backend/internal/refunds"
	"github.com/lumapay/lumapay-backend/internal/wallets"
	stripewebhook "github.com/lumapay/lumapay-backend/internal/webhooks/stripe"
	"github.com/lumapay/lumapay-backend/pkg/config"
	"github.com/lumapay/lumapay-backend/pkg/db"
	"github.com/lumapay/lumapay-backend/pkg/logger"
	"github.com/lumapay/lumapay-backend/pkg/redis"
	"github.com/lumapay/lumapay-backend/pkg/stripe"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	Products  *products.Service
	Payments  *payments.Service
	Payouts   *payouts.Service
	Refunds   *refunds.Service
	Wallets   *wallets.Service
	Analytics *analytics.Service

	StripeClient       *stripe.Client
	StripeWebhook      webhookcontrollers.StripeWebhookService
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
	CircleWebhook      webhookcontrollers.CircleWebhookService
	CircleWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/health", controllers.Health(deps.DB, deps.Redis, logg))
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.StripeWebhookGuard, logg))
		r.Post("/circle", webhookcontrollers.CircleWebhook(deps.CircleWebhook, cfg.Circle.WebhookSecret, deps.CircleWebhookGuard, logg))
	})

	// Public payment-page surface: resolve a link, open a payment.
	r.Route("/api/v1/public", func(r chi.Router) {
		r.Get("/links/{slug}", controllers.ProductByLink(deps.Products, logg))
		r.Post("/payments", controllers.PaymentCreate(deps.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("seller", logg))

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.ProductCreate(deps.Products, logg))
				r.Get("/", controllers.SellerProducts(deps.Products, logg))
				r.Patch("/{productId}", controllers.ProductUpdate(deps.Products, logg))
				r.Delete("/{productId}", controllers.ProductDeactivate(deps.Products, logg))
			})

			r.Route("/wallet", func(r chi.Router) {
				r.Post("/", controllers.WalletRegister(deps.Wallets, logg))
				r.Get("/", controllers.WalletGet(deps.Wallets, logg))
			})

			r.Get("/payments", controllers.SellerPayments(deps.Payments, logg))
			r.Get("/analytics/summary", controllers.SellerAnalytics(deps.Analytics, logg))
		})

		r.Get("/payments/{paymentId}", controllers.PaymentGet(deps.Payments, logg))
		r.Post("/payments/{paymentId}/refund", controllers.PaymentRefund(deps.Refunds, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("operator", logg))
			r.Post("/payments/{paymentId}/retry-payout", controllers.PayoutRetry(deps.Payouts, logg))
		})
	})

	return r
}
