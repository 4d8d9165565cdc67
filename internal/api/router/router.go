package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medport-health/medport-api/internal/bookings"
	"github.com/medport-health/medport-api/internal/catalog"
	httpmiddleware "github.com/medport-health/medport-api/internal/http/middleware"
	"github.com/medport-health/medport-api/internal/payments"
	"github.com/medport-health/medport-api/internal/reviews"
	"github.com/medport-health/medport-api/internal/users"
	"github.com/medport-health/medport-api/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	BookingsHandler *bookings.Handler
	PaymentsHandler *payments.Handler
	StripeWebhook   *payments.StripeWebhookHandler
	UsersHandler    *users.Handler
	CatalogHandler  *catalog.Handler
	ReviewsHandler  *reviews.Handler
	MetricsHandler  http.Handler

	JWTSecret          string
	CORSAllowedOrigins []string

	// Requests per second per client IP; zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints (webhooks, health checks, browse)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
		if cfg.UsersHandler != nil {
			public.Post("/auth/register", cfg.UsersHandler.Register)
			public.Post("/auth/login", cfg.UsersHandler.Login)
		}
		if cfg.CatalogHandler != nil {
			public.Get("/providers", cfg.CatalogHandler.ListProviders)
			public.Get("/providers/{providerID}", cfg.CatalogHandler.GetProvider)
			public.Get("/providers/{providerID}/prices", cfg.CatalogHandler.ListPrices)
		}
		if cfg.ReviewsHandler != nil {
			public.Get("/providers/{providerID}/reviews", cfg.ReviewsHandler.List)
			public.Get("/providers/{providerID}/reviews/summary", cfg.ReviewsHandler.Summary)
		}
	})

	// Authenticated routes
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.Auth(cfg.JWTSecret))

		if cfg.UsersHandler != nil {
			authed.Get("/auth/me", cfg.UsersHandler.Me)
		}

		if cfg.BookingsHandler != nil {
			authed.Route("/bookings", func(r chi.Router) {
				r.Post("/", cfg.BookingsHandler.Create)
				r.Get("/", cfg.BookingsHandler.List)
				r.Get("/{bookingID}", cfg.BookingsHandler.Get)
				r.Put("/{bookingID}", cfg.BookingsHandler.Update)
				r.Put("/{bookingID}/status", cfg.BookingsHandler.SetStatus)
			})
		}

		if cfg.PaymentsHandler != nil {
			authed.Post("/payments/create-payment-intent", cfg.PaymentsHandler.CreatePaymentIntent)
			authed.Post("/payments/confirm-payment/{bookingID}", cfg.PaymentsHandler.Confirm)
			// Resource-style aliases for the same operations.
			authed.Route("/payments/bookings/{bookingID}", func(r chi.Router) {
				r.Post("/intent", cfg.PaymentsHandler.CreateIntent)
				r.Post("/confirm", cfg.PaymentsHandler.Confirm)
			})
		}

		if cfg.CatalogHandler != nil {
			authed.Post("/providers", cfg.CatalogHandler.CreateProvider)
			authed.Post("/providers/{providerID}/prices", cfg.CatalogHandler.CreatePrice)
			authed.Put("/providers/{providerID}/prices/{priceID}", cfg.CatalogHandler.UpdatePrice)
		}

		if cfg.ReviewsHandler != nil {
			authed.Post("/providers/{providerID}/reviews", cfg.ReviewsHandler.Create)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
