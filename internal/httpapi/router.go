package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/noah-isme/supermarket-teller/internal/auth"
	"github.com/noah-isme/supermarket-teller/internal/common"
	"github.com/noah-isme/supermarket-teller/internal/health"
	"github.com/noah-isme/supermarket-teller/internal/obs"
	"github.com/noah-isme/supermarket-teller/internal/ratelimit"
	"github.com/noah-isme/supermarket-teller/internal/security"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Handler *Handler
	Health  health.Handler
	Logger  zerolog.Logger

	// Metrics and MetricsHandler are optional.
	Metrics        *obs.HTTPMetrics
	MetricsHandler http.Handler

	// Verifier guards /admin; admin routes are not mounted without one.
	Verifier *auth.Verifier
	// Limiter throttles checkouts per client IP when set.
	Limiter        ratelimit.Allower
	Idem           common.Idem
	CORSOrigins    []string
	BodyLimitBytes int64
}

// NewRouter builds the chi router for the API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.SpanRouteMiddleware)
	if cfg.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: true}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", common.ReplayedHeader},
		MaxAge:         300,
	}))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	h := cfg.Handler
	limiter := ratelimit.Handler{
		Limiter: cfg.Limiter,
		OnError: func(err error) { cfg.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	r.Route("/api/v1", func(v chi.Router) {
		v.With(limiter.Middleware, cfg.Idem.Middleware).Post("/checkouts", h.Checkout)
		v.Get("/offers", h.ListOffers)
		v.Get("/products/{name}", h.ProductPrice)

		if cfg.Verifier != nil {
			v.Route("/admin", func(admin chi.Router) {
				admin.Use(auth.Middleware{Verifier: cfg.Verifier}.RequireAuth)
				admin.Post("/offers", h.AddOffer)
				admin.Put("/products", h.PutProduct)
				admin.Get("/savings", h.SavingsReport)
			})
		}
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
