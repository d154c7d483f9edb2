package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/supermarket-teller/internal/app"
	"github.com/noah-isme/supermarket-teller/internal/auth"
	"github.com/noah-isme/supermarket-teller/internal/common"
	"github.com/noah-isme/supermarket-teller/internal/config"
	"github.com/noah-isme/supermarket-teller/internal/health"
	"github.com/noah-isme/supermarket-teller/internal/httpapi"
	"github.com/noah-isme/supermarket-teller/internal/obs"
	"github.com/noah-isme/supermarket-teller/internal/receipt"
	"github.com/noah-isme/supermarket-teller/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "teller")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	if envBool("OBS_ENABLE_TRACING", true) {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "supermarket-teller",
			ServiceVersion: envOrDefault("APP_VERSION", "dev"),
			Endpoint:       envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:  envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Open(startCtx, cfg, logger, app.Options{AppName: "teller-api", RedisMetrics: metricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	var enqueuer tasks.Enqueuer
	if cfg.TasksEnabled {
		redisOpt, err := app.TaskRedisOpt(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("task queue")
		}
		taskClient := asynq.NewClient(redisOpt)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		enqueuer = taskClient
	}

	t, err := deps.NewTeller(deps.NewBus(enqueuer))
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise teller")
	}

	limiter, err := deps.NewLimiter()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	var verifier *auth.Verifier
	if cfg.AdminEnabled() {
		verifier, err = auth.NewVerifier(auth.Config{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Scope:    auth.ScopeAdmin,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise token verifier")
		}
	} else {
		logger.Warn().Msg("JWT_SECRET not set, admin routes disabled")
	}

	handler := &httpapi.Handler{
		Teller:  t,
		Catalog: deps.Catalog,
		Printer: receipt.Printer{Columns: envInt("RECEIPT_COLUMNS", receipt.DefaultColumns)},
		Logger:  logger,
	}
	if savings := deps.Savings(); savings != nil {
		handler.Savings = savings
	}

	idem := common.Idem{TTL: cfg.IdempotencyTTL}
	if deps.Redis != nil {
		idem.R = deps.Redis
	}

	routerCfg := httpapi.RouterConfig{
		Handler:        handler,
		Health:         health.Handler{Probes: deps.Probes},
		Logger:         logger,
		Verifier:       verifier,
		Limiter:        limiter,
		Idem:           idem,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		BodyLimitBytes: cfg.BodyLimitBytes,
	}
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		routerCfg.Metrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
		routerCfg.MetricsHandler = promhttp.Handler()
	}

	root := chi.NewRouter()
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		root.Mount("/debug/pprof", http.StripPrefix("/debug/pprof", protectPprof(newPprofMux(), user, pass)))
	}
	root.Mount("/", httpapi.NewRouter(routerCfg))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           otelhttp.NewHandler(root, "http.server"),
		ReadHeaderTimeout: envDurationMillis("HTTP_READ_HEADER_TIMEOUT_MS", 5000),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("catalog", cfg.CatalogBackend).
			Int("offers", len(t.Offers())).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("HTTP_SHUTDOWN_TIMEOUT_MS", 10000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
		logger.Info().Msg("server stopped")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
