package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/catalog/migrations"
	"github.com/noah-isme/supermarket-teller/internal/config"
	"github.com/noah-isme/supermarket-teller/internal/events"
	"github.com/noah-isme/supermarket-teller/internal/health"
	"github.com/noah-isme/supermarket-teller/internal/lock"
	"github.com/noah-isme/supermarket-teller/internal/obs"
	"github.com/noah-isme/supermarket-teller/internal/offer"
	"github.com/noah-isme/supermarket-teller/internal/ratelimit"
	"github.com/noah-isme/supermarket-teller/internal/resilience"
	"github.com/noah-isme/supermarket-teller/internal/tasks"
	"github.com/noah-isme/supermarket-teller/internal/teller"
)

const probeTimeout = 500 * time.Millisecond

// Dependencies enumerates the infrastructure shared by the entrypoints.
// Redis and DB are nil when the configuration does not need them.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Redis   *redis.Client
	DB      *pgxpool.Pool
	Catalog catalog.Catalog
	Probes  []health.Probe
}

// Options tunes how Open instruments its clients.
type Options struct {
	// AppName is reported to postgres as application_name.
	AppName string
	// RedisMetrics enables redisotel metrics alongside tracing.
	RedisMetrics bool
}

// Open connects the stores the configuration asks for and builds the
// catalog, seeding it from CATALOG_FILE when set.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	if cfg.RedisURL != "" {
		client, err := OpenRedis(ctx, cfg.RedisURL, logger, opts.RedisMetrics)
		if err != nil {
			return nil, err
		}
		deps.Redis = client
		deps.Probes = append(deps.Probes, health.RedisProbe(client, probeTimeout))
	}

	if cfg.CatalogBackend == config.CatalogPostgres {
		if cfg.MigrateOnStart {
			if err := migrations.Up(cfg.DatabaseURL); err != nil {
				deps.Close()
				return nil, fmt.Errorf("migrate catalog: %w", err)
			}
			logger.Info().Msg("catalog migrations applied")
		}
		pool, err := OpenPool(ctx, cfg.DatabaseURL, opts.AppName)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.DB = pool
		deps.Probes = append(deps.Probes, health.PingProbe("db", pool, probeTimeout))
	}

	cat, err := deps.buildCatalog()
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Catalog = cat

	if cfg.CatalogFile != "" {
		if err := deps.seed(ctx); err != nil {
			deps.Close()
			return nil, err
		}
	}
	return deps, nil
}

// seed loads CATALOG_FILE into the catalog. Shared stores are seeded under a
// Redis lease so replicas starting together do not interleave writes.
func (d *Dependencies) seed(ctx context.Context) error {
	entries, err := catalog.LoadFile(d.Config.CatalogFile)
	if err != nil {
		return err
	}
	run := func(ctx context.Context) error {
		if err := catalog.Seed(ctx, d.Catalog, entries); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		return nil
	}
	if d.Redis != nil && d.Config.CatalogBackend != config.CatalogMemory {
		locker := lock.Locker{Client: d.Redis, Prefix: "lock:"}
		err = locker.WithLock(ctx, "catalog-seed", time.Minute, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return err
	}
	d.Logger.Info().Int("products", len(entries)).Str("file", d.Config.CatalogFile).Msg("catalog seeded")
	return nil
}

// OpenRedis parses url, instruments the client and pings it.
func OpenRedis(ctx context.Context, url string, logger zerolog.Logger, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// OpenPool connects a pgx pool with query tracing.
func OpenPool(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if appName != "" {
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (d *Dependencies) buildCatalog() (catalog.Catalog, error) {
	cfg := d.Config
	var cat catalog.Catalog
	switch cfg.CatalogBackend {
	case config.CatalogMemory, "":
		cat = catalog.NewMemory()
	case config.CatalogRedis:
		if d.Redis == nil {
			return nil, errors.New("redis catalog needs REDIS_URL")
		}
		cat = catalog.Redis{Client: d.Redis}
	case config.CatalogPostgres:
		if d.DB == nil {
			return nil, errors.New("postgres catalog needs DATABASE_URL")
		}
		cat = catalog.Postgres{Q: d.DB}
		if cfg.CatalogCacheTTL > 0 && d.Redis != nil {
			cat = catalog.Cached{Backing: cat, Cache: catalog.NewCache(d.Redis, "catalog:price:", cfg.CatalogCacheTTL)}
		}
	default:
		return nil, fmt.Errorf("unsupported catalog backend %q", cfg.CatalogBackend)
	}
	if cfg.CatalogBackend != config.CatalogMemory && cfg.CatalogBackend != "" && cfg.CatalogBreakerMinRequests > 0 {
		cat = catalog.Guarded{Catalog: cat, Breaker: resilience.NewBreaker(resilience.Config{
			Target:       "catalog_" + cfg.CatalogBackend,
			MinRequests:  cfg.CatalogBreakerMinRequests,
			FailureRatio: cfg.CatalogBreakerFailureRatio,
			OpenFor:      cfg.CatalogBreakerOpenFor,
			Logger:       d.Logger,
		})}
	}
	return catalog.Observed{Catalog: cat, Backend: cfg.CatalogBackend}, nil
}

// NewTeller builds the teller and registers the offers of OFFERS_FILE in
// file order.
func (d *Dependencies) NewTeller(publisher teller.Publisher) (*teller.Teller, error) {
	t, err := teller.New(teller.Config{
		Catalog:     d.Catalog,
		Logger:      d.Logger.With().Str("component", "teller").Logger(),
		Events:      publisher,
		Concurrency: d.Config.TellerConcurrency,
	})
	if err != nil {
		return nil, err
	}
	if d.Config.OffersFile == "" {
		return t, nil
	}
	offers, err := offer.LoadFile(d.Config.OffersFile)
	if err != nil {
		return nil, err
	}
	for _, o := range offers {
		t.AddSpecialOffer(o)
	}
	d.Logger.Info().Int("offers", len(offers)).Str("file", d.Config.OffersFile).Msg("offers registered")
	return t, nil
}

// NewLimiter returns the configured checkout limiter, or nil when rate
// limiting is off or Redis is absent.
func (d *Dependencies) NewLimiter() (ratelimit.Allower, error) {
	cfg := d.Config
	if d.Redis == nil || cfg.RateLimitBackend == config.RateLimitOff || cfg.RateLimitMax <= 0 {
		return nil, nil
	}
	switch cfg.RateLimitBackend {
	case config.RateLimitFixed:
		fixed, err := ratelimit.NewFixedWindow(d.Redis, "rl:fixed:", cfg.RateLimitWindow, cfg.RateLimitMax)
		if err != nil {
			return nil, err
		}
		return fixed, nil
	default:
		return ratelimit.SlidingWindow{
			Client: d.Redis,
			Prefix: "rl:checkout:",
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		}, nil
	}
}

// NewBus wires the receipt notifiers: the Redis stream whenever Redis is
// configured and the task queue when enqueuer is non-nil.
func (d *Dependencies) NewBus(enqueuer tasks.Enqueuer) *events.Bus {
	bus := &events.Bus{}
	if d.Redis != nil {
		bus.Notifiers = append(bus.Notifiers, &events.StreamNotifier{
			Client: d.Redis,
			Stream: d.Config.EventsStream,
			MaxLen: d.Config.EventsStreamMaxLen,
			Topics: events.DefaultTopics(),
		})
	}
	if enqueuer != nil {
		bus.Notifiers = append(bus.Notifiers, &tasks.TaskNotifier{Client: enqueuer, Queue: d.Config.TaskQueue})
	}
	return bus
}

// Savings returns the savings aggregate store, or nil when tasks are off.
func (d *Dependencies) Savings() *tasks.Savings {
	if d.Redis == nil || !d.Config.TasksEnabled {
		return nil
	}
	return &tasks.Savings{Client: d.Redis}
}

// TaskRedisOpt derives the asynq connection from REDIS_URL.
func TaskRedisOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("parse task redis url: %w", err)
	}
	return opt, nil
}

// Close releases the stores opened by Open.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
