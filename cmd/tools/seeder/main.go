package main

import (
	"context"
	"flag"
	"time"

	"github.com/noah-isme/supermarket-teller/internal/app"
	"github.com/noah-isme/supermarket-teller/internal/config"
	"github.com/noah-isme/supermarket-teller/internal/obs"
)

func main() {
	file := flag.String("file", "internal/catalog/testdata/catalog.json", "catalog JSON file of {name, unit, price} rows")
	migrate := flag.Bool("migrate", true, "apply catalog migrations first (postgres backend)")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if cfg.CatalogBackend == config.CatalogMemory {
		logger.Fatal().Msg("CATALOG_BACKEND=memory has nothing to seed; use redis or postgres")
	}
	cfg.CatalogFile = *file
	cfg.MigrateOnStart = cfg.MigrateOnStart || *migrate
	// seeding writes through to the store, the read cache is not needed
	cfg.CatalogCacheTTL = 0

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deps, err := app.Open(ctx, cfg, logger, app.Options{AppName: "teller-seeder"})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	deps.Close()
	logger.Info().Str("backend", cfg.CatalogBackend).Msg("seeding completed")
}
