package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
)

// Querier is the subset of *pgxpool.Pool used by the postgres catalog.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	upsertPriceSQL = `INSERT INTO catalog_products (name, unit, price)
VALUES ($1, $2, $3::numeric)
ON CONFLICT (name, unit) DO UPDATE SET price = EXCLUDED.price, updated_at = now()`
	selectPriceSQL = `SELECT price::text FROM catalog_products WHERE name = $1 AND unit = $2`
)

// Postgres reads prices from the catalog_products table.
type Postgres struct {
	Q Querier
}

func (s Postgres) AddProduct(ctx context.Context, p product.Product, unitPrice decimal.Decimal) error {
	if s.Q == nil {
		return errors.New("catalog: postgres not configured")
	}
	if err := validate(p, unitPrice); err != nil {
		return err
	}
	if _, err := s.Q.Exec(ctx, upsertPriceSQL, p.Name, p.Unit.String(), unitPrice.String()); err != nil {
		return fmt.Errorf("upsert price: %w", err)
	}
	return nil
}

func (s Postgres) UnitPrice(ctx context.Context, p product.Product) (decimal.Decimal, error) {
	if s.Q == nil {
		return decimal.Zero, errors.New("catalog: postgres not configured")
	}
	var raw string
	if err := s.Q.QueryRow(ctx, selectPriceSQL, p.Name, p.Unit.String()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, notFound(p)
		}
		return decimal.Zero, fmt.Errorf("select price: %w", err)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: corrupt price for %s: %w", p.Key(), err)
	}
	return price, nil
}

// Ping checks database connectivity when the querier supports it.
func (s Postgres) Ping(ctx context.Context) error {
	if pinger, ok := s.Q.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
