package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
	"github.com/noah-isme/supermarket-teller/internal/resilience"
)

// Guarded fails fast with resilience.ErrOpenCircuit while the backing store
// keeps failing. Misses and rejected prices do not count as failures.
type Guarded struct {
	Catalog
	Breaker *resilience.Breaker
}

func (g Guarded) AddProduct(ctx context.Context, p product.Product, unitPrice decimal.Decimal) error {
	return g.Breaker.Do(ctx, func(ctx context.Context) error {
		return g.Catalog.AddProduct(ctx, p, unitPrice)
	}, storeFailure)
}

func (g Guarded) UnitPrice(ctx context.Context, p product.Product) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		price, err = g.Catalog.UnitPrice(ctx, p)
		return err
	}, storeFailure)
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

func storeFailure(err error) bool {
	return !errors.Is(err, ErrProductNotFound) && !errors.Is(err, ErrInvalidPrice) && !errors.Is(err, context.Canceled)
}
