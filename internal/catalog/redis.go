package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
)

// DefaultRedisKey is the hash holding catalog prices.
const DefaultRedisKey = "catalog:prices"

// Redis stores prices as fields of a single hash keyed by Product.Key.
type Redis struct {
	Client *redis.Client
	Key    string
}

func (r Redis) key() string {
	if r.Key == "" {
		return DefaultRedisKey
	}
	return r.Key
}

func (r Redis) AddProduct(ctx context.Context, p product.Product, unitPrice decimal.Decimal) error {
	if r.Client == nil {
		return errors.New("catalog: redis client not configured")
	}
	if err := validate(p, unitPrice); err != nil {
		return err
	}
	return r.Client.HSet(ctx, r.key(), p.Key(), unitPrice.String()).Err()
}

func (r Redis) UnitPrice(ctx context.Context, p product.Product) (decimal.Decimal, error) {
	if r.Client == nil {
		return decimal.Zero, errors.New("catalog: redis client not configured")
	}
	raw, err := r.Client.HGet(ctx, r.key(), p.Key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, notFound(p)
		}
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: corrupt price for %s: %w", p.Key(), err)
	}
	return price, nil
}
