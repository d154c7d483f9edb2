package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache constructs a cache helper. Keys are namespaced under prefix.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

// Delete drops a cached payload.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Cached is a read-through price cache in front of another catalog. Cache
// failures fall back to the backing catalog; misses are never cached.
type Cached struct {
	Backing Catalog
	Cache   *Cache
}

func (c Cached) AddProduct(ctx context.Context, p product.Product, unitPrice decimal.Decimal) error {
	if err := c.Backing.AddProduct(ctx, p, unitPrice); err != nil {
		return err
	}
	return c.Cache.Delete(ctx, p.Key())
}

func (c Cached) UnitPrice(ctx context.Context, p product.Product) (decimal.Decimal, error) {
	var cached decimal.Decimal
	if ok, err := c.Cache.GetJSON(ctx, p.Key(), &cached); err == nil && ok {
		return cached, nil
	}
	price, err := c.Backing.UnitPrice(ctx, p)
	if err != nil {
		return decimal.Zero, err
	}
	_ = c.Cache.SetJSON(ctx, p.Key(), price)
	return price, nil
}
