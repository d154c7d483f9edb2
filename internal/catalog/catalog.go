package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
)

// ErrProductNotFound is returned when a product has no price in the catalog.
var ErrProductNotFound = errors.New("catalog: product not found")

// ErrInvalidPrice is returned when a negative unit price is stored.
var ErrInvalidPrice = errors.New("catalog: price must not be negative")

// Catalog maps products to unit prices.
type Catalog interface {
	AddProduct(ctx context.Context, p product.Product, unitPrice decimal.Decimal) error
	UnitPrice(ctx context.Context, p product.Product) (decimal.Decimal, error)
}

// Entry is one priced product, as found in catalog files.
type Entry struct {
	Name  string          `json:"name"`
	Unit  product.Unit    `json:"unit"`
	Price decimal.Decimal `json:"price"`
}

// Product returns the product the entry prices.
func (e Entry) Product() product.Product {
	return product.New(e.Name, e.Unit)
}

// LoadFile reads a JSON array of entries.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	return entries, nil
}

// Seed adds every entry to the catalog in order.
func Seed(ctx context.Context, c Catalog, entries []Entry) error {
	for _, e := range entries {
		if err := c.AddProduct(ctx, e.Product(), e.Price); err != nil {
			return fmt.Errorf("seed %s: %w", e.Product().Key(), err)
		}
	}
	return nil
}

func validate(p product.Product, unitPrice decimal.Decimal) error {
	if p.Name == "" {
		return errors.New("catalog: product name is required")
	}
	if unitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

func notFound(p product.Product) error {
	return fmt.Errorf("%w: %s", ErrProductNotFound, p.Key())
}
