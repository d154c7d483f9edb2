package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/obs"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

// Observed counts lookups against the wrapped catalog.
type Observed struct {
	Catalog
	Backend string
}

func (o Observed) UnitPrice(ctx context.Context, p product.Product) (decimal.Decimal, error) {
	price, err := o.Catalog.UnitPrice(ctx, p)
	if obs.CatalogLookupsTotal != nil {
		result := "hit"
		switch {
		case errors.Is(err, ErrProductNotFound):
			result = "miss"
		case err != nil:
			result = "error"
		}
		obs.CatalogLookupsTotal.WithLabelValues(o.Backend, result).Inc()
	}
	return price, err
}
