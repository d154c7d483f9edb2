// Package offer implements the special-offer rules a teller applies to a
// cart. Every rule yields at most one Discount per cart. A rule that does
// not apply returns a nil Discount and a nil error; errors are reserved for
// catalog lookup failures.
package offer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

// ErrInvalidOffer is returned by constructors when an offer is misconfigured.
var ErrInvalidOffer = errors.New("invalid offer")

// Kind names an offer variant.
type Kind string

const (
	KindPercentage        Kind = "percentage"
	KindThreeForTwo       Kind = "three_for_two"
	KindQuantityForAmount Kind = "quantity_for_amount"
	KindBundle            Kind = "bundle"
)

// Discount is the money taken off a bill by one offer.
type Discount struct {
	Kind        Kind            `json:"kind"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Offer is a configured discount rule bound to one or more products.
type Offer interface {
	Kind() Kind
	Products() []product.Product
	Discount(ctx context.Context, c *cart.Cart, cat catalog.Catalog) (*Discount, error)
}

var (
	hundred = decimal.NewFromInt(100)
	three   = decimal.NewFromInt(3)
)

// multiplierSuffix renders " xN" for a whole multiplicity above one.
// Multiplicities stay decimal so arbitrarily large cart quantities are exact.
func multiplierSuffix(n decimal.Decimal) string {
	if n.GreaterThan(decimal.NewFromInt(1)) {
		return " x" + n.String()
	}
	return ""
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOffer, fmt.Sprintf(format, args...))
}

func checkProduct(p product.Product) error {
	if p.Name == "" {
		return invalid("product name is required")
	}
	return nil
}

func unitPrice(ctx context.Context, cat catalog.Catalog, p product.Product) (decimal.Decimal, error) {
	price, err := cat.UnitPrice(ctx, p)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %s: %w", p.Key(), err)
	}
	return price, nil
}
