package offer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/money"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

// Percentage takes a share of the price off every unit of a product.
type Percentage struct {
	product    product.Product
	percentOff decimal.Decimal
}

// NewPercentage builds a percentage offer. percentOff must be in (0, 100].
func NewPercentage(p product.Product, percentOff decimal.Decimal) (*Percentage, error) {
	if err := checkProduct(p); err != nil {
		return nil, err
	}
	if !percentOff.IsPositive() || percentOff.GreaterThan(hundred) {
		return nil, invalid("percentage must be within (0, 100], got %s", percentOff)
	}
	return &Percentage{product: p, percentOff: percentOff}, nil
}

func (o *Percentage) Kind() Kind { return KindPercentage }

func (o *Percentage) Products() []product.Product { return []product.Product{o.product} }

// PercentOff returns the configured percentage.
func (o *Percentage) PercentOff() decimal.Decimal { return o.percentOff }

// Discount applies to any present quantity, fractional ones included.
func (o *Percentage) Discount(ctx context.Context, c *cart.Cart, cat catalog.Catalog) (*Discount, error) {
	quantity, ok := c.QuantityOf(o.product)
	if !ok {
		return nil, nil
	}
	price, err := unitPrice(ctx, cat, o.product)
	if err != nil {
		return nil, err
	}
	amount := quantity.Mul(price).Mul(o.percentOff).Div(hundred)
	return &Discount{
		Kind:        KindPercentage,
		Description: fmt.Sprintf("%s%% off (%s)", o.percentOff, o.product.Name),
		Amount:      money.Round(amount),
	}, nil
}
