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

// QuantityForAmount sells every full group of Quantity units for a fixed price.
//
// The cart quantity is truncated to whole units before both the threshold
// check and the normal-price baseline, so fractional remainders of products
// sold by weight take no part in the comparison.
type QuantityForAmount struct {
	product  product.Product
	quantity int64
	price    decimal.Decimal
}

// NewQuantityForAmount builds an "N for $X" offer.
func NewQuantityForAmount(p product.Product, quantity int64, price decimal.Decimal) (*QuantityForAmount, error) {
	if err := checkProduct(p); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, invalid("quantity must be at least 1, got %d", quantity)
	}
	if price.IsNegative() {
		return nil, invalid("price must not be negative, got %s", price)
	}
	return &QuantityForAmount{product: p, quantity: quantity, price: price}, nil
}

func (o *QuantityForAmount) Kind() Kind { return KindQuantityForAmount }

func (o *QuantityForAmount) Products() []product.Product { return []product.Product{o.product} }

// Quantity returns the group size.
func (o *QuantityForAmount) Quantity() int64 { return o.quantity }

// Price returns the price of one group.
func (o *QuantityForAmount) Price() decimal.Decimal { return o.price }

func (o *QuantityForAmount) Discount(ctx context.Context, c *cart.Cart, cat catalog.Catalog) (*Discount, error) {
	quantity, ok := c.QuantityOf(o.product)
	if !ok {
		return nil, nil
	}
	whole := quantity.Truncate(0)
	threshold := decimal.NewFromInt(o.quantity)
	if whole.LessThan(threshold) {
		return nil, nil
	}
	unit, err := unitPrice(ctx, cat, o.product)
	if err != nil {
		return nil, err
	}
	groups, rest := whole.QuoRem(threshold, 0)
	discounted := o.price.Mul(groups).Add(unit.Mul(rest))
	normal := unit.Mul(whole)
	return &Discount{
		Kind:        KindQuantityForAmount,
		Description: fmt.Sprintf("%d for $%s (%s)", o.quantity, money.Format(o.price), o.product.Name),
		Amount:      money.Round(normal.Sub(discounted)),
	}, nil
}
