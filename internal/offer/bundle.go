package offer

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/money"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

// Bundle sells one of each listed product together for a fixed price.
type Bundle struct {
	description string
	products    []product.Product
	price       decimal.Decimal
}

// NewBundle builds a bundle offer over a non-empty product list.
func NewBundle(description string, products []product.Product, price decimal.Decimal) (*Bundle, error) {
	if len(products) == 0 {
		return nil, invalid("bundle needs at least one product")
	}
	for _, p := range products {
		if err := checkProduct(p); err != nil {
			return nil, err
		}
	}
	if price.IsNegative() {
		return nil, invalid("price must not be negative, got %s", price)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Bundle"
	}
	return &Bundle{
		description: description,
		products:    append([]product.Product(nil), products...),
		price:       price,
	}, nil
}

func (o *Bundle) Kind() Kind { return KindBundle }

func (o *Bundle) Products() []product.Product {
	return append([]product.Product(nil), o.products...)
}

// Description returns the configured bundle name.
func (o *Bundle) Description() string { return o.description }

// Price returns the price of one complete bundle.
func (o *Bundle) Price() decimal.Decimal { return o.price }

// Discount applies when every constituent is present. The number of bundles
// is the whole part of the scarcest constituent's quantity.
func (o *Bundle) Discount(ctx context.Context, c *cart.Cart, cat catalog.Catalog) (*Discount, error) {
	var scarcest decimal.Decimal
	for i, p := range o.products {
		quantity, ok := c.QuantityOf(p)
		if !ok {
			return nil, nil
		}
		if i == 0 || quantity.LessThan(scarcest) {
			scarcest = quantity
		}
	}
	normal := decimal.Zero
	for _, p := range o.products {
		price, err := unitPrice(ctx, cat, p)
		if err != nil {
			return nil, err
		}
		normal = normal.Add(price)
	}
	bundles := scarcest.Floor()
	amount := normal.Sub(o.price).Mul(bundles)
	return &Discount{
		Kind:        KindBundle,
		Description: o.description + multiplierSuffix(bundles),
		Amount:      money.Round(amount),
	}, nil
}
