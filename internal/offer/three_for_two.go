package offer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

// ThreeForTwo gives one unit free for every three in the cart.
type ThreeForTwo struct {
	product product.Product
}

// NewThreeForTwo builds a three-for-two offer. Only discrete products can be
// grouped in threes.
func NewThreeForTwo(p product.Product) (*ThreeForTwo, error) {
	if err := checkProduct(p); err != nil {
		return nil, err
	}
	if !p.Unit.Discrete() {
		return nil, invalid("three for two needs a discrete product, %s is sold per %s", p.Name, p.Unit)
	}
	return &ThreeForTwo{product: p}, nil
}

func (o *ThreeForTwo) Kind() Kind { return KindThreeForTwo }

func (o *ThreeForTwo) Products() []product.Product { return []product.Product{o.product} }

func (o *ThreeForTwo) Discount(ctx context.Context, c *cart.Cart, cat catalog.Catalog) (*Discount, error) {
	quantity, ok := c.QuantityOf(o.product)
	if !ok {
		return nil, nil
	}
	threes, _ := quantity.QuoRem(three, 0)
	if threes.LessThan(decimal.NewFromInt(1)) {
		return nil, nil
	}
	price, err := unitPrice(ctx, cat, o.product)
	if err != nil {
		return nil, err
	}
	return &Discount{
		Kind:        KindThreeForTwo,
		Description: fmt.Sprintf("3 for 2 (%s)%s", o.product.Name, multiplierSuffix(threes)),
		Amount:      price.Mul(threes),
	}, nil
}
