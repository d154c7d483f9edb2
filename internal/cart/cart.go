package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
)

// ErrInvalidQuantity is returned when a non-positive quantity is added.
var ErrInvalidQuantity = errors.New("cart: quantity must be positive")

// Item is the accumulated quantity of one product in the cart.
type Item struct {
	Product  product.Product
	Quantity decimal.Decimal
}

// Cart is an ordered collection of product quantities. Adding a product that
// is already present increments its quantity and keeps its original position.
type Cart struct {
	index map[product.Product]int
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[product.Product]int)}
}

// AddItem adds a single unit of the product.
func (c *Cart) AddItem(p product.Product) error {
	return c.AddItemQuantity(p, decimal.NewFromInt(1))
}

// AddItemQuantity inserts or increments the quantity held for the product.
func (c *Cart) AddItemQuantity(p product.Product, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("add %s %s: %w", quantity, p.Name, ErrInvalidQuantity)
	}
	if c.index == nil {
		c.index = make(map[product.Product]int)
	}
	if pos, ok := c.index[p]; ok {
		c.items[pos].Quantity = c.items[pos].Quantity.Add(quantity)
		return nil
	}
	c.index[p] = len(c.items)
	c.items = append(c.items, Item{Product: p, Quantity: quantity})
	return nil
}

// QuantityOf returns the accumulated quantity for the product. The boolean is
// false when the product was never added.
func (c *Cart) QuantityOf(p product.Product) (decimal.Decimal, bool) {
	if c == nil {
		return decimal.Zero, false
	}
	pos, ok := c.index[p]
	if !ok {
		return decimal.Zero, false
	}
	return c.items[pos].Quantity, true
}

// Items returns a copy of the cart contents in first-insertion order.
func (c *Cart) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of distinct products in the cart.
func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}
