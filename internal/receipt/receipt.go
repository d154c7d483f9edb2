package receipt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/offer"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

// LineItem is one priced product on a receipt.
type LineItem struct {
	Product    product.Product
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Receipt collects the priced line items and applied discounts of a checkout.
// It is read-only once issued.
type Receipt struct {
	id        uuid.UUID
	issuedAt  time.Time
	items     []LineItem
	discounts []offer.Discount
}

// Issue builds a receipt from line items in cart order and discounts in
// offer registration order. The slices are copied.
func Issue(id uuid.UUID, issuedAt time.Time, items []LineItem, discounts []offer.Discount) *Receipt {
	return &Receipt{
		id:        id,
		issuedAt:  issuedAt,
		items:     append([]LineItem(nil), items...),
		discounts: append([]offer.Discount(nil), discounts...),
	}
}

func (r *Receipt) ID() uuid.UUID { return r.id }

func (r *Receipt) IssuedAt() time.Time { return r.issuedAt }

// Items returns the line items in the order they were added.
func (r *Receipt) Items() []LineItem {
	return append([]LineItem(nil), r.items...)
}

// Discounts returns the discounts in the order they were added.
func (r *Receipt) Discounts() []offer.Discount {
	return append([]offer.Discount(nil), r.discounts...)
}

// TotalPrice is the sum of line totals less all discounts.
func (r *Receipt) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.items {
		total = total.Add(it.TotalPrice)
	}
	for _, d := range r.discounts {
		total = total.Sub(d.Amount)
	}
	return total
}

// DiscountTotal is the sum of all discount amounts.
func (r *Receipt) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.discounts {
		total = total.Add(d.Amount)
	}
	return total
}
