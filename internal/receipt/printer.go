package receipt

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/money"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

// DefaultColumns is the printed receipt width.
const DefaultColumns = 40

// Printer renders receipts as fixed-width text.
type Printer struct {
	Columns int
}

func (p Printer) columns() int {
	if p.Columns <= 0 {
		return DefaultColumns
	}
	return p.Columns
}

// Print renders the receipt.
func (p Printer) Print(r *Receipt) string {
	var b strings.Builder
	for _, it := range r.Items() {
		b.WriteString(p.line(it.Product.Name, money.Format(it.TotalPrice)))
		if !isSingleItem(it) {
			b.WriteString("  " + money.Format(it.UnitPrice) + " * " + formatQuantity(it) + "\n")
		}
	}
	for _, d := range r.Discounts() {
		b.WriteString(p.line(d.Description, money.Format(d.Amount.Neg())))
	}
	b.WriteString("\n")
	b.WriteString(p.line("Total: ", money.Format(r.TotalPrice())))
	return b.String()
}

func (p Printer) line(name, value string) string {
	pad := p.columns() - len(name) - len(value)
	if pad < 1 {
		pad = 1
	}
	return name + strings.Repeat(" ", pad) + value + "\n"
}

func isSingleItem(it LineItem) bool {
	return it.Product.Unit == product.Each && it.Quantity.Equal(decimal.NewFromInt(1))
}

func formatQuantity(it LineItem) string {
	if it.Product.Unit == product.Each {
		return it.Quantity.Truncate(0).String()
	}
	return it.Quantity.StringFixed(3)
}
