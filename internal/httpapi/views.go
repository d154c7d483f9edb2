package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/supermarket-teller/internal/money"
	"github.com/noah-isme/supermarket-teller/internal/offer"
	"github.com/noah-isme/supermarket-teller/internal/receipt"
)

type lineView struct {
	Product   string `json:"product"`
	Unit      string `json:"unit"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

type discountView struct {
	Kind        offer.Kind `json:"kind"`
	Description string     `json:"description"`
	Amount      string     `json:"amount"`
}

type receiptView struct {
	ID        uuid.UUID      `json:"id"`
	IssuedAt  time.Time      `json:"issued_at"`
	Items     []lineView     `json:"items"`
	Discounts []discountView `json:"discounts"`
	Total     string         `json:"total"`
}

func viewReceipt(r *receipt.Receipt) receiptView {
	items := r.Items()
	discounts := r.Discounts()
	out := receiptView{
		ID:        r.ID(),
		IssuedAt:  r.IssuedAt(),
		Items:     make([]lineView, 0, len(items)),
		Discounts: make([]discountView, 0, len(discounts)),
		Total:     money.Format(r.TotalPrice()),
	}
	for _, it := range items {
		out.Items = append(out.Items, lineView{
			Product:   it.Product.Name,
			Unit:      it.Product.Unit.String(),
			Quantity:  it.Quantity.String(),
			UnitPrice: money.Format(it.UnitPrice),
			Total:     money.Format(it.TotalPrice),
		})
	}
	for _, d := range discounts {
		out.Discounts = append(out.Discounts, discountView{
			Kind:        d.Kind,
			Description: d.Description,
			Amount:      money.Format(d.Amount),
		})
	}
	return out
}
