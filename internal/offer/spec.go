package offer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
)

// Spec is the serialisable definition of an offer.
type Spec struct {
	Kind        Kind              `json:"kind" validate:"required,oneof=percentage three_for_two quantity_for_amount bundle"`
	Product     *product.Product  `json:"product,omitempty" validate:"required_unless=Kind bundle"`
	Percent     *decimal.Decimal  `json:"percent,omitempty" validate:"required_if=Kind percentage"`
	Quantity    int64             `json:"quantity,omitempty" validate:"required_if=Kind quantity_for_amount,gte=0"`
	Price       *decimal.Decimal  `json:"price,omitempty"`
	Description string            `json:"description,omitempty" validate:"max=200"`
	Products    []product.Product `json:"products,omitempty" validate:"required_if=Kind bundle"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Build validates the spec and constructs the offer it describes.
func Build(s Spec) (Offer, error) {
	s = trimNames(s)
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, invalid("%s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	switch s.Kind {
	case KindPercentage:
		return NewPercentage(*s.Product, *s.Percent)
	case KindThreeForTwo:
		return NewThreeForTwo(*s.Product)
	case KindQuantityForAmount:
		if s.Price == nil {
			return nil, invalid("quantity for amount needs a price")
		}
		return NewQuantityForAmount(*s.Product, s.Quantity, *s.Price)
	case KindBundle:
		if s.Price == nil {
			return nil, invalid("bundle needs a price")
		}
		return NewBundle(s.Description, s.Products, *s.Price)
	default:
		return nil, invalid("unknown kind %q", s.Kind)
	}
}

func trimNames(s Spec) Spec {
	if s.Product != nil {
		p := *s.Product
		p.Name = strings.TrimSpace(p.Name)
		s.Product = &p
	}
	if len(s.Products) > 0 {
		products := make([]product.Product, len(s.Products))
		for i, p := range s.Products {
			p.Name = strings.TrimSpace(p.Name)
			products[i] = p
		}
		s.Products = products
	}
	return s
}

// SpecOf describes an offer as a Spec.
func SpecOf(o Offer) Spec {
	switch v := o.(type) {
	case *Percentage:
		p, pct := v.product, v.percentOff
		return Spec{Kind: KindPercentage, Product: &p, Percent: &pct}
	case *ThreeForTwo:
		p := v.product
		return Spec{Kind: KindThreeForTwo, Product: &p}
	case *QuantityForAmount:
		p, price := v.product, v.price
		return Spec{Kind: KindQuantityForAmount, Product: &p, Quantity: v.quantity, Price: &price}
	case *Bundle:
		price := v.price
		return Spec{Kind: KindBundle, Description: v.description, Products: v.Products(), Price: &price}
	default:
		return Spec{Kind: o.Kind(), Products: o.Products()}
	}
}

// Decode reads a JSON array of specs and builds every offer in order.
func Decode(r io.Reader) ([]Offer, error) {
	var specs []Spec
	if err := json.NewDecoder(r).Decode(&specs); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	offers := make([]Offer, 0, len(specs))
	for i, s := range specs {
		o, err := Build(s)
		if err != nil {
			return nil, fmt.Errorf("offer %d: %w", i, err)
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// LoadFile reads offers from a JSON file.
func LoadFile(path string) ([]Offer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open offers file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
