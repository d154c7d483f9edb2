package product

import (
	"fmt"
	"strings"
)

// Unit is the unit of measure a product is sold in.
type Unit uint8

const (
	// Each is a discrete, countable item.
	Each Unit = iota
	// Kilo is sold by weight and may have fractional quantities.
	Kilo
)

func (u Unit) String() string {
	switch u {
	case Each:
		return "each"
	case Kilo:
		return "kilo"
	default:
		return "unknown"
	}
}

// Discrete reports whether quantities of the unit can be grouped item by item.
func (u Unit) Discrete() bool { return u == Each }

// ParseUnit converts a textual unit into a Unit.
func ParseUnit(value string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "each", "ea", "item":
		return Each, nil
	case "kilo", "kg", "kilogram":
		return Kilo, nil
	default:
		return 0, fmt.Errorf("product: unknown unit %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (u Unit) MarshalText() ([]byte, error) {
	if u != Each && u != Kilo {
		return nil, fmt.Errorf("product: unknown unit %d", u)
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Product identifies something a store sells. Two products with the same
// name and unit are the same product.
type Product struct {
	Name string `json:"name"`
	Unit Unit   `json:"unit"`
}

// New constructs a product.
func New(name string, unit Unit) Product {
	return Product{Name: name, Unit: unit}
}

// Key returns a stable identifier suitable for store keys.
func (p Product) Key() string {
	return p.Name + "/" + p.Unit.String()
}

func (p Product) String() string { return p.Name }
