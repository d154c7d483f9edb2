package catalog

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/product"
)

// Memory is an in-process catalog.
type Memory struct {
	mu     sync.RWMutex
	prices map[product.Product]decimal.Decimal
}

// NewMemory returns an empty in-process catalog.
func NewMemory() *Memory {
	return &Memory{prices: make(map[product.Product]decimal.Decimal)}
}

func (m *Memory) AddProduct(_ context.Context, p product.Product, unitPrice decimal.Decimal) error {
	if err := validate(p, unitPrice); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prices == nil {
		m.prices = make(map[product.Product]decimal.Decimal)
	}
	m.prices[p] = unitPrice
	return nil
}

func (m *Memory) UnitPrice(_ context.Context, p product.Product) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.prices[p]
	if !ok {
		return decimal.Zero, notFound(p)
	}
	return price, nil
}
