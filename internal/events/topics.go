package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Topic constants for domain events emitted by the teller.
const (
	TopicReceiptIssued = "receipt.issued"
)

// DefaultTopics returns the topics published to the event stream.
func DefaultTopics() []string {
	return []string{TopicReceiptIssued}
}

// ReceiptIssued is the payload of TopicReceiptIssued.
type ReceiptIssued struct {
	ReceiptID uuid.UUID         `json:"receipt_id"`
	IssuedAt  time.Time         `json:"issued_at"`
	Total     decimal.Decimal   `json:"total"`
	Items     int               `json:"items"`
	Discounts []DiscountApplied `json:"discounts"`
}

// DiscountApplied summarises one discount on an issued receipt.
type DiscountApplied struct {
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}
