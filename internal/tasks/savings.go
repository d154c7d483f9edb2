package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/events"
	"github.com/noah-isme/supermarket-teller/internal/money"
)

// DateLayout is the day key used for savings reports.
const DateLayout = "2006-01-02"

const (
	fieldReceipts   = "receipts"
	kindFieldPrefix = "kind:"
	countPrefix     = "count:"
)

// ErrAlreadyRecorded is returned when a receipt was counted before.
var ErrAlreadyRecorded = errors.New("receipt already recorded")

// Savings aggregates discounts per offer kind per day in Redis hashes.
type Savings struct {
	Client redis.Cmdable
	Prefix string
	// TTL bounds how long daily aggregates and the dedup markers live.
	TTL time.Duration
}

// KindSavings is the aggregate for one offer kind.
type KindSavings struct {
	Kind      string          `json:"kind"`
	Discounts int64           `json:"discounts"`
	Amount    decimal.Decimal `json:"amount"`
}

// Report is the savings of one day.
type Report struct {
	Date     string          `json:"date"`
	Receipts int64           `json:"receipts"`
	Kinds    []KindSavings   `json:"kinds"`
	Total    decimal.Decimal `json:"total"`
}

func (s *Savings) prefix() string {
	if s.Prefix == "" {
		return "savings"
	}
	return s.Prefix
}

func (s *Savings) ttl() time.Duration {
	if s.TTL <= 0 {
		return 90 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Savings) dayKey(day time.Time) string {
	return s.prefix() + ":" + day.UTC().Format(DateLayout)
}

// Record adds the receipt's discounts to its issue day. A receipt is counted once.
func (s *Savings) Record(ctx context.Context, r events.ReceiptIssued) error {
	if s == nil || s.Client == nil {
		return errors.New("savings store not configured")
	}
	seenKey := s.prefix() + ":seen:" + r.ReceiptID.String()
	fresh, err := s.Client.SetNX(ctx, seenKey, "1", s.ttl()).Result()
	if err != nil {
		return fmt.Errorf("mark receipt: %w", err)
	}
	if !fresh {
		return ErrAlreadyRecorded
	}

	key := s.dayKey(r.IssuedAt)
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldReceipts, 1)
		for _, d := range r.Discounts {
			pipe.HIncrBy(ctx, key, kindFieldPrefix+d.Kind, money.Cents(d.Amount))
			pipe.HIncrBy(ctx, key, countPrefix+d.Kind, 1)
		}
		pipe.Expire(ctx, key, s.ttl())
		return nil
	})
	if err != nil {
		_ = s.Client.Del(ctx, seenKey).Err()
		return fmt.Errorf("aggregate savings: %w", err)
	}
	return nil
}

// Report returns the aggregate for the given day. Unknown days yield an empty report.
func (s *Savings) Report(ctx context.Context, day time.Time) (Report, error) {
	report := Report{Date: day.UTC().Format(DateLayout), Kinds: []KindSavings{}, Total: decimal.Zero}
	if s == nil || s.Client == nil {
		return report, errors.New("savings store not configured")
	}
	fields, err := s.Client.HGetAll(ctx, s.dayKey(day)).Result()
	if err != nil {
		return report, fmt.Errorf("read savings: %w", err)
	}
	byKind := map[string]*KindSavings{}
	entry := func(kind string) *KindSavings {
		if ks, ok := byKind[kind]; ok {
			return ks
		}
		ks := &KindSavings{Kind: kind, Amount: decimal.Zero}
		byKind[kind] = ks
		return ks
	}
	for field, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return report, fmt.Errorf("savings field %s: %w", field, err)
		}
		switch {
		case field == fieldReceipts:
			report.Receipts = n
		case strings.HasPrefix(field, kindFieldPrefix):
			entry(strings.TrimPrefix(field, kindFieldPrefix)).Amount = money.FromCents(n)
		case strings.HasPrefix(field, countPrefix):
			entry(strings.TrimPrefix(field, countPrefix)).Discounts = n
		}
	}
	for _, ks := range byKind {
		report.Kinds = append(report.Kinds, *ks)
		report.Total = report.Total.Add(ks.Amount)
	}
	sort.Slice(report.Kinds, func(i, j int) bool { return report.Kinds[i].Kind < report.Kinds[j].Kind })
	return report, nil
}
