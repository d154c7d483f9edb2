package teller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/events"
	"github.com/noah-isme/supermarket-teller/internal/obs"
	"github.com/noah-isme/supermarket-teller/internal/offer"
	"github.com/noah-isme/supermarket-teller/internal/receipt"
)

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Config wires a Teller.
type Config struct {
	Catalog catalog.Catalog
	Logger  zerolog.Logger
	// Events receives a receipt.issued event per checkout. Optional.
	Events Publisher
	// Concurrency bounds parallel offer evaluation. Values below 2 evaluate sequentially.
	Concurrency int
	Now         func() time.Time
}

// Teller prices carts against a catalog and applies registered offers.
type Teller struct {
	catalog     catalog.Catalog
	logger      zerolog.Logger
	events      Publisher
	concurrency int
	now         func() time.Time

	mu     sync.RWMutex
	offers []offer.Offer
}

// New constructs a Teller.
func New(cfg Config) (*Teller, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("teller: catalog is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Teller{
		catalog:     cfg.Catalog,
		logger:      cfg.Logger,
		events:      cfg.Events,
		concurrency: cfg.Concurrency,
		now:         now,
	}, nil
}

// AddSpecialOffer registers an offer after all previously registered ones.
func (t *Teller) AddSpecialOffer(o offer.Offer) {
	if o == nil {
		return
	}
	t.mu.Lock()
	t.offers = append(t.offers, o)
	t.mu.Unlock()
}

// Offers returns the registered offers in registration order.
func (t *Teller) Offers() []offer.Offer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]offer.Offer(nil), t.offers...)
}

// ChecksOutArticlesFrom prices every cart line and collects the discounts of
// all registered offers. Discounts appear in registration order; offers that
// do not apply are skipped. A catalog failure aborts the checkout.
func (t *Teller) ChecksOutArticlesFrom(ctx context.Context, c *cart.Cart) (*receipt.Receipt, error) {
	if c == nil {
		c = cart.New()
	}
	ctx, span := otel.Tracer("teller.Teller").Start(ctx, "teller.checkout")
	defer span.End()
	start := time.Now()

	r, err := t.checkout(ctx, c)
	if obs.CheckoutDuration != nil {
		obs.CheckoutDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		countCheckout(checkoutResult(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("receipt.id", r.ID().String()),
		attribute.Int("receipt.lines", len(r.Items())),
		attribute.Int("receipt.discounts", len(r.Discounts())),
	)
	countCheckout("ok")
	for _, d := range r.Discounts() {
		if obs.DiscountsAppliedTotal != nil {
			obs.DiscountsAppliedTotal.WithLabelValues(string(d.Kind)).Inc()
		}
		if obs.DiscountAmountTotal != nil {
			obs.DiscountAmountTotal.WithLabelValues(string(d.Kind)).Add(d.Amount.InexactFloat64())
		}
	}
	t.logger.Debug().
		Str("receipt_id", r.ID().String()).
		Int("lines", len(r.Items())).
		Int("discounts", len(r.Discounts())).
		Str("total", r.TotalPrice().StringFixed(2)).
		Msg("checkout complete")
	t.publish(ctx, r)
	return r, nil
}

func (t *Teller) checkout(ctx context.Context, c *cart.Cart) (*receipt.Receipt, error) {
	issuedAt := t.now().UTC()
	cartItems := c.Items()
	lines := make([]receipt.LineItem, 0, len(cartItems))
	for _, item := range cartItems {
		price, err := t.catalog.UnitPrice(ctx, item.Product)
		if err != nil {
			return nil, fmt.Errorf("teller: price %s: %w", item.Product.Key(), err)
		}
		lines = append(lines, receipt.LineItem{
			Product:    item.Product,
			Quantity:   item.Quantity,
			UnitPrice:  price,
			TotalPrice: item.Quantity.Mul(price),
		})
	}

	results, err := t.evaluate(ctx, c, t.Offers())
	if err != nil {
		return nil, err
	}
	discounts := make([]offer.Discount, 0, len(results))
	for _, d := range results {
		if d != nil {
			discounts = append(discounts, *d)
		}
	}
	return receipt.Issue(uuid.New(), issuedAt, lines, discounts), nil
}

// evaluate returns one slot per offer, in registration order; nil slots did not apply.
func (t *Teller) evaluate(ctx context.Context, c *cart.Cart, offers []offer.Offer) ([]*offer.Discount, error) {
	results := make([]*offer.Discount, len(offers))
	if t.concurrency < 2 || len(offers) < 2 {
		for i, o := range offers {
			d, err := o.Discount(ctx, c, t.catalog)
			if err != nil {
				return nil, fmt.Errorf("teller: %s offer: %w", o.Kind(), err)
			}
			results[i] = d
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, o := range offers {
		g.Go(func() error {
			d, err := o.Discount(gctx, c, t.catalog)
			if err != nil {
				return fmt.Errorf("teller: %s offer: %w", o.Kind(), err)
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (t *Teller) publish(ctx context.Context, r *receipt.Receipt) {
	if t.events == nil {
		return
	}
	payload := events.ReceiptIssued{
		ReceiptID: r.ID(),
		IssuedAt:  r.IssuedAt(),
		Total:     r.TotalPrice(),
		Items:     len(r.Items()),
	}
	for _, d := range r.Discounts() {
		payload.Discounts = append(payload.Discounts, events.DiscountApplied{Kind: string(d.Kind), Amount: d.Amount})
	}
	if _, err := t.events.Emit(ctx, events.TopicReceiptIssued, r.ID(), payload); err != nil {
		t.logger.Warn().Err(err).Str("receipt_id", r.ID().String()).Msg("publish receipt event")
	}
}

func checkoutResult(err error) string {
	if errors.Is(err, catalog.ErrProductNotFound) {
		return "unknown_product"
	}
	return "error"
}

func countCheckout(result string) {
	if obs.CheckoutsTotal != nil {
		obs.CheckoutsTotal.WithLabelValues(result).Inc()
	}
}
