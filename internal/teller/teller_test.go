package teller_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/events"
	"github.com/noah-isme/supermarket-teller/internal/offer"
	"github.com/noah-isme/supermarket-teller/internal/product"
	"github.com/noah-isme/supermarket-teller/internal/teller"
)

var (
	toothbrush = product.New("toothbrush", product.Each)
	toothpaste = product.New("toothpaste", product.Each)
	oranges    = product.New("oranges", product.Each)
	apples     = product.New("apples", product.Each)
	flour      = product.New("flour", product.Kilo)
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTeller(t *testing.T, concurrency int) *teller.Teller {
	t.Helper()
	entries, err := catalog.LoadFile("../catalog/testdata/catalog.json")
	require.NoError(t, err)
	cat := catalog.NewMemory()
	require.NoError(t, catalog.Seed(context.Background(), cat, entries))
	tl, err := teller.New(teller.Config{Catalog: cat, Logger: zerolog.Nop(), Concurrency: concurrency})
	require.NoError(t, err)
	return tl
}

func fill(t *testing.T, lines ...any) *cart.Cart {
	t.Helper()
	c := cart.New()
	for i := 0; i < len(lines); i += 2 {
		require.NoError(t, c.AddItemQuantity(lines[i].(product.Product), dec(lines[i+1].(string))))
	}
	return c
}

func mustOffer(t *testing.T) func(offer.Offer, error) offer.Offer {
	return func(o offer.Offer, err error) offer.Offer {
		t.Helper()
		require.NoError(t, err)
		return o
	}
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := teller.New(teller.Config{})
	require.Error(t, err)
}

func TestCheckoutScenarios(t *testing.T) {
	type want struct {
		description string
		amount      string
	}
	for _, concurrency := range []int{1, 4} {
		cases := []struct {
			name   string
			offers func(t *testing.T) []offer.Offer
			cart   []any
			want   []want
			total  string
		}{
			{
				name: "percentage and quantity for amount",
				offers: func(t *testing.T) []offer.Offer {
					must := mustOffer(t)
					return []offer.Offer{
						must(offer.NewPercentage(apples, dec("10"))),
						must(offer.NewQuantityForAmount(oranges, 4, dec("5.00"))),
					}
				},
				cart:  []any{oranges, "5", apples, "3"},
				want:  []want{{"apples", "0.60"}, {"oranges", "3.00"}},
				total: "12.37",
			},
			{
				name: "bundle twice",
				offers: func(t *testing.T) []offer.Offer {
					must := mustOffer(t)
					return []offer.Offer{must(offer.NewBundle("Dental bundle", []product.Product{toothbrush, toothpaste}, dec("3.00")))}
				},
				cart:  []any{toothbrush, "3", toothpaste, "2"},
				want:  []want{{"x2", "2.82"}},
				total: "6.99",
			},
			{
				name: "three for two twice",
				offers: func(t *testing.T) []offer.Offer {
					must := mustOffer(t)
					return []offer.Offer{must(offer.NewThreeForTwo(apples))}
				},
				cart:  []any{apples, "8"},
				want:  []want{{"x2", "3.98"}},
				total: "11.94",
			},
			{
				name:   "no offers",
				offers: func(*testing.T) []offer.Offer { return nil },
				cart:   []any{toothbrush, "25"},
				total:  "24.75",
			},
			{
				name: "half price flour rounds up",
				offers: func(t *testing.T) []offer.Offer {
					must := mustOffer(t)
					return []offer.Offer{must(offer.NewPercentage(flour, dec("50")))}
				},
				cart:  []any{flour, "2.5"},
				want:  []want{{"flour", "3.13"}},
				total: "3.12",
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				tl := newTeller(t, concurrency)
				for _, o := range tc.offers(t) {
					tl.AddSpecialOffer(o)
				}
				r, err := tl.ChecksOutArticlesFrom(context.Background(), fill(t, tc.cart...))
				require.NoError(t, err)
				discounts := r.Discounts()
				require.Len(t, discounts, len(tc.want))
				for i, w := range tc.want {
					require.Contains(t, discounts[i].Description, w.description)
					require.True(t, discounts[i].Amount.Equal(dec(w.amount)), "discount %d: %s", i, discounts[i].Amount)
				}
				require.True(t, r.TotalPrice().Equal(dec(tc.total)), "total %s", r.TotalPrice())
			})
		}
	}
}

func TestLineItemsFollowCartOrder(t *testing.T) {
	tl := newTeller(t, 1)
	c := fill(t, flour, "1.5", apples, "1", flour, "1", toothbrush, "2")
	r, err := tl.ChecksOutArticlesFrom(context.Background(), c)
	require.NoError(t, err)

	items := r.Items()
	require.Len(t, items, 3)
	require.Equal(t, flour, items[0].Product)
	require.True(t, items[0].Quantity.Equal(dec("2.5")))
	require.True(t, items[0].UnitPrice.Equal(dec("2.50")))
	require.True(t, items[0].TotalPrice.Equal(dec("6.25")))
	require.Equal(t, apples, items[1].Product)
	require.Equal(t, toothbrush, items[2].Product)
	require.True(t, items[2].TotalPrice.Equal(dec("1.98")))
}

func TestDiscountOrderFollowsRegistration(t *testing.T) {
	must := mustOffer(t)
	for _, concurrency := range []int{1, 3} {
		tl := newTeller(t, concurrency)
		tl.AddSpecialOffer(must(offer.NewThreeForTwo(toothbrush)))
		tl.AddSpecialOffer(must(offer.NewPercentage(flour, dec("20"))))
		tl.AddSpecialOffer(must(offer.NewPercentage(oranges, dec("10"))))
		tl.AddSpecialOffer(must(offer.NewQuantityForAmount(apples, 2, dec("3.00"))))
		tl.AddSpecialOffer(must(offer.NewPercentage(toothpaste, dec("5"))))
		require.Len(t, tl.Offers(), 5)

		// line order is the reverse of offer order; oranges are absent
		c := fill(t, toothpaste, "1", apples, "2", flour, "1", toothbrush, "3")
		r, err := tl.ChecksOutArticlesFrom(context.Background(), c)
		require.NoError(t, err)

		var kinds []offer.Kind
		var names []string
		for _, d := range r.Discounts() {
			kinds = append(kinds, d.Kind)
			names = append(names, d.Description)
		}
		require.Equal(t, []offer.Kind{
			offer.KindThreeForTwo,
			offer.KindPercentage,
			offer.KindQuantityForAmount,
			offer.KindPercentage,
		}, kinds)
		require.True(t, strings.Contains(names[1], "flour"))
		require.True(t, strings.Contains(names[3], "toothpaste"))
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	tl := newTeller(t, 1)
	c := fill(t, apples, "1", product.New("bananas", product.Each), "2")
	r, err := tl.ChecksOutArticlesFrom(context.Background(), c)
	require.Nil(t, r)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

type failingOffer struct{ err error }

func (f failingOffer) Kind() offer.Kind            { return offer.KindPercentage }
func (f failingOffer) Products() []product.Product { return []product.Product{apples} }
func (f failingOffer) Discount(context.Context, *cart.Cart, catalog.Catalog) (*offer.Discount, error) {
	return nil, f.err
}

func TestCheckoutOfferFailureAborts(t *testing.T) {
	boom := errors.New("lookup failed")
	for _, concurrency := range []int{1, 2} {
		tl := newTeller(t, concurrency)
		tl.AddSpecialOffer(mustOffer(t)(offer.NewThreeForTwo(apples)))
		tl.AddSpecialOffer(failingOffer{err: boom})
		r, err := tl.ChecksOutArticlesFrom(context.Background(), fill(t, apples, "3"))
		require.Nil(t, r)
		require.ErrorIs(t, err, boom)
	}
}

func TestCheckoutsAreIndependent(t *testing.T) {
	tl := newTeller(t, 1)
	tl.AddSpecialOffer(mustOffer(t)(offer.NewThreeForTwo(apples)))

	first, err := tl.ChecksOutArticlesFrom(context.Background(), fill(t, apples, "3"))
	require.NoError(t, err)
	second, err := tl.ChecksOutArticlesFrom(context.Background(), fill(t, apples, "2"))
	require.NoError(t, err)

	require.NotEqual(t, first.ID(), second.ID())
	require.Len(t, first.Discounts(), 1)
	require.Empty(t, second.Discounts())
	require.True(t, first.TotalPrice().Equal(dec("3.98")))
	require.True(t, second.TotalPrice().Equal(dec("3.98")))
}

func TestEmptyCart(t *testing.T) {
	tl := newTeller(t, 1)
	tl.AddSpecialOffer(mustOffer(t)(offer.NewPercentage(apples, dec("10"))))
	r, err := tl.ChecksOutArticlesFrom(context.Background(), cart.New())
	require.NoError(t, err)
	require.Empty(t, r.Items())
	require.Empty(t, r.Discounts())
	require.True(t, r.TotalPrice().IsZero())
}

type capturePublisher struct {
	topics   []string
	payloads []any
	err      error
}

func (c *capturePublisher) Emit(_ context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, c.err
}

func TestCheckoutPublishesReceipt(t *testing.T) {
	cat := catalog.NewMemory()
	require.NoError(t, cat.AddProduct(context.Background(), apples, dec("1.99")))
	pub := &capturePublisher{err: errors.New("stream down")}
	issued := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	tl, err := teller.New(teller.Config{
		Catalog: cat,
		Logger:  zerolog.Nop(),
		Events:  pub,
		Now:     func() time.Time { return issued },
	})
	require.NoError(t, err)
	tl.AddSpecialOffer(mustOffer(t)(offer.NewThreeForTwo(apples)))

	r, err := tl.ChecksOutArticlesFrom(context.Background(), fill(t, apples, "3"))
	require.NoError(t, err, "publication failures do not fail the checkout")
	require.Equal(t, issued, r.IssuedAt())
	require.Equal(t, []string{events.TopicReceiptIssued}, pub.topics)

	payload, ok := pub.payloads[0].(events.ReceiptIssued)
	require.True(t, ok)
	require.Equal(t, r.ID(), payload.ReceiptID)
	require.Equal(t, 1, payload.Items)
	require.True(t, payload.Total.Equal(dec("3.98")))
	require.Len(t, payload.Discounts, 1)
	require.Equal(t, string(offer.KindThreeForTwo), payload.Discounts[0].Kind)
	require.True(t, payload.Discounts[0].Amount.Equal(dec("1.99")))
}
