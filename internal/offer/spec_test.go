package offer_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermarket-teller/internal/offer"
	"github.com/noah-isme/supermarket-teller/internal/product"
)

func TestLoadFileBuildsOffersInOrder(t *testing.T) {
	offers, err := offer.LoadFile(filepath.Join("testdata", "offers.json"))
	require.NoError(t, err)
	require.Len(t, offers, 4)

	kinds := make([]offer.Kind, 0, len(offers))
	for _, o := range offers {
		kinds = append(kinds, o.Kind())
	}
	require.Equal(t, []offer.Kind{
		offer.KindPercentage,
		offer.KindQuantityForAmount,
		offer.KindThreeForTwo,
		offer.KindBundle,
	}, kinds)

	qfa, ok := offers[1].(*offer.QuantityForAmount)
	require.True(t, ok)
	require.Equal(t, int64(4), qfa.Quantity())
	require.True(t, qfa.Price().Equal(dec("5")))
}

func TestSpecOfRoundTrip(t *testing.T) {
	offers, err := offer.LoadFile(filepath.Join("testdata", "offers.json"))
	require.NoError(t, err)
	for _, o := range offers {
		rebuilt, err := offer.Build(offer.SpecOf(o))
		require.NoError(t, err)
		require.Equal(t, o, rebuilt)
	}

	data, err := json.Marshal(offer.SpecOf(offers[0]))
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"percentage","product":{"name":"apples","unit":"each"},"percent":"10"}`, string(data))
}

func TestBuildTrimsProductNames(t *testing.T) {
	var s offer.Spec
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"percentage","product":{"name":" apples ","unit":"each"},"percent":"10"}`), &s))
	o, err := offer.Build(s)
	require.NoError(t, err)
	require.Equal(t, []product.Product{apples}, o.Products())
	require.Equal(t, " apples ", s.Product.Name, "the caller's spec is left alone")

	var bundle offer.Spec
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"bundle","description":"Dental","products":[{"name":"toothbrush "},{"name":"\ttoothpaste"}],"price":"3"}`), &bundle))
	o, err = offer.Build(bundle)
	require.NoError(t, err)
	require.Equal(t, []product.Product{toothbrush, toothpaste}, o.Products())

	_, err = offer.Build(offer.Spec{Kind: offer.KindThreeForTwo, Product: &product.Product{Name: "   "}})
	require.ErrorIs(t, err, offer.ErrInvalidOffer)
}

func TestBuildRejectsInvalidSpecs(t *testing.T) {
	cases := map[string]string{
		"unknown kind":        `{"kind":"buy_one_get_one","product":{"name":"apples"}}`,
		"missing product":     `{"kind":"percentage","percent":"10"}`,
		"missing percent":     `{"kind":"percentage","product":{"name":"apples"}}`,
		"kilo three for two":  `{"kind":"three_for_two","product":{"name":"flour","unit":"kilo"}}`,
		"missing quantity":    `{"kind":"quantity_for_amount","product":{"name":"apples"},"price":"1"}`,
		"missing price":       `{"kind":"quantity_for_amount","product":{"name":"apples"},"quantity":2}`,
		"empty bundle":        `{"kind":"bundle","description":"x","products":[],"price":"1"}`,
		"bundle without list": `{"kind":"bundle","description":"x","price":"1"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var s offer.Spec
			require.NoError(t, json.Unmarshal([]byte(raw), &s))
			_, err := offer.Build(s)
			require.ErrorIs(t, err, offer.ErrInvalidOffer)
		})
	}
}

func TestDecodeReportsOffendingOffer(t *testing.T) {
	_, err := offer.Decode(strings.NewReader(`[{"kind":"three_for_two","product":{"name":"apples"}},{"kind":"bundle","products":[],"price":"1"}]`))
	require.ErrorIs(t, err, offer.ErrInvalidOffer)
	require.Contains(t, err.Error(), "offer 1")

	_, err = offer.Decode(strings.NewReader(`{`))
	require.Error(t, err)

	offers, err := offer.Decode(strings.NewReader(`[{"kind":"three_for_two","product":{"name":"apples"}}]`))
	require.NoError(t, err)
	require.Equal(t, []product.Product{product.New("apples", product.Each)}, offers[0].Products())
}
