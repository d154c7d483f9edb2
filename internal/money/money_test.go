package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"3.125":  "3.13",
		"0.597":  "0.6",
		"0.099":  "0.1",
		"1.994":  "1.99",
		"2.82":   "2.82",
		"-0.005": "0",
		"-0.015": "-0.01",
	}
	for in, want := range cases {
		got := Round(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("Round(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format(decimal.RequireFromString("0.6")); got != "0.60" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestCentsRoundTrip(t *testing.T) {
	cents := Cents(decimal.RequireFromString("3.125"))
	if cents != 313 {
		t.Fatalf("expected 313 cents, got %d", cents)
	}
	if !FromCents(cents).Equal(decimal.RequireFromString("3.13")) {
		t.Fatalf("unexpected amount %s", FromCents(cents))
	}
}
