package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 100},
		{"412.5", 41250},
		{"2687.5", 268750},
		{"0.01", 1},
		{"19.999", 2000},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("bad literal %q: %v", tc.in, err)
		}
		if got := MinorUnits(d); got != tc.want {
			t.Fatalf("MinorUnits(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFromMinorUnits_RoundTrips(t *testing.T) {
	t.Parallel()

	for _, minor := range []int64{0, 1, 100, 41250, 268750} {
		if got := MinorUnits(FromMinorUnits(minor)); got != minor {
			t.Fatalf("round trip of %d produced %d", minor, got)
		}
	}
}
