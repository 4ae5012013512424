package pricing

import (
	"math"
	"testing"

	"github.com/contractor-tools/estimator/internal/entity"
)

func TestRoundHalf(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{0.24, 0},
		{0.25, 0.5}, // half-up on the .25 boundary
		{0.26, 0.5},
		{0.74, 0.5},
		{0.75, 1},
		{11.44, 11.5},
		{13, 13},
		{154.5, 154.5},
		{-0.26, -0.5},
	}
	for _, tc := range cases {
		if got := RoundHalf(tc.in); got != tc.want {
			t.Fatalf("RoundHalf(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRoundHalfIdempotent(t *testing.T) {
	for x := -100.0; x <= 100.0; x += 0.01 {
		once := RoundHalf(x)
		if twice := RoundHalf(once); twice != once {
			t.Fatalf("RoundHalf not idempotent at %v: %v != %v", x, twice, once)
		}
		if r := math.Mod(math.Abs(once)*2, 1); r != 0 {
			t.Fatalf("RoundHalf(%v) = %v is not a multiple of 0.5", x, once)
		}
	}
}

func TestComputeTotals(t *testing.T) {
	labor := []entity.LaborLine{{Task: "demo", Hours: 2}}
	materials := []entity.MaterialLine{{Item: "tile", Qty: 3, Cost: 10}}

	priced, totals := ComputeTotals(labor, materials, 50, 10, 8)

	if priced[0].Rate != 50 || priced[0].Total != 100 {
		t.Fatalf("labor line not priced: %+v", priced[0])
	}
	if totals.Subtotal != 130 {
		t.Fatalf("subtotal = %v, want 130", totals.Subtotal)
	}
	if totals.MarkupAmount != 13 {
		t.Fatalf("markup = %v, want 13", totals.MarkupAmount)
	}
	// 8% of 143 = 11.44 -> rounds up to the next half dollar
	if totals.Tax != 11.5 {
		t.Fatalf("tax = %v, want 11.5", totals.Tax)
	}
	if totals.Total != 154.5 {
		t.Fatalf("total = %v, want 154.5", totals.Total)
	}
}

func TestComputeTotalsEmpty(t *testing.T) {
	priced, totals := ComputeTotals(nil, nil, 85, 15, 7)
	if len(priced) != 0 {
		t.Fatalf("expected no labor lines, got %d", len(priced))
	}
	if totals.Subtotal != 0 || totals.MarkupAmount != 0 || totals.Tax != 0 || totals.Total != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestComputeTotalsDeterministic(t *testing.T) {
	labor := []entity.LaborLine{
		{Task: "tear-out", Hours: 3.5},
		{Task: "install", Hours: 12.25},
	}
	materials := []entity.MaterialLine{
		{Item: "thinset", Qty: 4, Cost: 18.75},
		{Item: "grout", Qty: 2, Cost: 12.30},
	}
	_, first := ComputeTotals(labor, materials, 72.5, 12, 6.25)
	for i := 0; i < 100; i++ {
		if _, again := ComputeTotals(labor, materials, 72.5, 12, 6.25); again != first {
			t.Fatalf("totals drifted on run %d: %+v != %+v", i, again, first)
		}
	}
}
