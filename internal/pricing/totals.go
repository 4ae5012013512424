package pricing

import (
	"math"

	"github.com/contractor-tools/estimator/internal/entity"
)

// RoundHalf snaps a value to the nearest 0.5 currency unit, rounding
// half up on the .25 boundary. Bids go out in half-dollar units; this is
// a business rule, not floating-point cleanup.
func RoundHalf(x float64) float64 {
	return math.Floor(x*2+0.5) / 2
}

// Totals is the money summary of one generation.
type Totals struct {
	Subtotal     float64
	MarkupAmount float64
	Tax          float64
	Total        float64
}

// ComputeTotals applies the hourly rate to each labor line, sums material
// costs, and layers markup then tax on the half-rounded subtotal. Pure and
// deterministic; both the interactive path and the queue runner go through
// here so the two can never diverge.
func ComputeTotals(labor []entity.LaborLine, materials []entity.MaterialLine, hourlyRate, markupPercent, taxRatePercent float64) ([]entity.LaborLine, Totals) {
	priced := make([]entity.LaborLine, len(labor))
	var laborTotal float64
	for i, l := range labor {
		l.Rate = hourlyRate
		l.Total = RoundHalf(l.Hours * hourlyRate)
		priced[i] = l
		laborTotal += l.Total
	}

	var materialsTotal float64
	for _, m := range materials {
		materialsTotal += m.Qty * m.Cost
	}

	subtotal := RoundHalf(materialsTotal + laborTotal)
	markup := RoundHalf(subtotal * markupPercent / 100)
	tax := RoundHalf((subtotal + markup) * taxRatePercent / 100)
	total := RoundHalf(subtotal + markup + tax)

	return priced, Totals{
		Subtotal:     subtotal,
		MarkupAmount: markup,
		Tax:          tax,
		Total:        total,
	}
}
