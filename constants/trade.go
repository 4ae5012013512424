package constants

import (
	"strings"
)

type Trade string

const (
	GeneralContractor Trade = "general_contractor"
	Carpentry         Trade = "carpentry"
	Electrical        Trade = "electrical"
	Flooring          Trade = "flooring"
	HVAC              Trade = "hvac"
	Landscaping       Trade = "landscaping"
	Masonry           Trade = "masonry"
	Painting          Trade = "painting"
	Plumbing          Trade = "plumbing"
	Roofing           Trade = "roofing"
	Tiling            Trade = "tiling"
)

var allTrades = []Trade{
	GeneralContractor,
	Carpentry,
	Electrical,
	Flooring,
	HVAC,
	Landscaping,
	Masonry,
	Painting,
	Plumbing,
	Roofing,
	Tiling,
}

func TradesAsStringSlice() []string {
	result := make([]string, len(allTrades))
	for i, tr := range allTrades {
		result[i] = string(tr)
	}
	return result
}

// CanonicalizeTrade maps free-form trade input onto a known trade.
// Unknown input falls back to GeneralContractor.
func CanonicalizeTrade(input string) (Trade, bool) {
	if input == "" {
		return GeneralContractor, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Trade{
		"gc":               GeneralContractor,
		"general":          GeneralContractor,
		"remodel":          GeneralContractor,
		"carpenter":        Carpentry,
		"framing":          Carpentry,
		"electrician":      Electrical,
		"floors":           Flooring,
		"hardwood":         Flooring,
		"heating":          HVAC,
		"air conditioning": HVAC,
		"lawn":             Landscaping,
		"brick":            Masonry,
		"painter":          Painting,
		"plumber":          Plumbing,
		"roofer":           Roofing,
		"tile":             Tiling,
	}

	if tr, ok := synonyms[normalized]; ok {
		return tr, true
	}

	for _, tr := range allTrades {
		if normalized == strings.ToLower(string(tr)) {
			return tr, true
		}
	}

	return GeneralContractor, false
}

// TradeAgnostic reports whether catalog lookups for this trade should ignore
// the trade column and search the whole master list.
func TradeAgnostic(tr Trade) bool {
	return tr == GeneralContractor
}
