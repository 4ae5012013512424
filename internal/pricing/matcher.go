package pricing

import (
	"sort"
	"strings"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/entity"
)

// Resolution is the outcome of a unit-cost lookup. On a miss, Missing
// explains why: low_confidence when some tier overlapped below the
// acceptance threshold, no_match when nothing overlapped at all.
type Resolution struct {
	Cost       float64
	Source     constants.PricingSource
	Confidence float64
	Missing    constants.MissingReason
}

// Confidence levels by match precedence. Exact key equality is certain;
// the heuristics below it are deliberately discounted so flagged lines
// stay auditable downstream.
const (
	confidenceExact     = 1.0
	confidenceSubstring = 0.85
	confidenceOverlap   = 0.6
)

// Token-overlap acceptance thresholds: two shared tokens always match,
// a single shared token only when the combined score clears 12.
const (
	minOverlapTokens   = 2
	singleTokenMinimum = 12
)

type tierEntry struct {
	key    string
	tokens []string
	cost   float64
}

type tier struct {
	source  constants.PricingSource
	byKey   map[string]float64
	entries []tierEntry
}

// TierSet holds the three priority-ordered cost lookups for one generation.
// Customer always beats workspace, workspace always beats the global
// catalog; match score is a tiebreaker within a tier, never across tiers.
type TierSet struct {
	tiers []tier
}

// BuildTierSet collapses raw catalog rows into the three lookups. Rows that
// share a normalized key within one tier resolve to their median cost, which
// stabilizes against outlier single entries. Global-catalog aliases index
// the same cost under each alias key.
func BuildTierSet(customer, workspace, global []entity.CatalogEntry) *TierSet {
	return &TierSet{tiers: []tier{
		buildTier(constants.PricingSourceCustomer, customer),
		buildTier(constants.PricingSourceWorkspace, workspace),
		buildTier(constants.PricingSourceCatalog, global),
	}}
}

func buildTier(source constants.PricingSource, rows []entity.CatalogEntry) tier {
	costs := make(map[string][]float64, len(rows))
	for _, row := range rows {
		keys := []string{row.Key}
		keys = append(keys, row.Aliases...)
		for _, k := range keys {
			nk := NormalizeKey(k)
			if nk == "" {
				continue
			}
			costs[nk] = append(costs[nk], row.UnitCost)
		}
	}

	t := tier{
		source:  source,
		byKey:   make(map[string]float64, len(costs)),
		entries: make([]tierEntry, 0, len(costs)),
	}
	for k, cs := range costs {
		c := median(cs)
		t.byKey[k] = c
		t.entries = append(t.entries, tierEntry{key: k, tokens: Tokens(k), cost: c})
	}
	// deterministic scan order for tie-breaking
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].key < t.entries[j].key })
	return t
}

func median(cs []float64) float64 {
	if len(cs) == 1 {
		return cs[0]
	}
	sorted := append([]float64(nil), cs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Resolve maps a raw material name to a unit cost. The first tier with any
// usable match wins outright. Within a tier, precedence is exact key
// equality, then substring containment (longer matched key preferred), then
// token-overlap scoring. Returns false when no tier matched.
func (ts *TierSet) Resolve(rawItem string) (Resolution, bool) {
	target := NormalizeKey(rawItem)
	if target == "" {
		return Resolution{Source: constants.PricingSourceNone, Missing: constants.MissingReasonNoMatch}, false
	}
	targetTokens := Tokens(target)

	sawWeak := false
	for _, t := range ts.tiers {
		res, ok, weak := t.match(target, targetTokens)
		if ok {
			return res, true
		}
		sawWeak = sawWeak || weak
	}
	reason := constants.MissingReasonNoMatch
	if sawWeak {
		reason = constants.MissingReasonLowConfidence
	}
	return Resolution{Source: constants.PricingSourceNone, Missing: reason}, false
}

func (t tier) match(target string, targetTokens []string) (Resolution, bool, bool) {
	if len(t.entries) == 0 {
		return Resolution{}, false, false
	}

	// (a) exact normalized-key equality
	if cost, ok := t.byKey[target]; ok {
		return Resolution{Cost: cost, Source: t.source, Confidence: confidenceExact}, true, false
	}

	// (b) substring containment either direction; prefer the longest
	// matched key, it is the most specific.
	var best *tierEntry
	for i := range t.entries {
		e := &t.entries[i]
		if !strings.Contains(e.key, target) && !strings.Contains(target, e.key) {
			continue
		}
		if best == nil || len(e.key) > len(best.key) {
			best = e
		}
	}
	if best != nil {
		return Resolution{Cost: best.cost, Source: t.source, Confidence: confidenceSubstring}, true, false
	}

	// (c) token-overlap scoring
	bestScore := -1
	sawWeak := false
	for i := range t.entries {
		e := &t.entries[i]
		overlap := overlapCount(targetTokens, e.tokens)
		if overlap == 0 {
			continue
		}
		score := overlap*10 + min(len(targetTokens), len(e.tokens))
		if overlap < minOverlapTokens && score < singleTokenMinimum {
			sawWeak = true
			continue
		}
		if score > bestScore {
			bestScore = score
			best = e
		}
	}
	if best != nil {
		return Resolution{Cost: best.cost, Source: t.source, Confidence: confidenceOverlap}, true, false
	}
	return Resolution{}, false, sawWeak
}
