package pricing

import (
	"strings"
	"unicode"
)

// NormalizeKey produces the canonical matching form of an item name:
// lowercase, every run of non-alphanumerics collapsed to a single space,
// trimmed. "Tile, 12x12 (White)" -> "tile 12x12 white".
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits a normalized key into words of length >= 3, the unit used
// for overlap scoring. Short words ("of", "in", "2x") carry no signal.
func Tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// overlapCount counts tokens present in both sets.
func overlapCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
			delete(set, t) // count each token once
		}
	}
	return n
}
