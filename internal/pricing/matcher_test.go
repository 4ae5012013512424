package pricing

import (
	"testing"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/entity"
)

func entry(key string, cost float64, aliases ...string) entity.CatalogEntry {
	return entity.CatalogEntry{
		ID:       uuid.New(),
		Key:      key,
		UnitCost: cost,
		Aliases:  aliases,
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Tile, 12x12 (White)", "tile 12x12 white"},
		{"  DRYWALL--1/2\"  ", "drywall 1 2"},
		{"grout", "grout"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("tile 12x12 white of it")
	want := []string{"tile", "12x12", "white"}
	if len(got) != len(want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokens = %v, want %v", got, want)
		}
	}
}

func TestTierPriority(t *testing.T) {
	// Customer tier wins unconditionally over a workspace entry for the
	// same key, regardless of relative match quality.
	ts := BuildTierSet(
		[]entity.CatalogEntry{entry("ceramic tile", 5)},
		[]entity.CatalogEntry{entry("ceramic tile", 8)},
		nil,
	)
	res, ok := ts.Resolve("Ceramic Tile")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Cost != 5 {
		t.Fatalf("cost = %v, want 5 (customer tier)", res.Cost)
	}
	if res.Source != constants.PricingSourceCustomer {
		t.Fatalf("source = %v, want customer", res.Source)
	}
}

func TestTierPriorityWeakerHigherTierStillWins(t *testing.T) {
	// The workspace tier has only a fuzzy token-overlap hit while the
	// global catalog has an exact key. Tier order still decides.
	ts := BuildTierSet(
		nil,
		[]entity.CatalogEntry{entry("porcelain floor tile matte", 9)},
		[]entity.CatalogEntry{entry("floor tile white glazed", 3)},
	)
	res, ok := ts.Resolve("floor tile white glazed")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Source != constants.PricingSourceWorkspace {
		t.Fatalf("source = %v, want workspace (tier beats score)", res.Source)
	}
	if res.Cost != 9 {
		t.Fatalf("cost = %v, want 9", res.Cost)
	}
}

func TestMedianCollapse(t *testing.T) {
	ts := BuildTierSet(nil, []entity.CatalogEntry{
		entry("romex 14 2", 4),
		entry("romex 14 2", 6),
		entry("romex 14 2", 10),
	}, nil)
	res, ok := ts.Resolve("romex 14-2")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Cost != 6 {
		t.Fatalf("cost = %v, want median 6", res.Cost)
	}

	t.Run("even count averages the middle pair", func(t *testing.T) {
		ts := BuildTierSet(nil, []entity.CatalogEntry{
			entry("pvc pipe", 2),
			entry("pvc pipe", 4),
			entry("pvc pipe", 6),
			entry("pvc pipe", 100),
		}, nil)
		res, ok := ts.Resolve("pvc pipe")
		if !ok {
			t.Fatal("expected a match")
		}
		if res.Cost != 5 {
			t.Fatalf("cost = %v, want 5", res.Cost)
		}
	})
}

func TestSubstringPrefersLongerKey(t *testing.T) {
	ts := BuildTierSet(nil, []entity.CatalogEntry{
		entry("grout", 10),
		entry("grout sealer premium", 25),
	}, nil)
	res, ok := ts.Resolve("sealer premium")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Cost != 25 {
		t.Fatalf("cost = %v, want 25 (longer, more specific key)", res.Cost)
	}
}

func TestExactBeatsSubstring(t *testing.T) {
	ts := BuildTierSet(nil, []entity.CatalogEntry{
		entry("grout", 10),
		entry("grout sealer", 25),
	}, nil)
	res, ok := ts.Resolve("Grout!")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Cost != 10 || res.Confidence != 1.0 {
		t.Fatalf("got %+v, want exact match on grout at 10", res)
	}
}

func TestTokenOverlapThresholdBoundary(t *testing.T) {
	// Entry tokens: [premium grout sealer]. No substring relation to the
	// targets below, so resolution rides on overlap scoring alone.
	ts := BuildTierSet(nil, []entity.CatalogEntry{
		entry("premium grout sealer", 30),
	}, nil)

	t.Run("overlap 1, score 11 rejected", func(t *testing.T) {
		// target tokens [grout] -> score = 1*10 + min(1,3) = 11
		res, ok := ts.Resolve("grout xx")
		if ok {
			t.Fatalf("expected miss, got %+v", res)
		}
		if res.Missing != constants.MissingReasonLowConfidence {
			t.Fatalf("missing reason = %q, want low_confidence for a rejected weak overlap", res.Missing)
		}
	})

	t.Run("overlap 1, score 12 accepted", func(t *testing.T) {
		// target tokens [white grout] -> score = 1*10 + min(2,3) = 12
		res, ok := ts.Resolve("white grout xx")
		if !ok {
			t.Fatal("expected a match at the score threshold")
		}
		if res.Cost != 30 {
			t.Fatalf("cost = %v, want 30", res.Cost)
		}
	})

	t.Run("overlap 2 always accepted", func(t *testing.T) {
		res, ok := ts.Resolve("sealer for grout")
		if !ok {
			t.Fatal("expected a match with two shared tokens")
		}
		if res.Cost != 30 {
			t.Fatalf("cost = %v, want 30", res.Cost)
		}
	})
}

func TestNoMatch(t *testing.T) {
	ts := BuildTierSet(nil, []entity.CatalogEntry{
		entry("premium grout sealer", 30),
	}, nil)
	res, ok := ts.Resolve("copper fitting")
	if ok {
		t.Fatalf("expected miss, got %+v", res)
	}
	if res.Missing != constants.MissingReasonNoMatch {
		t.Fatalf("missing reason = %q, want no_match", res.Missing)
	}
	if res, ok := ts.Resolve(""); ok {
		t.Fatalf("expected miss on empty input, got %+v", res)
	}
}

func TestGlobalAliases(t *testing.T) {
	ts := BuildTierSet(nil, nil, []entity.CatalogEntry{
		entry("oriented strand board", 22, "osb", "osb sheathing"),
	})
	res, ok := ts.Resolve("OSB")
	if !ok {
		t.Fatal("expected alias match")
	}
	if res.Cost != 22 || res.Source != constants.PricingSourceCatalog {
		t.Fatalf("got %+v, want catalog cost 22", res)
	}
}
