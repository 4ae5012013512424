package estimate

import (
	"sort"

	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/pricing"
	"github.com/contractor-tools/estimator/internal/repository"
)

// maxCandidateHints caps the catalog keys included in the prompt as a
// steering aid. Hints never affect final pricing; costs are always
// recomputed server-side.
const maxCandidateHints = 60

// candidateHints pre-filters catalog keys by token overlap against the job
// text and returns the best-scoring ones, highest first.
func candidateHints(jobText string, tiers *repository.CatalogTiers, limit int) []string {
	if tiers == nil || limit <= 0 {
		return nil
	}
	targetTokens := pricing.Tokens(pricing.NormalizeKey(jobText))
	if len(targetTokens) == 0 {
		return nil
	}
	tokenSet := make(map[string]struct{}, len(targetTokens))
	for _, t := range targetTokens {
		tokenSet[t] = struct{}{}
	}

	type scored struct {
		key   string
		score int
	}
	seen := make(map[string]struct{})
	var out []scored
	collect := func(rows []entity.CatalogEntry) {
		for _, row := range rows {
			key := pricing.NormalizeKey(row.Key)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			overlap := 0
			for _, tok := range pricing.Tokens(key) {
				if _, ok := tokenSet[tok]; ok {
					overlap++
				}
			}
			if overlap == 0 {
				continue
			}
			out = append(out, scored{key: key, score: overlap})
		}
	}
	collect(tiers.Customer)
	collect(tiers.Workspace)
	collect(tiers.Global)

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].key < out[j].key
	})
	if len(out) > limit {
		out = out[:limit]
	}
	keys := make([]string, len(out))
	for i, s := range out {
		keys[i] = s.key
	}
	return keys
}
