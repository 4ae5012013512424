package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (job_notes -> jobNotes, description -> jobDescription)
// - Coerces string-typed numbers on hours/qty/cost
// - Drops unknown top-level keys (strict additionalProperties friendliness)
// - Trims obvious strings and deletes empties
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("job_notes", "jobNotes")
	renamed("notes", "jobNotes")
	renamed("job_description", "jobDescription")
	renamed("description", "jobDescription")
	renamed("title", "project")

	// 2) coerce numeric fields inside labor/materials rows
	coerceRows := func(key string, numeric ...string) {
		rows, ok := m[key].([]any)
		if !ok {
			return
		}
		for _, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				continue
			}
			for _, nk := range numeric {
				if s, ok := row[nk].(string); ok {
					if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
						row[nk] = f
						dropped = append(dropped, key+"."+nk+"(coerced)")
					} else {
						delete(row, nk)
						dropped = append(dropped, key+"."+nk+"(type)")
					}
				}
			}
		}
	}
	coerceRows("labor", "hours")
	coerceRows("materials", "qty", "cost")

	// 3) missing arrays become empty arrays; null arrays too
	for _, k := range []string{"labor", "materials"} {
		if v, ok := m[k]; !ok || v == nil {
			m[k] = []any{}
			dropped = append(dropped, k+"(defaulted)")
		}
	}

	// 4) remove unknown top-level keys
	allowed := map[string]struct{}{
		"project": {}, "jobDescription": {}, "jobNotes": {},
		"labor": {}, "materials": {}, "image_analysis": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 5) trim obvious strings
	for _, k := range []string{"project", "jobDescription", "jobNotes"} {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" && k == "jobNotes" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.draft.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
