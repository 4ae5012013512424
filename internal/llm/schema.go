package llm

// BuildEstimateJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is sent to the provider as the structured-output contract
// and also used locally to validate whatever comes back.
func BuildEstimateJSONSchema() map[string]any {
	labor := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"task":  map[string]any{"type": "string", "minLength": 1},
				"hours": map[string]any{"type": "number", "minimum": 0},
			},
			"required": []string{"task", "hours"},
		},
	}
	materials := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"item": map[string]any{"type": "string", "minLength": 1},
				"qty":  map[string]any{"type": "number", "minimum": 0},
				// tolerated but discarded server-side
				"cost": map[string]any{"type": "number"},
			},
			"required": []string{"item", "qty"},
		},
	}
	imageAnalysis := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"image_url":    map[string]any{"type": "string"},
				"observations": map[string]any{"type": "string"},
			},
			"required": []string{"image_url", "observations"},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"project":        map[string]any{"type": "string", "minLength": 1},
			"jobDescription": map[string]any{"type": "string"},
			"jobNotes":       map[string]any{"type": "string"},
			"labor":          labor,
			"materials":      materials,
			"image_analysis": imageAnalysis,
		},
		"required": []string{"project", "jobDescription", "labor", "materials"},
	}
}
