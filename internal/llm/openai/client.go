package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/internal/llm"
)

// DraftEstimate implements llm.EstimateDrafter over chat/completions with
// text plus image_url content parts. The response must be strict JSON; a
// transport failure and a malformed body surface as different errors so the
// caller can decide retryability.
func (c *Client) DraftEstimate(ctx context.Context, req llm.DraftRequest) (llm.EstimateDraft, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.draft.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"photos", len(req.PhotoURLs),
		"line_items", len(req.LineItems),
		"candidate_hints", len(req.CandidateHints),
	)

	schema := llm.BuildEstimateJSONSchema()
	user := buildUserContent(req)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": req.SystemPrompt},
			{"role": "user", "content": user},
			{"role": "system", "content": "Return ONLY JSON that matches this JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.logger.Error("llm.draft.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.EstimateDraft{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.draft.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.EstimateDraft{}, raw, fmt.Errorf("%w: decode response: %v", llm.ErrMalformedResponse, err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.draft.no_choices", "req_id", rid, "raw", string(raw))
		return llm.EstimateDraft{}, raw, fmt.Errorf("%w: no choices in response", llm.ErrMalformedResponse)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	rawContent := []byte(content)

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if c.cfg.Strict {
			c.logger.Error("llm.draft.schema_validation_failed",
				"req_id", rid, "error", err, "content", content,
			)
			return llm.EstimateDraft{}, rawContent, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
		}
		// Lenient pass: normalize synonyms and coercible types, re-validate.
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(rawContent, c.logger)
		if sErr != nil {
			c.logger.Error("llm.draft.sanitize_failed", "req_id", rid, "error", sErr)
			return llm.EstimateDraft{}, rawContent, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.draft.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(cleaned),
			)
			return llm.EstimateDraft{}, rawContent, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, vErr)
		}
		c.logger.Warn("llm.draft.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		rawContent = cleaned
	}

	var out llm.EstimateDraft
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.logger.Error("llm.draft.unmarshal_failed", "req_id", rid, "error", err)
		return llm.EstimateDraft{}, rawContent, fmt.Errorf("%w: unmarshal draft: %v", llm.ErrMalformedResponse, err)
	}

	c.logger.Info("llm.draft.ok",
		"req_id", rid,
		"project", out.Project,
		"labor_lines", len(out.Labor),
		"material_lines", len(out.Materials),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

const (
	maxPostAttempts = 3
	retryBaseDelay  = 500 * time.Millisecond
)

// post retries transport failures and 5xx responses with a short linear
// backoff. 4xx responses are the caller's fault and return immediately.
func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxPostAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(attempt-1)):
			}
		}
		raw, retryable, err := c.postOnce(ctx, url, b)
		if err == nil {
			return raw, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("llm.post.retry", "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

func (c *Client) postOnce(ctx context.Context, url string, b []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, err
		}
		return nil, true, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, false, nil
}

// buildUserContent assembles the multimodal user message: a text part with
// the job context followed by one image_url part per signed photo URL.
func buildUserContent(req llm.DraftRequest) []map[string]any {
	var b strings.Builder
	b.WriteString("Job title: ")
	b.WriteString(req.JobTitle)
	b.WriteString("\nScope:\n")
	b.WriteString(req.Scope)
	if req.DueDate != "" {
		b.WriteString("\nDue date: ")
		b.WriteString(req.DueDate)
	}
	if len(req.LineItems) > 0 {
		b.WriteString("\n\nExisting line items:\n")
		for _, li := range req.LineItems {
			b.WriteString("- ")
			b.WriteString(li)
			b.WriteString("\n")
		}
	}
	if len(req.CandidateHints) > 0 {
		b.WriteString("\nKnown catalog items (prefer these names for materials):\n")
		b.WriteString(strings.Join(req.CandidateHints, "; "))
		b.WriteString("\n")
	}

	parts := []map[string]any{
		{"type": "text", "text": b.String()},
	}
	for _, u := range req.PhotoURLs {
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": u},
		})
	}
	return parts
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
