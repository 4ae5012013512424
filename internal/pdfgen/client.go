// Package pdfgen is the thin client for the downstream PDF generator. The
// orchestrator calls it fire-and-forget: a trigger failure is logged and
// never surfaced, the job stays ai_ready.
package pdfgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Trigger asks the collaborator to render a job's latest estimate.
// Repeat calls without force return the existing artifact; the endpoint is
// idempotent on job_id.
type Trigger interface {
	TriggerPDF(ctx context.Context, jobID uuid.UUID) error
}

type Client struct {
	url     string
	http    *http.Client
	logger  *slog.Logger
	timeout time.Duration
}

func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		timeout: timeout,
	}
}

func (c *Client) TriggerPDF(ctx context.Context, jobID uuid.UUID) error {
	if c.url == "" {
		c.logger.Debug("pdf trigger skipped, no endpoint configured", "job_id", jobID)
		return nil
	}

	body, err := json.Marshal(map[string]string{"job_id": jobID.String()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pdf trigger http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("pdf trigger body close error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pdf trigger status %d: %s", resp.StatusCode, string(raw))
	}
	c.logger.Info("pdf generation triggered", "job_id", jobID)
	return nil
}
