package common

import (
	"context"
	"log/slog"
)

// BestEffort runs an advisory write whose failure must never affect the
// caller-visible outcome. The error is logged under the given event name
// and swallowed. All advisory status markers go through here so the
// availability-over-consistency tradeoff stays auditable in one place.
func BestEffort(ctx context.Context, logger *slog.Logger, event string, fn func(context.Context) error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fn(ctx); err != nil {
		logger.Warn(event, "error", err, "advisory", true)
	}
}
