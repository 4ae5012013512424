package estimate

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/repository"
)

// defaultSystemPrompt is the built-in fallback when no template matches.
const defaultSystemPrompt = `You are an experienced construction estimator. ` +
	`Study the job description, the existing line items and the photos, then draft a realistic estimate. ` +
	`Break the work into labor tasks with hours and list every material with a quantity. ` +
	`Do not price materials; unit costs are applied from the contractor's price list after you respond. ` +
	`Note anything unclear or risky in jobNotes. Return ONLY JSON matching the provided schema.`

// PromptResolution is the outcome of the layered lookup, including the
// provenance recorded in estimate metadata.
type PromptResolution struct {
	Body     string
	Source   string
	PromptID string
	Trade    constants.Trade
}

// PromptResolver walks an explicit, ordered list of lookup strategies and
// stops at the first hit. A failing tier is logged and treated as a miss;
// prompt resolution must never sink a generation.
type PromptResolver struct {
	prompts repository.PromptRepository
	logger  *slog.Logger
}

func NewPromptResolver(prompts repository.PromptRepository, logger *slog.Logger) *PromptResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptResolver{prompts: prompts, logger: logger}
}

// Resolve picks the system prompt for one generation. Order: customer
// override, workspace default by id, workspace default flag, trade
// template, built-in text. Later tiers are not consulted after a hit.
func (r *PromptResolver) Resolve(ctx context.Context, workspaceID uuid.UUID, customerID *uuid.UUID, settings *entity.WorkspaceSettings) PromptResolution {
	trade := settings.Trade
	if trade == "" {
		trade = constants.GeneralContractor
	}

	type strategy struct {
		name string
		fn   func(context.Context) (*entity.PromptTemplate, error)
	}
	strategies := []strategy{
		{"customer", func(ctx context.Context) (*entity.PromptTemplate, error) {
			if customerID == nil {
				return nil, nil
			}
			return r.prompts.GetByCustomer(ctx, workspaceID, *customerID)
		}},
		{"workspace_default_id", func(ctx context.Context) (*entity.PromptTemplate, error) {
			if settings.DefaultPromptID == nil {
				return nil, nil
			}
			return r.prompts.GetByID(ctx, *settings.DefaultPromptID)
		}},
		{"workspace_default", func(ctx context.Context) (*entity.PromptTemplate, error) {
			return r.prompts.GetWorkspaceDefault(ctx, workspaceID)
		}},
		{"trade_template", func(ctx context.Context) (*entity.PromptTemplate, error) {
			return r.prompts.GetTradeTemplate(ctx, trade)
		}},
	}

	for _, s := range strategies {
		p, err := s.fn(ctx)
		if err != nil {
			r.logger.Warn("prompt lookup failed, falling through", "strategy", s.name, "error", err)
			continue
		}
		if p == nil {
			continue
		}
		r.logger.Debug("prompt resolved", "strategy", s.name, "prompt_id", p.ID)
		return PromptResolution{Body: p.Body, Source: s.name, PromptID: p.ID.String(), Trade: trade}
	}

	return PromptResolution{Body: defaultSystemPrompt, Source: "builtin", Trade: trade}
}
