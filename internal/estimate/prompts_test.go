package estimate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/repository"
)

type layeredPrompts struct {
	byCustomer  *entity.PromptTemplate
	customerErr error
	byID        *entity.PromptTemplate
	wsDefault   *entity.PromptTemplate
	byTrade     *entity.PromptTemplate
}

var _ repository.PromptRepository = (*layeredPrompts)(nil)

func (f *layeredPrompts) GetByCustomer(ctx context.Context, workspaceID, customerID uuid.UUID) (*entity.PromptTemplate, error) {
	return f.byCustomer, f.customerErr
}
func (f *layeredPrompts) GetByID(ctx context.Context, id uuid.UUID) (*entity.PromptTemplate, error) {
	return f.byID, nil
}
func (f *layeredPrompts) GetWorkspaceDefault(ctx context.Context, workspaceID uuid.UUID) (*entity.PromptTemplate, error) {
	return f.wsDefault, nil
}
func (f *layeredPrompts) GetTradeTemplate(ctx context.Context, trade constants.Trade) (*entity.PromptTemplate, error) {
	return f.byTrade, nil
}

func tpl(body string) *entity.PromptTemplate {
	return &entity.PromptTemplate{ID: uuid.New(), Body: body}
}

func TestPromptResolutionOrder(t *testing.T) {
	wsID := uuid.New()
	custID := uuid.New()
	promptID := uuid.New()
	settings := &entity.WorkspaceSettings{Trade: constants.Trade("plumbing"), DefaultPromptID: &promptID}

	t.Run("customer override wins", func(t *testing.T) {
		repo := &layeredPrompts{
			byCustomer: tpl("customer prompt"),
			byID:       tpl("default by id"),
			wsDefault:  tpl("workspace default"),
			byTrade:    tpl("trade prompt"),
		}
		got := NewPromptResolver(repo, nil).Resolve(context.Background(), wsID, &custID, settings)
		if got.Source != "customer" || got.Body != "customer prompt" {
			t.Fatalf("got %q from %q, want customer override", got.Body, got.Source)
		}
	})

	t.Run("settings default id beats workspace flag", func(t *testing.T) {
		repo := &layeredPrompts{byID: tpl("default by id"), wsDefault: tpl("workspace default")}
		got := NewPromptResolver(repo, nil).Resolve(context.Background(), wsID, &custID, settings)
		if got.Source != "workspace_default_id" {
			t.Fatalf("source = %q, want workspace_default_id", got.Source)
		}
	})

	t.Run("trade template before builtin", func(t *testing.T) {
		repo := &layeredPrompts{byTrade: tpl("trade prompt")}
		got := NewPromptResolver(repo, nil).Resolve(context.Background(), wsID, nil, settings)
		if got.Source != "trade_template" {
			t.Fatalf("source = %q, want trade_template", got.Source)
		}
		if got.Trade != constants.Trade("plumbing") {
			t.Fatalf("trade = %q, want plumbing", got.Trade)
		}
	})

	t.Run("builtin fallback", func(t *testing.T) {
		got := NewPromptResolver(&layeredPrompts{}, nil).Resolve(context.Background(), wsID, nil, settings)
		if got.Source != "builtin" || got.Body == "" {
			t.Fatalf("got %q from %q, want builtin fallback", got.Body, got.Source)
		}
	})

	t.Run("failing tier falls through", func(t *testing.T) {
		repo := &layeredPrompts{
			customerErr: errors.New("timeout"),
			wsDefault:   tpl("workspace default"),
		}
		s := &entity.WorkspaceSettings{}
		got := NewPromptResolver(repo, nil).Resolve(context.Background(), wsID, &custID, s)
		if got.Source != "workspace_default" {
			t.Fatalf("source = %q, want workspace_default after customer tier error", got.Source)
		}
	})

	t.Run("no customer skips customer tier", func(t *testing.T) {
		repo := &layeredPrompts{byCustomer: tpl("customer prompt"), wsDefault: tpl("workspace default")}
		s := &entity.WorkspaceSettings{}
		got := NewPromptResolver(repo, nil).Resolve(context.Background(), wsID, nil, s)
		if got.Source != "workspace_default" {
			t.Fatalf("source = %q, want workspace_default when job has no customer", got.Source)
		}
	})
}

func TestCandidateHints(t *testing.T) {
	tiers := &repository.CatalogTiers{
		Workspace: []entity.CatalogEntry{
			{Key: "ceramic tile adhesive", UnitCost: 12},
			{Key: "white grout", UnitCost: 25},
		},
		Global: []entity.CatalogEntry{
			{Key: "ceramic tile", UnitCost: 4},
			{Key: "copper pipe", UnitCost: 9},
			{Key: "white grout", UnitCost: 30}, // duplicate key, lower tier
		},
	}

	hints := candidateHints("replace ceramic tile and regrout with white grout", tiers, 10)
	if len(hints) != 3 {
		t.Fatalf("hints = %v, want 3 overlapping keys", hints)
	}
	// two shared tokens beat one
	if hints[0] != "ceramic tile" && hints[0] != "white grout" && hints[0] != "ceramic tile adhesive" {
		t.Fatalf("unexpected leader %q", hints[0])
	}
	for _, h := range hints {
		if h == "copper pipe" {
			t.Fatalf("non-overlapping key leaked into hints")
		}
	}

	t.Run("limit", func(t *testing.T) {
		hints := candidateHints("ceramic tile white grout", tiers, 2)
		if len(hints) != 2 {
			t.Fatalf("hints = %v, want capped at 2", hints)
		}
	})

	t.Run("no text", func(t *testing.T) {
		if hints := candidateHints("  ", tiers, 10); hints != nil {
			t.Fatalf("hints = %v, want nil for empty text", hints)
		}
	})
}
