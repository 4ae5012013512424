// Package estimate runs the generation pipeline: entitlement, prompt
// resolution, LLM drafting, server-side pricing and the append-only
// persist. Both the interactive API path and the queue runner execute the
// same pipeline so their outputs can never diverge.
package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/billing"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/llm"
	"github.com/contractor-tools/estimator/internal/pdfgen"
	"github.com/contractor-tools/estimator/internal/pricing"
	"github.com/contractor-tools/estimator/internal/repository"
)

// PhotoSigner is the slice of object storage the pipeline needs: read URLs
// the LLM provider can fetch.
type PhotoSigner interface {
	PresignPhotoGet(ctx context.Context, key string) (string, error)
}

// maxErrorMessageLen bounds the diagnostic persisted on jobs.error_message.
const maxErrorMessageLen = 500

// Generation is the result of one pipeline run.
type Generation struct {
	Job     *entity.Job
	Record  *entity.EstimateRecord
	Payload *entity.EstimatePayload
}

// Deps wires the orchestrator. Locks may be nil on the queue path, where
// the lease already guarantees single-flight per job.
type Deps struct {
	Jobs       repository.JobRepository
	Photos     repository.PhotoRepository
	Estimates  repository.EstimateRepository
	Settings   repository.SettingsRepository
	Catalog    repository.CatalogRepository
	Workspaces repository.WorkspaceRepository
	Locks      repository.LockRepository
	Resolver   *PromptResolver
	Drafter    llm.EstimateDrafter
	Signer     PhotoSigner
	PDF        pdfgen.Trigger
	Access     billing.AccessChecker
	Logger     *slog.Logger
}

type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, logger: logger, now: time.Now}
}

// Generate runs the pipeline for the interactive path. An advisory lock
// keeps concurrent requests for the same job down to one winner; losers get
// a conflict error and the caller retries against the persisted result.
func (o *Orchestrator) Generate(ctx context.Context, jobID uuid.UUID) (*Generation, error) {
	if o.deps.Locks != nil {
		lock, got, err := o.deps.Locks.TryLockJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if !got {
			return nil, common.NewAppError("GENERATION_IN_FLIGHT",
				"an estimate is already being generated for this job", common.ErrConflict)
		}
		defer lock.Release(ctx)
	}
	return o.run(ctx, jobID)
}

// GenerateLeased runs the pipeline on behalf of the queue runner, which
// already holds the row lease. No advisory lock is taken.
func (o *Orchestrator) GenerateLeased(ctx context.Context, jobID uuid.UUID) (*Generation, error) {
	return o.run(ctx, jobID)
}

func (o *Orchestrator) run(ctx context.Context, jobID uuid.UUID) (*Generation, error) {
	start := o.now()
	log := o.logger.With("job_id", jobID)
	log.Info("estimate.generate.start")

	job, err := o.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ok, err := o.deps.Access.HasAccess(ctx, job.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NewAppError("SUBSCRIPTION_REQUIRED",
			"workspace has no active subscription or trial", common.ErrPaymentRequired)
	}

	// Advisory from here on: the caller already knows generation started.
	common.BestEffort(ctx, log, "estimate.mark_generating", func(ctx context.Context) error {
		return o.deps.Jobs.MarkGenerating(ctx, jobID)
	})

	settings, err := o.deps.Settings.Get(ctx, job.WorkspaceID)
	if err != nil {
		return nil, o.fail(ctx, log, jobID, "load settings", err)
	}

	items, err := o.deps.Jobs.ListItems(ctx, jobID)
	if err != nil {
		return nil, o.fail(ctx, log, jobID, "load items", err)
	}

	photoURLs := o.presignPhotos(ctx, log, jobID)
	prompt := o.deps.Resolver.Resolve(ctx, job.WorkspaceID, job.CustomerID, settings)

	// A catalog outage degrades pricing, it never blocks the draft. Every
	// material then ships unpriced with reason timeout.
	var tierSet *pricing.TierSet
	var hints []string
	tiers, err := o.deps.Catalog.LoadTiers(ctx, job.WorkspaceID, job.CustomerID, prompt.Trade)
	if err != nil {
		log.Warn("estimate.catalog.unavailable", "error", err)
	} else {
		tierSet = pricing.BuildTierSet(tiers.Customer, tiers.Workspace, tiers.Global)
		hints = candidateHints(jobText(job, items), tiers, maxCandidateHints)
	}

	req := llm.DraftRequest{
		SystemPrompt:   prompt.Body,
		JobTitle:       job.Title,
		Scope:          job.Scope,
		LineItems:      promptLineItems(items),
		PhotoURLs:      photoURLs,
		CandidateHints: hints,
	}
	if job.DueDate != nil {
		req.DueDate = job.DueDate.Format("2006-01-02")
	}

	draft, raw, err := o.deps.Drafter.DraftEstimate(ctx, req)
	if err != nil {
		ferr := o.fail(ctx, log, jobID, "llm draft", err)
		if errors.Is(err, llm.ErrMalformedResponse) {
			return nil, common.NewAppError("LLM_MALFORMED", "model returned an unusable estimate", common.ErrUpstream)
		}
		return nil, common.NewAppError("LLM_UNAVAILABLE", "model request failed", fmt.Errorf("%w: %w", common.ErrUpstream, ferr))
	}
	log.Debug("estimate.draft.received", "raw_bytes", len(raw),
		"labor_lines", len(draft.Labor), "material_lines", len(draft.Materials))

	materials, missingCount := priceMaterials(draft.Materials, tierSet)
	labor := make([]entity.LaborLine, len(draft.Labor))
	for i, l := range draft.Labor {
		labor[i] = entity.LaborLine{Task: l.Task, Hours: l.Hours}
	}
	labor, totals := pricing.ComputeTotals(labor, materials,
		settings.HourlyRate, settings.MarkupPercent, settings.TaxRatePercent)

	payload := o.buildPayload(ctx, log, job, draft, labor, materials, totals, prompt, settings, missingCount, start)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, o.fail(ctx, log, jobID, "encode payload", err)
	}
	rec := &entity.EstimateRecord{JobID: jobID, Payload: body, Model: o.deps.Drafter.Model()}
	if err := o.deps.Estimates.Append(ctx, rec); err != nil {
		return nil, o.fail(ctx, log, jobID, "persist estimate", err)
	}

	common.BestEffort(ctx, log, "estimate.mark_estimated", func(ctx context.Context) error {
		return o.deps.Jobs.MarkEstimated(ctx, jobID, start)
	})
	if o.deps.PDF != nil {
		common.BestEffort(ctx, log, "estimate.pdf_trigger", func(ctx context.Context) error {
			return o.deps.PDF.TriggerPDF(ctx, jobID)
		})
	}

	log.Info("estimate.generate.ok",
		"estimate_id", rec.ID,
		"total", totals.Total,
		"pricing_missing", missingCount,
		"duration_ms", o.now().Sub(start).Milliseconds(),
	)

	// Tolerant refresh: the estimate is durable, a flaky re-read must not
	// turn success into failure.
	fresh, err := o.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		log.Warn("estimate.refresh_failed", "error", err)
		job.Status = constants.JobStatusAIReady
		at := start
		job.EstimatedAt = &at
		fresh = job
	}
	return &Generation{Job: fresh, Record: rec, Payload: payload}, nil
}

// fail persists the diagnostic best-effort and hands the original error
// back to the caller.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, jobID uuid.UUID, stage string, err error) error {
	msg := truncate(stage+": "+err.Error(), maxErrorMessageLen)
	common.BestEffort(ctx, log, "estimate.mark_failed", func(ctx context.Context) error {
		return o.deps.Jobs.MarkGenerationFailed(ctx, jobID, msg)
	})
	log.Error("estimate.generate.failed", "stage", stage, "error", err)
	return err
}

// presignPhotos signs read URLs for up to MaxPromptPhotos job photos,
// concurrently. A photo that fails to sign is skipped, not fatal.
func (o *Orchestrator) presignPhotos(ctx context.Context, log *slog.Logger, jobID uuid.UUID) []string {
	if o.deps.Signer == nil {
		return nil
	}
	photos, err := o.deps.Photos.ListByJob(ctx, jobID)
	if err != nil {
		log.Warn("estimate.photos.list_failed", "error", err)
		return nil
	}
	if len(photos) > constants.MaxPromptPhotos {
		log.Info("estimate.photos.capped", "have", len(photos), "cap", constants.MaxPromptPhotos)
		photos = photos[:constants.MaxPromptPhotos]
	}

	urls := make([]string, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range photos {
		g.Go(func() error {
			u, err := o.deps.Signer.PresignPhotoGet(gctx, p.ObjectKey)
			if err != nil {
				log.Warn("estimate.photos.presign_failed", "object_key", p.ObjectKey, "error", err)
				return nil
			}
			urls[i] = u
			return nil
		})
	}
	_ = g.Wait()

	out := urls[:0]
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// priceMaterials resolves every material against the tier set. The model's
// cost guesses are discarded unconditionally; an unmatched line ships with
// cost zero and a missing marker so the contractor can price it by hand.
func priceMaterials(drafted []llm.DraftMaterial, tierSet *pricing.TierSet) ([]entity.MaterialLine, int) {
	out := make([]entity.MaterialLine, len(drafted))
	missing := 0
	for i, m := range drafted {
		line := entity.MaterialLine{Item: m.Item, Qty: m.Qty}
		if tierSet == nil {
			reason := constants.MissingReasonTimeout
			line.PricingStatus = constants.PricingStatusMissing
			line.PricingSource = constants.PricingSourceNone
			line.MissingReason = &reason
			missing++
			out[i] = line
			continue
		}
		res, ok := tierSet.Resolve(m.Item)
		if !ok {
			reason := res.Missing
			line.PricingStatus = constants.PricingStatusMissing
			line.PricingSource = constants.PricingSourceNone
			line.MissingReason = &reason
			missing++
			out[i] = line
			continue
		}
		conf := res.Confidence
		line.Cost = res.Cost
		line.PricingStatus = constants.PricingStatusMatched
		line.PricingSource = res.Source
		line.PricingConfidence = &conf
		out[i] = line
	}
	return out, missing
}

func (o *Orchestrator) buildPayload(ctx context.Context, log *slog.Logger, job *entity.Job, draft llm.EstimateDraft,
	labor []entity.LaborLine, materials []entity.MaterialLine, totals pricing.Totals,
	prompt PromptResolution, settings *entity.WorkspaceSettings, missingCount int, at time.Time) *entity.EstimatePayload {

	var client entity.ClientInfo
	if job.CustomerID != nil {
		if c, err := o.deps.Workspaces.GetCustomer(ctx, *job.CustomerID); err != nil {
			log.Warn("estimate.customer.lookup_failed", "error", err)
		} else {
			client = entity.ClientInfo{
				CustomerName:  c.Name,
				CustomerEmail: c.Email,
				Address:       c.Address,
				Phone:         c.Phone,
				PreferredDate: c.PreferredDate,
			}
		}
	}

	formatting := "ok"
	if len(labor) == 0 && len(materials) == 0 {
		formatting = "partial"
	}

	images := make([]entity.ImageAnalysis, len(draft.ImageAnalysis))
	for i, obs := range draft.ImageAnalysis {
		images[i] = entity.ImageAnalysis{ImageURL: obs.ImageURL, Observations: obs.Observations}
	}

	return &entity.EstimatePayload{
		Client: client,
		Estimate: entity.EstimateBody{
			EstimateNumber:   EstimateNumber(at),
			Project:          draft.Project,
			JobDescription:   draft.JobDescription,
			JobNotes:         draft.JobNotes,
			FormattingStatus: formatting,
			Labor:            labor,
			Materials:        materials,
			Subtotal:         totals.Subtotal,
			Tax:              totals.Tax,
			Total:            totals.Total,
		},
		ImageAnalysis: images,
		Metadata: entity.EstimateMetadata{
			TaxRatePercent:      settings.TaxRatePercent,
			MarkupPercent:       settings.MarkupPercent,
			HourlyRate:          settings.HourlyRate,
			Model:               o.deps.Drafter.Model(),
			PromptID:            prompt.PromptID,
			PromptSource:        prompt.Source,
			PromptTrade:         string(prompt.Trade),
			GeneratedAt:         at.UTC(),
			PricingMissingCount: missingCount,
		},
	}
}

// jobText concatenates the free text used for candidate-hint scoring.
func jobText(job *entity.Job, items []entity.JobItem) string {
	var b strings.Builder
	b.WriteString(job.Title)
	b.WriteByte(' ')
	b.WriteString(job.Scope)
	for _, it := range items {
		b.WriteByte(' ')
		b.WriteString(it.Description)
	}
	return b.String()
}

// promptLineItems flattens job items into prompt lines. Priced rows carry
// their quantity and unit so the model sees what is already scoped.
func promptLineItems(items []entity.JobItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		s := it.Description
		if it.Kind == constants.ItemKindLineItem && it.Quantity != nil {
			if it.Unit != nil && *it.Unit != "" {
				s = fmt.Sprintf("%s (%g %s)", s, *it.Quantity, *it.Unit)
			} else {
				s = fmt.Sprintf("%s (x%g)", s, *it.Quantity)
			}
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
