package constants

// JobStatus is the canonical lifecycle status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusDraft      JobStatus = "draft"       // created, no estimate yet
	JobStatusAIPending  JobStatus = "ai_pending"  // generation in flight
	JobStatusAIReady    JobStatus = "ai_ready"    // estimate persisted
	JobStatusAIError    JobStatus = "ai_error"    // generation failed
	JobStatusPDFPending JobStatus = "pdf_pending" // PDF render in flight (owned downstream)
	JobStatusComplete   JobStatus = "complete"    // PDF rendered
	JobStatusPDFError   JobStatus = "pdf_error"   // PDF render failed
)

// QueueStatus is the status of a row in estimate_queue.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending" // eligible for claim
	QueueStatusRunning QueueStatus = "running" // leased by a runner
	QueueStatusFailed  QueueStatus = "failed"  // attempt budget exhausted
)

// PricingSource names the catalog tier a material cost was resolved from.
type PricingSource string

const (
	PricingSourceCustomer  PricingSource = "customer"
	PricingSourceWorkspace PricingSource = "workspace"
	PricingSourceCatalog   PricingSource = "catalog"
	PricingSourceNone      PricingSource = "none"
)

// PricingStatus marks whether a material line was priced.
type PricingStatus string

const (
	PricingStatusMatched PricingStatus = "matched"
	PricingStatusMissing PricingStatus = "missing"
)

// MissingReason explains why a material line could not be priced.
type MissingReason string

const (
	MissingReasonNoMatch       MissingReason = "no_match"
	MissingReasonLowConfidence MissingReason = "low_confidence"
	MissingReasonTimeout       MissingReason = "timeout"
)

// ItemKind tags a job line item.
type ItemKind string

const (
	ItemKindLineItem  ItemKind = "line_item"
	ItemKindText      ItemKind = "text"
	ItemKindLink      ItemKind = "link"
	ItemKindFile      ItemKind = "file"
	ItemKindChecklist ItemKind = "checklist"
)
