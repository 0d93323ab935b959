// Package reconcile maps loosely structured conversation extractions onto
// canonical CRM entities via lookup-or-create plus conservative merging.
package reconcile

// Outcome classifies the result of a reconciliation attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// SkipReason says why reconciliation was intentionally withheld. Skips are
// expected, logged outcomes, not errors.
type SkipReason string

const (
	SkipNoData           SkipReason = "no_data"
	SkipLowConfidence    SkipReason = "low_confidence"
	SkipInsufficientData SkipReason = "insufficient_data"
	SkipNoPipelineStage  SkipReason = "no_pipeline_stage"
)

// Result reports what a reconciliation run did: the outcome plus the ids of
// whichever entities were resolved, created or updated.
type Result struct {
	Outcome   Outcome    `json:"outcome"`
	Reason    SkipReason `json:"reason,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	CompanyID *string    `json:"company_id,omitempty"`
	ContactID *string    `json:"contact_id,omitempty"`
	DealID    *string    `json:"deal_id,omitempty"`
}

func skipped(reason SkipReason) Result {
	return Result{Outcome: OutcomeSkipped, Reason: reason}
}
