package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salesvox/conversa/internal/config"
	"github.com/salesvox/conversa/internal/model"
	"github.com/salesvox/conversa/internal/store"
)

// Engine resolves extracted conversation data into the CRM entity graph.
// Resolution order is fixed: company, then contact (its second lookup needs
// the company id), then deal (which requires a contact).
type Engine struct {
	store store.Store
	cfg   config.ReconcileConfig
	now   func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(st store.Store, cfg config.ReconcileConfig) *Engine {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "Brasil"
	}
	return &Engine{store: st, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Reconcile applies the extracted data for one completed conversation.
// Unexpected failures are converted into an error Result rather than
// propagated, so the caller's status transition still completes; partial
// success (insight saved, CRM untouched) beats total rollback here.
func (e *Engine) Reconcile(ctx context.Context, tenantID, userID, conversationID string, data *model.ExtractedData) Result {
	result := e.run(ctx, tenantID, userID, conversationID, data)
	e.logResult(ctx, tenantID, conversationID, result)
	return result
}

func (e *Engine) run(ctx context.Context, tenantID, userID, conversationID string, data *model.ExtractedData) Result {
	if data == nil {
		return skipped(SkipNoData)
	}
	if data.Confidence < e.cfg.ConfidenceThreshold {
		zap.L().Info("reconcile: confidence below threshold",
			zap.String("conversation_id", conversationID),
			zap.Float64("confidence", data.Confidence),
			zap.Float64("threshold", e.cfg.ConfidenceThreshold),
		)
		return skipped(SkipLowConfidence)
	}

	var companyName, contactName string
	if data.Company != nil {
		companyName = strOrEmpty(data.Company.Name)
	}
	if data.Contact != nil {
		contactName = strOrEmpty(data.Contact.FirstName)
	}
	if companyName == "" && contactName == "" {
		return skipped(SkipInsufficientData)
	}

	var result Result

	company, err := e.resolveCompany(ctx, tenantID, data.Company)
	if err != nil {
		return e.errored(conversationID, "company", err)
	}
	if company != nil {
		result.CompanyID = &company.ID
	}

	contact, err := e.resolveContact(ctx, tenantID, data.Contact, company)
	if err != nil {
		return e.errored(conversationID, "contact", err)
	}
	if contact != nil {
		result.ContactID = &contact.ID
	}

	if contact != nil {
		dealID, skip, err := e.resolveDeal(ctx, tenantID, userID, conversationID, data.Deal, contact, company, companyName)
		if err != nil {
			return e.errored(conversationID, "deal", err)
		}
		if skip != "" {
			result.Outcome = OutcomeSkipped
			result.Reason = skip
			return result
		}
		result.DealID = dealID
	}

	result.Outcome = OutcomeSuccess
	return result
}

func (e *Engine) errored(conversationID, step string, err error) Result {
	zap.L().Error("reconcile: step failed",
		zap.String("conversation_id", conversationID),
		zap.String("step", step),
		zap.Error(err),
	)
	return Result{Outcome: OutcomeError, Detail: eris.ToString(err, false)}
}

// logResult persists the outcome for monitoring. Best effort: a log write
// failure must not turn a finished reconciliation into an error.
func (e *Engine) logResult(ctx context.Context, tenantID, conversationID string, r Result) {
	outcome := string(r.Outcome)
	if r.Reason != "" {
		// Keep per-reason counts distinguishable in the audit log.
		outcome += ":" + string(r.Reason)
	}
	entry := &store.ReconciliationLog{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Outcome:        outcome,
		Detail:         r.Detail,
		CompanyID:      r.CompanyID,
		ContactID:      r.ContactID,
		DealID:         r.DealID,
		CreatedAt:      e.now(),
	}
	if err := e.store.LogReconciliation(ctx, entry); err != nil {
		zap.L().Warn("reconcile: failed to write audit log",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}
