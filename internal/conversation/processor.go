// Package conversation drives the processing lifecycle of a conversation as
// callbacks arrive from the workflow engine.
package conversation

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salesvox/conversa/internal/model"
	"github.com/salesvox/conversa/internal/reconcile"
	"github.com/salesvox/conversa/internal/store"
)

// ErrConversationNotFound is returned when a callback references a
// conversation that does not exist within the tenant.
var ErrConversationNotFound = eris.New("conversation not found")

const fallbackErrorReason = "analysis failed without a reason"

// Reconciler folds extracted conversation data into the CRM.
type Reconciler interface {
	Reconcile(ctx context.Context, tenantID, userID, conversationID string, data *model.ExtractedData) reconcile.Result
}

// Processor applies workflow engine callbacks to conversations: status
// transitions, insight upserts and CRM reconciliation.
type Processor struct {
	store  store.Store
	engine Reconciler
}

// NewProcessor creates a Processor.
func NewProcessor(st store.Store, engine Reconciler) *Processor {
	return &Processor{store: st, engine: engine}
}

// Process handles one verified callback. The conversation is re-fetched on
// every delivery so redeliveries and out-of-order callbacks act on current
// state. A reconciliation failure never blocks the COMPLETED transition: the
// insight is already saved and the outcome is recorded in the audit log.
func (p *Processor) Process(ctx context.Context, payload *model.CallbackPayload) error {
	conv, err := p.store.GetConversation(ctx, payload.TenantID, payload.ConversationID)
	if err != nil {
		return eris.Wrap(err, "conversation: load conversation")
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	// COMPLETED and FAILED are final for this webhook. A redelivered or
	// out-of-order callback must not move the conversation again.
	if conv.ProcessingStatus.Terminal() {
		zap.L().Info("conversation: callback ignored, status already terminal",
			zap.String("conversation_id", conv.ID),
			zap.String("tenant_id", conv.TenantID),
			zap.String("status", string(conv.ProcessingStatus)),
			zap.String("callback_status", string(payload.Status)),
		)
		return nil
	}

	switch payload.Status {
	case model.ProcessingStatusProcessing:
		return p.markProcessing(ctx, conv)
	case model.ProcessingStatusFailed:
		return p.markFailed(ctx, conv, payload.ErrorReason)
	case model.ProcessingStatusCompleted:
		return p.complete(ctx, conv, payload)
	default:
		return eris.Errorf("conversation: unsupported callback status %q", payload.Status)
	}
}

func (p *Processor) markProcessing(ctx context.Context, conv *model.Conversation) error {
	if err := p.store.UpdateConversationStatus(ctx, conv.TenantID, conv.ID, model.ProcessingStatusProcessing, nil); err != nil {
		return eris.Wrap(err, "conversation: mark processing")
	}
	zap.L().Info("conversation: processing started",
		zap.String("conversation_id", conv.ID),
		zap.String("tenant_id", conv.TenantID),
	)
	return nil
}

func (p *Processor) markFailed(ctx context.Context, conv *model.Conversation, reason string) error {
	if reason == "" {
		reason = fallbackErrorReason
	}
	if err := p.store.UpdateConversationStatus(ctx, conv.TenantID, conv.ID, model.ProcessingStatusFailed, &reason); err != nil {
		return eris.Wrap(err, "conversation: mark failed")
	}
	zap.L().Warn("conversation: analysis failed",
		zap.String("conversation_id", conv.ID),
		zap.String("tenant_id", conv.TenantID),
		zap.String("reason", reason),
	)
	return nil
}

// complete persists the insight first, then reconciles, then flips status.
// Order matters: if the process dies mid-way the conversation stays
// PROCESSING and a redelivery repeats the (idempotent) work.
func (p *Processor) complete(ctx context.Context, conv *model.Conversation, payload *model.CallbackPayload) error {
	insight, extracted, err := buildInsight(payload)
	if err != nil {
		return err
	}

	if insight != nil {
		if err := p.store.UpsertInsight(ctx, insight); err != nil {
			return eris.Wrap(err, "conversation: upsert insight")
		}
	}

	if extracted != nil {
		result := p.engine.Reconcile(ctx, conv.TenantID, conv.UserID, conv.ID, extracted)
		zap.L().Info("conversation: reconciliation finished",
			zap.String("conversation_id", conv.ID),
			zap.String("outcome", string(result.Outcome)),
			zap.String("reason", string(result.Reason)),
		)
	}

	if err := p.store.UpdateConversationStatus(ctx, conv.TenantID, conv.ID, model.ProcessingStatusCompleted, nil); err != nil {
		return eris.Wrap(err, "conversation: mark completed")
	}
	zap.L().Info("conversation: completed",
		zap.String("conversation_id", conv.ID),
		zap.String("tenant_id", conv.TenantID),
	)
	return nil
}

// buildInsight maps the callback insights to a full-replace Insight row and
// pulls out the extraction for reconciliation. The raw extractedData blob is
// kept verbatim on the insight for later re-processing.
func buildInsight(payload *model.CallbackPayload) (*model.Insight, *model.ExtractedData, error) {
	ins := payload.Insights
	if ins == nil {
		return nil, nil, nil
	}
	insight := &model.Insight{
		ConversationID:  payload.ConversationID,
		Interests:       ins.Interests,
		Objections:      ins.Objections,
		Commitments:     ins.Commitments,
		ProgressSignals: ins.ProgressSignals,
		RiskSignals:     ins.RiskSignals,
		NextActions:     ins.NextActions,
		Summary:         ins.Summary,
	}
	if ins.ExtractedData != nil {
		raw, err := json.Marshal(ins.ExtractedData)
		if err != nil {
			return nil, nil, eris.Wrap(err, "conversation: marshal extracted data")
		}
		insight.ExtractedData = raw
	}
	return insight, ins.ExtractedData, nil
}
