package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salesvox/conversa/internal/model"
)

// resolveDeal updates the deal already bound to the conversation or creates a
// new one in the tenant's default pipeline stage. Unlike company and contact,
// deal fields take the overwrite-on-present policy: the latest conversation
// carries the freshest intelligence. A conversation keeps the same deal for
// life, so repeat callbacks update rather than duplicate.
func (e *Engine) resolveDeal(ctx context.Context, tenantID, userID, conversationID string, ed *model.ExtractedDeal, contact *model.Contact, company *model.Company, companyName string) (*string, SkipReason, error) {
	title := ""
	if ed != nil {
		title = strOrEmpty(ed.Title)
	}
	if title == "" && companyName != "" {
		title = "Opportunity - " + companyName
	}
	if title == "" {
		return nil, "", nil
	}

	conv, err := e.store.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, "", eris.Wrap(err, "reconcile: load conversation")
	}

	if conv != nil && conv.DealID != nil {
		existing, err := e.store.GetDeal(ctx, tenantID, *conv.DealID)
		if err != nil {
			return nil, "", eris.Wrap(err, "reconcile: load deal")
		}
		if existing != nil {
			changed := mergeDeal(existing, ed)
			if title != "" && existing.Title != title && ed != nil && ed.Title != nil {
				existing.Title = title
				changed = true
			}
			if existing.CompanyID == nil && company != nil {
				existing.CompanyID = &company.ID
				changed = true
			}
			if changed {
				if err := e.store.UpdateDeal(ctx, existing); err != nil {
					return nil, "", eris.Wrap(err, "reconcile: update deal")
				}
				zap.L().Info("reconcile: updated deal",
					zap.String("deal_id", existing.ID),
					zap.String("conversation_id", conversationID),
				)
			}
			return &existing.ID, "", nil
		}
		// Dangling reference; fall through and create a replacement.
		zap.L().Warn("reconcile: conversation references missing deal",
			zap.String("conversation_id", conversationID),
			zap.String("deal_id", *conv.DealID),
		)
	}

	stage, err := e.store.DefaultPipelineStage(ctx, tenantID)
	if err != nil {
		return nil, "", eris.Wrap(err, "reconcile: load default pipeline stage")
	}
	if stage == nil {
		zap.L().Warn("reconcile: tenant has no active pipeline stage",
			zap.String("tenant_id", tenantID),
		)
		return nil, SkipNoPipelineStage, nil
	}

	deal := &model.Deal{
		TenantID:    tenantID,
		UserID:      userID,
		Title:       title,
		Probability: stage.Probability,
		StageID:     stage.ID,
		ContactID:   contact.ID,
		Status:      model.DealStatusOpen,
	}
	if company != nil {
		deal.CompanyID = &company.ID
	}
	mergeDeal(deal, ed)

	if err := e.store.CreateDeal(ctx, deal); err != nil {
		return nil, "", eris.Wrap(err, "reconcile: create deal")
	}
	zap.L().Info("reconcile: created deal",
		zap.String("deal_id", deal.ID),
		zap.String("stage_id", stage.ID),
		zap.String("conversation_id", conversationID),
	)

	bound, err := e.store.SetConversationDeal(ctx, tenantID, conversationID, deal.ID)
	if err != nil {
		return nil, "", eris.Wrap(err, "reconcile: bind deal to conversation")
	}
	if !bound {
		// A concurrent callback won the bind; keep its deal authoritative.
		zap.L().Warn("reconcile: conversation already bound to another deal",
			zap.String("conversation_id", conversationID),
			zap.String("deal_id", deal.ID),
		)
	}
	return &deal.ID, "", nil
}

// mergeDeal applies the overwrite-on-present policy and reports whether any
// field changed. Title and company linkage are handled by the caller.
func mergeDeal(d *model.Deal, ed *model.ExtractedDeal) bool {
	if ed == nil {
		return false
	}
	changed := false
	if setFloat(&d.Value, ed.Value) {
		changed = true
	}
	if setString(&d.Currency, ed.Currency) {
		changed = true
	}
	if setCloseDate(&d.ExpectedCloseDate, ed.ExpectedCloseDate) {
		changed = true
	}
	if setString(&d.ClientProblem, ed.ClientProblem) {
		changed = true
	}
	if setString(&d.OpportunityReason, ed.OpportunityReason) {
		changed = true
	}
	if setString(&d.SourceChannel, ed.SourceChannel) {
		changed = true
	}
	if setString(&d.MarketSegment, ed.MarketSegment) {
		changed = true
	}
	if setString(&d.ProductSolution, ed.ProductSolution) {
		changed = true
	}
	if setInt(&d.Quantity, ed.Quantity) {
		changed = true
	}
	return changed
}

// setCloseDate parses an extracted close date and overwrites the current one.
// Unparseable values are dropped rather than failing the whole merge.
func setCloseDate(dst **time.Time, src *string) bool {
	v := strOrEmpty(src)
	if v == "" {
		return false
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		t, err = time.Parse(time.RFC3339, v)
		if err != nil {
			zap.L().Debug("reconcile: unparseable expected close date", zap.String("value", v))
			return false
		}
	}
	t = t.UTC()
	if *dst != nil && (*dst).Equal(t) {
		return false
	}
	*dst = &t
	return true
}
