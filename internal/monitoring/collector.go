// Package monitoring collects operational snapshots of the callback pipeline
// and raises webhook alerts when failure thresholds are breached.
package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/salesvox/conversa/internal/model"
	"github.com/salesvox/conversa/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Conversation statuses (current state, all time).
	ConversationsPending    int `json:"conversations_pending"`
	ConversationsProcessing int `json:"conversations_processing"`
	ConversationsCompleted  int `json:"conversations_completed"`
	ConversationsFailed     int `json:"conversations_failed"`
	// ConversationFailRate is failed over finished conversations.
	ConversationFailRate float64 `json:"conversation_fail_rate"`

	// Reconciliation outcomes within the lookback window.
	ReconcileTotal     int            `json:"reconcile_total"`
	ReconcileSuccess   int            `json:"reconcile_success"`
	ReconcileErrors    int            `json:"reconcile_errors"`
	ReconcileSkipped   map[string]int `json:"reconcile_skipped,omitempty"`
	ReconcileErrorRate float64        `json:"reconcile_error_rate"`

	// CRM entity totals.
	Companies int `json:"companies"`
	Contacts  int `json:"contacts"`
	Deals     int `json:"deals"`
	Insights  int `json:"insights"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	statuses, err := c.store.ConversationStatusCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: conversation status counts")
	}
	snap.ConversationsPending = statuses[model.ProcessingStatusPending]
	snap.ConversationsProcessing = statuses[model.ProcessingStatusProcessing]
	snap.ConversationsCompleted = statuses[model.ProcessingStatusCompleted]
	snap.ConversationsFailed = statuses[model.ProcessingStatusFailed]
	if finished := snap.ConversationsCompleted + snap.ConversationsFailed; finished > 0 {
		snap.ConversationFailRate = float64(snap.ConversationsFailed) / float64(finished)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	outcomes, err := c.store.ReconciliationOutcomeCounts(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: reconciliation outcome counts")
	}
	for outcome, n := range outcomes {
		snap.ReconcileTotal += n
		switch {
		case outcome == "success":
			snap.ReconcileSuccess += n
		case outcome == "error":
			snap.ReconcileErrors += n
		case strings.HasPrefix(outcome, "skipped"):
			if snap.ReconcileSkipped == nil {
				snap.ReconcileSkipped = map[string]int{}
			}
			reason := strings.TrimPrefix(strings.TrimPrefix(outcome, "skipped"), ":")
			if reason == "" {
				reason = "unknown"
			}
			snap.ReconcileSkipped[reason] += n
		}
	}
	if snap.ReconcileTotal > 0 {
		snap.ReconcileErrorRate = float64(snap.ReconcileErrors) / float64(snap.ReconcileTotal)
	}

	entities, err := c.store.CountEntities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count entities")
	}
	snap.Companies = entities.Companies
	snap.Contacts = entities.Contacts
	snap.Deals = entities.Deals
	snap.Insights = entities.Insights

	return snap, nil
}
