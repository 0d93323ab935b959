package monitoring

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesvox/conversa/internal/model"
	"github.com/salesvox/conversa/internal/store"
)

// snapshotStore stubs the monitoring queries. Unexpected calls panic via the
// embedded nil interface.
type snapshotStore struct {
	store.Store

	statuses map[model.ProcessingStatus]int
	outcomes map[string]int
	entities store.EntityCounts
	since    time.Time
	polled   chan struct{}
}

func (s *snapshotStore) ConversationStatusCounts(context.Context) (map[model.ProcessingStatus]int, error) {
	if s.polled != nil {
		select {
		case s.polled <- struct{}{}:
		default:
		}
	}
	return s.statuses, nil
}

func (s *snapshotStore) ReconciliationOutcomeCounts(_ context.Context, since time.Time) (map[string]int, error) {
	s.since = since
	return s.outcomes, nil
}

func (s *snapshotStore) CountEntities(context.Context) (*store.EntityCounts, error) {
	e := s.entities
	return &e, nil
}

func TestCollectorSnapshot(t *testing.T) {
	st := &snapshotStore{
		statuses: map[model.ProcessingStatus]int{
			model.ProcessingStatusPending:    3,
			model.ProcessingStatusProcessing: 2,
			model.ProcessingStatusCompleted:  8,
			model.ProcessingStatusFailed:     2,
		},
		outcomes: map[string]int{
			"success":                    6,
			"skipped:low_confidence":     2,
			"skipped:no_pipeline_stage":  1,
			"error":                      1,
		},
		entities: store.EntityCounts{Companies: 4, Contacts: 7, Deals: 5, Insights: 8},
	}
	c := NewCollector(st)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.ConversationsPending)
	assert.Equal(t, 8, snap.ConversationsCompleted)
	assert.Equal(t, 2, snap.ConversationsFailed)
	assert.InDelta(t, 0.2, snap.ConversationFailRate, 0.0001)

	assert.Equal(t, 10, snap.ReconcileTotal)
	assert.Equal(t, 6, snap.ReconcileSuccess)
	assert.Equal(t, 1, snap.ReconcileErrors)
	assert.Equal(t, 2, snap.ReconcileSkipped["low_confidence"])
	assert.Equal(t, 1, snap.ReconcileSkipped["no_pipeline_stage"])
	assert.InDelta(t, 0.1, snap.ReconcileErrorRate, 0.0001)

	assert.Equal(t, 4, snap.Companies)
	assert.Equal(t, 8, snap.Insights)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), st.since, time.Minute)
}

func TestCollectorEmptyStore(t *testing.T) {
	st := &snapshotStore{
		statuses: map[model.ProcessingStatus]int{},
		outcomes: map[string]int{},
	}
	c := NewCollector(st)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.ConversationFailRate)
	assert.Zero(t, snap.ReconcileErrorRate)
	assert.Nil(t, snap.ReconcileSkipped)
}

func TestHandlerServesSnapshot(t *testing.T) {
	st := &snapshotStore{
		statuses: map[model.ProcessingStatus]int{model.ProcessingStatusCompleted: 1},
		outcomes: map[string]int{"success": 1},
	}
	h := NewHandler(NewCollector(st), 24)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reconcile_success":1`)
}
