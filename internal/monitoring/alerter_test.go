package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesvox/conversa/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitorConfig{
		FailureRateThreshold: 0.20,
		ErrorRateThreshold:   0.10,
	})

	snap := &MetricsSnapshot{
		ConversationsCompleted: 95,
		ConversationsFailed:    5,
		ConversationFailRate:   0.05,
		ReconcileTotal:         50,
		ReconcileErrors:        2,
		ReconcileErrorRate:     0.04,
		LookbackHours:          24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_ConversationFailureRate(t *testing.T) {
	a := NewAlerter(config.MonitorConfig{
		FailureRateThreshold: 0.20,
		ErrorRateThreshold:   0.10,
	})

	snap := &MetricsSnapshot{
		ConversationsCompleted: 12,
		ConversationsFailed:    8,
		ConversationFailRate:   0.4,
		LookbackHours:          24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertConversationFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_TooFewFinishedConversations(t *testing.T) {
	a := NewAlerter(config.MonitorConfig{FailureRateThreshold: 0.20})

	snap := &MetricsSnapshot{
		ConversationsCompleted: 1,
		ConversationsFailed:    2,
		ConversationFailRate:   0.67,
	}

	assert.Empty(t, a.Evaluate(snap), "small samples never alert")
}

func TestAlerter_Evaluate_ReconciliationErrors(t *testing.T) {
	a := NewAlerter(config.MonitorConfig{
		FailureRateThreshold: 0.20,
		ErrorRateThreshold:   0.10,
	})

	snap := &MetricsSnapshot{
		ReconcileTotal:     20,
		ReconcileErrors:    5,
		ReconcileErrorRate: 0.25,
		LookbackHours:      24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertReconciliationErrors, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "25.0%")
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertReconciliationErrors, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitorConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertReconciliationErrors, Severity: "high", Message: "x"},
	})

	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
}

func TestAlerter_SendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(config.MonitorConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertReconciliationErrors}})
	assert.Zero(t, sent)
}

func TestAlerter_SendAlerts_WebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitorConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertConversationFailureRate}})
	assert.Zero(t, sent)
}

func TestAlerter_SendAlerts_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitorConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertReconciliationErrors}})

	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}
