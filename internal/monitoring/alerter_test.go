package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarscope/harvest-cli/internal/config"
)

func healthySnapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		RunsTotal:     10,
		RunsCompleted: 9,
		RunsFailed:    1,
		RunFailRate:   0.1,
		LookbackHours: 24,
	}
}

func TestEvaluate_Healthy(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.5,
		PendingBacklog:       500,
	})
	assert.Empty(t, a.Evaluate(healthySnapshot()))
}

func TestEvaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5})

	snap := &MetricsSnapshot{
		RunsTotal:     5,
		RunsCompleted: 2,
		RunsFailed:    3,
		RunFailRate:   0.6,
		LookbackHours: 24,
	}
	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "60.0%")
}

func TestEvaluate_FailureRateNeedsEnoughRuns(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5})

	// Two finished runs are too few to judge a failure rate.
	snap := &MetricsSnapshot{
		RunsTotal:   2,
		RunsFailed:  2,
		RunFailRate: 1.0,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_NotificationBacklog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.5,
		PendingBacklog:       100,
	})

	snap := healthySnapshot()
	snap.PendingNotifications = 250
	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNotificationBacklog, alerts[0].Type)
}

func TestEvaluate_NoRecentRuns(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5})

	alerts := a.Evaluate(&MetricsSnapshot{LookbackHours: 24})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNoRecentRuns, alerts[0].Type)
}

func TestSendAlerts_PostsToWebhook(t *testing.T) {
	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		received = append(received, alert)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailureRate, Severity: "high", Message: "too many failures"},
		{Type: AlertNoRecentRuns, Severity: "medium", Message: "nothing running"},
	})

	assert.Equal(t, 2, sent)
	require.Len(t, received, 2)
	assert.Equal(t, AlertRunFailureRate, received[0].Type)
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertNoRecentRuns}})
	assert.Equal(t, 0, sent)
}

func TestSendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertNoRecentRuns}})
	assert.Equal(t, 0, sent)
}
