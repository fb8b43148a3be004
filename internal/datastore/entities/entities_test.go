package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoredService_HealthURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		endpoint string
		want     string
	}{
		{"no slashes", "http://orders:8080", "health", "http://orders:8080/health"},
		{"endpoint slash", "http://orders:8080", "/health", "http://orders:8080/health"},
		{"base slash", "http://orders:8080/", "health", "http://orders:8080/health"},
		{"both slashes", "http://orders:8080/", "/health", "http://orders:8080/health"},
		{"nested path", "https://api.example.com/v2", "/actuator/health", "https://api.example.com/v2/actuator/health"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := MonitoredService{URL: tt.url, HealthEndpoint: tt.endpoint}
			assert.Equal(t, tt.want, svc.HealthURL())
		})
	}
}

func TestMonitoredService_TimeoutDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, (&MonitoredService{}).Timeout())
	assert.Equal(t, 1500*time.Millisecond, (&MonitoredService{TimeoutMs: 1500}).Timeout())
	assert.Equal(t, 30*time.Second, (&MonitoredService{}).CheckInterval())
	assert.Equal(t, 2*time.Minute, (&MonitoredService{CheckIntervalSec: 120}).CheckInterval())
}

func TestAlertRule_Recipients(t *testing.T) {
	t.Parallel()

	rule := AlertRule{NotifyEmails: " ops@example.com, ,oncall@example.com ,"}
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, rule.Recipients())

	empty := AlertRule{}
	assert.Empty(t, empty.Recipients())
}

func TestAlertRule_WindowAndCooldown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, (&AlertRule{}).WindowSize())
	assert.Equal(t, 3, (&AlertRule{ConsecutiveFailures: 3}).WindowSize())
	assert.Equal(t, 15*time.Minute, (&AlertRule{CooldownMinutes: 15}).Cooldown())
	assert.Equal(t, time.Duration(0), (&AlertRule{CooldownMinutes: -1}).Cooldown())
}

func TestServiceStatus_IsFailing(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusDown.IsFailing())
	assert.True(t, StatusDegraded.IsFailing())
	assert.False(t, StatusUp.IsFailing())
	assert.False(t, StatusUnknown.IsFailing())
}

// Associations left unloaded must not show up as empty objects in API output.
func TestAlertHistoryJSON_OmitsUnloadedAssociations(t *testing.T) {
	t.Parallel()

	resolved := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h := AlertHistory{
		ID:          7,
		RuleID:      3,
		ServiceID:   1,
		AlertType:   RuleTypeDowntime,
		Message:     "Service 'orders-api' is DOWN",
		TriggeredAt: resolved.Add(-time.Hour),
		ResolvedAt:  &resolved,
	}
	assert.True(t, h.IsResolved())

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"id", "rule_id", "service_id", "alert_type", "message", "triggered_at", "resolved_at", "notification_sent"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "rule")
	assert.NotContains(t, m, "service")
}
