package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector_AlertsOnSpike(t *testing.T) {
	var alerts []AlertEvent
	m := newMetricsCollector(func(e AlertEvent) { alerts = append(alerts, e) })

	for i := 0; i < defaultLoginFailureThreshold-1; i++ {
		m.recordEvent(AuditLoginFailure)
	}
	assert.Empty(t, alerts)

	m.recordEvent(AuditLoginFailure)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, defaultLoginFailureThreshold, alerts[0].Count)

	// The window resets after an alert.
	m.recordEvent(AuditLoginFailure)
	assert.Len(t, alerts, 1)
}

func TestMetricsCollector_IgnoresOtherEvents(t *testing.T) {
	var alerts int
	m := newMetricsCollector(func(AlertEvent) { alerts++ })
	for i := 0; i < 2*defaultLoginFailureThreshold; i++ {
		m.recordEvent(AuditLoginSuccess)
		m.recordEvent(AuditThemeToggled)
	}
	assert.Zero(t, alerts)
}

func TestMetricsCollector_NilIsSafe(t *testing.T) {
	var m *metricsCollector
	assert.NotPanics(t, func() { m.recordEvent(AuditLoginFailure) })
}

func TestTrimWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		now.Add(-3 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-30 * time.Second),
		now,
	}
	got := trimWindow(times, now, time.Minute)
	assert.Equal(t, times[2:], got)
}
