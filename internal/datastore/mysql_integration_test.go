//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MySQLRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Minute)
	defer cancel()

	mysqlC, err := containers.NewMySQLContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mysqlC.Terminate(context.Background()) })

	settings, err := mysqlC.Settings(ctx)
	require.NoError(t, err)

	store, err := Open(ctx, settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	db := store.DB()
	for _, model := range entities.All() {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}

	services := repository.NewServiceRepository(db)
	checks := repository.NewHealthCheckRepository(db)
	history := repository.NewAlertHistoryRepository(db)

	svc := &entities.MonitoredService{Name: "orders-api", URL: "http://orders:8080", HealthEndpoint: "/health", Active: true}
	require.NoError(t, services.Create(ctx, svc))

	rule := &entities.AlertRule{ServiceID: svc.ID, Name: "down", RuleType: entities.RuleTypeDowntime, NotifyEmails: "ops@example.com", Active: true}
	require.NoError(t, repository.NewAlertRuleRepository(db).CreateRule(ctx, rule))

	now := time.Now().UTC().Truncate(time.Second)
	ms := 120
	for i := range 3 {
		require.NoError(t, checks.Append(ctx, &entities.HealthCheck{
			ServiceID:      svc.ID,
			Status:         entities.StatusUp,
			ResponseTimeMs: &ms,
			CheckedAt:      now.Add(time.Duration(i-3) * time.Minute),
		}))
	}

	recent, err := checks.Recent(ctx, svc.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].CheckedAt.After(recent[1].CheckedAt), "expected newest first")

	avg, ok, err := checks.AverageResponseTime(ctx, svc.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 120.0, avg, 0.01)

	alert := &entities.AlertHistory{RuleID: rule.ID, ServiceID: svc.ID, AlertType: rule.RuleType, Message: "down", TriggeredAt: now}
	require.NoError(t, history.SaveAlert(ctx, alert))
	n, err := history.Resolve(ctx, []uint{alert.ID}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := history.DeleteResolvedBefore(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	require.NoError(t, mysqlC.Reset(ctx, db))
	active, err := services.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
