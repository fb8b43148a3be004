package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type brokenPruner struct{}

func (brokenPruner) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, assert.AnError
}

func TestRetentionJob_Run(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := testutil.NewSQLiteDB(t)

	svc := &entities.MonitoredService{Name: "orders-api", URL: "http://orders", HealthEndpoint: "/health", Active: true}
	require.NoError(t, repository.NewServiceRepository(db).Create(ctx, svc))
	rule := &entities.AlertRule{ServiceID: svc.ID, Name: "down", RuleType: entities.RuleTypeDowntime, NotifyEmails: "a@example.com", Active: true}
	require.NoError(t, repository.NewAlertRuleRepository(db).CreateRule(ctx, rule))

	checks := repository.NewHealthCheckRepository(db)
	history := repository.NewAlertHistoryRepository(db)
	now := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{31 * 24 * time.Hour, 30*24*time.Hour + time.Minute, 29 * 24 * time.Hour, time.Hour} {
		require.NoError(t, checks.Append(ctx, &entities.HealthCheck{
			ServiceID: svc.ID,
			Status:    entities.StatusUp,
			CheckedAt: now.Add(-age),
		}))
	}

	oldResolved := now.Add(-100 * 24 * time.Hour)
	alerts := []*entities.AlertHistory{
		{RuleID: rule.ID, ServiceID: svc.ID, AlertType: entities.RuleTypeDowntime, Message: "old resolved", TriggeredAt: oldResolved, ResolvedAt: &oldResolved},
		{RuleID: rule.ID, ServiceID: svc.ID, AlertType: entities.RuleTypeDowntime, Message: "old open", TriggeredAt: oldResolved},
		{RuleID: rule.ID, ServiceID: svc.ID, AlertType: entities.RuleTypeDowntime, Message: "recent", TriggeredAt: now.Add(-time.Hour)},
	}
	for _, a := range alerts {
		require.NoError(t, history.SaveAlert(ctx, a))
	}

	job := NewRetentionJob(checks, history, RetentionPolicy{AlertHistoryMaxAge: 90 * 24 * time.Hour}, testutil.Logger(), nil, nil)
	job.SetClock(func() time.Time { return now })

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.HealthChecks)
	assert.Equal(t, int64(1), report.Alerts)

	recent, err := checks.Recent(ctx, svc.ID, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	_, total, err := history.ListHistory(ctx, repository.AlertHistoryFilter{ServiceID: svc.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "open alerts are kept regardless of age")

	report, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.HealthChecks, "second sweep must be a no-op")
	assert.Zero(t, report.Alerts)
}

func TestRetentionJob_KeepsAlertHistoryByDefault(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := testutil.NewSQLiteDB(t)

	svc := &entities.MonitoredService{Name: "billing", URL: "http://billing", HealthEndpoint: "/health", Active: true}
	require.NoError(t, repository.NewServiceRepository(db).Create(ctx, svc))
	rule := &entities.AlertRule{ServiceID: svc.ID, Name: "down", RuleType: entities.RuleTypeDowntime, NotifyEmails: "a@example.com", Active: true}
	require.NoError(t, repository.NewAlertRuleRepository(db).CreateRule(ctx, rule))

	history := repository.NewAlertHistoryRepository(db)
	old := time.Now().AddDate(-1, 0, 0)
	require.NoError(t, history.SaveAlert(ctx, &entities.AlertHistory{
		RuleID: rule.ID, ServiceID: svc.ID, AlertType: entities.RuleTypeDowntime,
		Message: "ancient", TriggeredAt: old, ResolvedAt: &old,
	}))

	job := NewRetentionJob(repository.NewHealthCheckRepository(db), history, RetentionPolicy{}, testutil.Logger(), nil, nil)
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Alerts)
	assert.Equal(t, DefaultHealthCheckMaxAge, job.policy.HealthCheckMaxAge)
}

func TestRetentionJob_Error(t *testing.T) {
	t.Parallel()
	job := NewRetentionJob(brokenPruner{}, nil, RetentionPolicy{}, testutil.Logger(), nil, nil)

	_, err := job.Run(t.Context())
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, errors.CategoryDatabase, errors.CategoryOf(err))
}

func TestNewRetentionSchedule(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	job := NewRetentionJob(brokenPruner{}, nil, RetentionPolicy{}, testutil.Logger(), nil, nil)

	_, err := NewRetentionSchedule(job, "not a cron spec", 0, testutil.Logger())
	require.Error(t, err)

	sched, err := NewRetentionSchedule(job, "", 0, testutil.Logger())
	require.NoError(t, err)
	sched.Start()

	entries := sched.cron.Entries()
	require.Len(t, entries, 1)
	next := entries[0].Next
	assert.Equal(t, 3, next.Hour())
	assert.Zero(t, next.Minute())

	sched.Stop()
}
