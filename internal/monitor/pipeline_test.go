package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loghealer/healthmon/internal/alerting"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/events"
	"github.com/loghealer/healthmon/internal/observability/metrics"
	"github.com/loghealer/healthmon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber returns queued outcomes in order, repeating the last one.
type scriptedProber struct {
	mu       sync.Mutex
	outcomes []Outcome
	calls    int
}

func (p *scriptedProber) Probe(_ context.Context, _ *entities.MonitoredService) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := min(p.calls, len(p.outcomes)-1)
	p.calls++
	return p.outcomes[idx]
}

type recordingNotifier struct {
	mu       sync.Mutex
	alerts   []string
	resolved []string
}

func (n *recordingNotifier) SendAlert(_ context.Context, a *entities.AlertHistory, _ []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a.Message)
	return nil
}

func (n *recordingNotifier) SendResolution(_ context.Context, a *entities.AlertHistory, _ []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, a.Message)
	return nil
}

type failingStore struct{}

func (failingStore) Append(context.Context, *entities.HealthCheck) error {
	return assert.AnError
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate(context.Context, *entities.MonitoredService, *entities.HealthCheck) error {
	return assert.AnError
}

func okOutcome(ms int) Outcome {
	return Outcome{StatusCode: testutil.IntPtr(200), ResponseTimeMs: ms}
}

type pipelineFixture struct {
	svc      *entities.MonitoredService
	checks   repository.HealthCheckRepository
	history  repository.AlertHistoryRepository
	rules    repository.AlertRuleRepository
	notifier *recordingNotifier
	prober   *scriptedProber
	checker  *Checker
	metrics  *metrics.Metrics
	now      time.Time
}

func newPipelineFixture(t *testing.T, outcomes ...Outcome) *pipelineFixture {
	t.Helper()
	ctx := t.Context()
	db := testutil.NewSQLiteDB(t)

	services := repository.NewServiceRepository(db)
	svc := &entities.MonitoredService{
		Name:           "orders-api",
		URL:            "http://orders:8080",
		HealthEndpoint: "/actuator/health",
		TimeoutMs:      5000,
		Active:         true,
	}
	require.NoError(t, services.Create(ctx, svc))

	f := &pipelineFixture{
		svc:      svc,
		checks:   repository.NewHealthCheckRepository(db),
		history:  repository.NewAlertHistoryRepository(db),
		rules:    repository.NewAlertRuleRepository(db),
		notifier: &recordingNotifier{},
		prober:   &scriptedProber{outcomes: outcomes},
		metrics:  metrics.New(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	clock := func() time.Time { return f.now }
	evaluator, err := alerting.NewEvaluator(f.rules, f.checks, f.history, f.notifier, alerting.Options{
		Clock:   clock,
		Metrics: f.metrics,
	}, testutil.Logger())
	require.NoError(t, err)

	f.checker = NewChecker(f.prober, f.checks, evaluator, testutil.Logger(),
		WithClock(clock), WithMetrics(f.metrics))
	return f
}

// checkCount reads the health check counter for one service and status.
func checkCount(t *testing.T, m *metrics.Metrics, service, status string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "healthmon_health_checks_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["service"] == service && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func (f *pipelineFixture) addRule(t *testing.T, rule *entities.AlertRule) {
	t.Helper()
	rule.ServiceID = f.svc.ID
	rule.Active = true
	if rule.NotifyEmails == "" {
		rule.NotifyEmails = "oncall@example.com"
	}
	require.NoError(t, f.rules.CreateRule(t.Context(), rule))
}

func TestPerformHealthCheck_SlowResponseScenario(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t, okOutcome(4200))
	f.addRule(t, &entities.AlertRule{
		Name:                "orders slow",
		RuleType:            entities.RuleTypeSlowResponse,
		ThresholdValue:      3000,
		ConsecutiveFailures: 2,
		CooldownMinutes:     15,
	})

	hc, err := f.checker.PerformHealthCheck(t.Context(), f.svc)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDegraded, hc.Status)
	require.NotNil(t, hc.ResponseTimeMs)
	assert.Equal(t, 4200, *hc.ResponseTimeMs)
	require.NotNil(t, hc.StatusCode)
	assert.Equal(t, 200, *hc.StatusCode)
	assert.Nil(t, hc.ErrorMessage)
	assert.NotZero(t, hc.ID)
	assert.Empty(t, f.notifier.alerts, "one slow check must not alert with N=2")

	f.now = f.now.Add(30 * time.Second)
	_, err = f.checker.PerformHealthCheck(t.Context(), f.svc)
	require.NoError(t, err)

	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, "Service 'orders-api' is responding slowly. Response time: 4200ms (threshold: 3000ms)", f.notifier.alerts[0])

	open, err := f.history.ListUnresolved(t.Context())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].NotificationSent)

	assert.InDelta(t, 2, checkCount(t, f.metrics, "orders-api", "DEGRADED"), 0)
}

func TestPerformHealthCheck_DowntimeAndRecovery(t *testing.T) {
	t.Parallel()
	down := Outcome{ResponseTimeMs: 5000, ErrorMessage: "timeout after 5000ms"}
	f := newPipelineFixture(t, down, down, okOutcome(80))
	f.addRule(t, &entities.AlertRule{
		Name:                "orders down",
		RuleType:            entities.RuleTypeDowntime,
		ConsecutiveFailures: 2,
	})

	hc, err := f.checker.PerformHealthCheck(t.Context(), f.svc)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDown, hc.Status)
	assert.Nil(t, hc.StatusCode)
	require.NotNil(t, hc.ErrorMessage)
	assert.Equal(t, "timeout after 5000ms", *hc.ErrorMessage)
	require.NotNil(t, hc.ResponseTimeMs, "response time is recorded even without a response")

	f.now = f.now.Add(30 * time.Second)
	_, err = f.checker.PerformHealthCheck(t.Context(), f.svc)
	require.NoError(t, err)
	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, "Service 'orders-api' is DOWN. Status code: N/A, Error: timeout after 5000ms", f.notifier.alerts[0])

	f.now = f.now.Add(30 * time.Second)
	hc, err = f.checker.PerformHealthCheck(t.Context(), f.svc)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusUp, hc.Status)
	assert.Len(t, f.notifier.resolved, 1)

	open, err := f.history.ListUnresolved(t.Context())
	require.NoError(t, err)
	assert.Empty(t, open)

	recent, err := f.checks.Recent(t.Context(), f.svc.ID, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestPerformHealthCheck_StoreFailure(t *testing.T) {
	t.Parallel()
	c := NewChecker(&scriptedProber{outcomes: []Outcome{okOutcome(10)}}, failingStore{}, failingEvaluator{}, testutil.Logger())

	hc, err := c.PerformHealthCheck(t.Context(), &entities.MonitoredService{ID: 7, Name: "billing", TimeoutMs: 1000})
	require.Error(t, err)
	assert.Nil(t, hc)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, errors.CategoryDatabase, errors.CategoryOf(err))
}

func TestPerformHealthCheck_EvaluationFailureKeepsCheck(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	services := repository.NewServiceRepository(db)
	svc := &entities.MonitoredService{Name: "billing", URL: "http://billing", HealthEndpoint: "/health", Active: true}
	require.NoError(t, services.Create(t.Context(), svc))
	checks := repository.NewHealthCheckRepository(db)

	c := NewChecker(&scriptedProber{outcomes: []Outcome{okOutcome(10)}}, checks, failingEvaluator{}, testutil.Logger())
	hc, err := c.PerformHealthCheck(t.Context(), svc)
	require.ErrorIs(t, err, assert.AnError)
	require.NotNil(t, hc)
	assert.NotZero(t, hc.ID)

	latest, err := checks.Latest(t.Context(), svc.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, hc.ID, latest.ID)
}

func TestPerformHealthCheck_PublishesEvent(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	svc := &entities.MonitoredService{Name: "search", URL: "http://search", HealthEndpoint: "/health", Active: true}
	require.NoError(t, repository.NewServiceRepository(db).Create(t.Context(), svc))

	bus := events.NewBus(10, testutil.Logger())
	t.Cleanup(bus.Stop)
	got := make(chan *events.Event, 1)
	bus.Subscribe(func(e *events.Event) {
		if e.Kind == events.KindHealthCheck {
			got <- e
		}
	})

	c := NewChecker(&scriptedProber{outcomes: []Outcome{{StatusCode: testutil.IntPtr(503), ResponseTimeMs: 12, ErrorMessage: "unexpected status: 503 Service Unavailable"}}},
		repository.NewHealthCheckRepository(db), nil, testutil.Logger(), WithEvents(bus))
	_, err := c.PerformHealthCheck(t.Context(), svc)
	require.NoError(t, err)

	select {
	case e := <-got:
		assert.Equal(t, svc.ID, e.ServiceID)
		assert.Equal(t, "DOWN", e.Status)
		assert.Equal(t, "unexpected status: 503 Service Unavailable", e.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("health check event not delivered")
	}
}
