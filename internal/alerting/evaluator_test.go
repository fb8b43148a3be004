package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type sentNotice struct {
	kind       string
	alertID    uint
	message    string
	service    string
	recipients []string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	fail error
}

func (n *fakeNotifier) record(kind string, alert *entities.AlertHistory, recipients []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentNotice{kind: kind, alertID: alert.ID, message: alert.Message, service: alert.Service.Name, recipients: recipients})
	return nil
}

func (n *fakeNotifier) SendAlert(_ context.Context, alert *entities.AlertHistory, recipients []string) error {
	return n.record(NotifyAlert, alert, recipients)
}

func (n *fakeNotifier) SendResolution(_ context.Context, alert *entities.AlertHistory, recipients []string) error {
	return n.record(NotifyResolution, alert, recipients)
}

func (n *fakeNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.kind == kind {
			c++
		}
	}
	return c
}

type harness struct {
	t        *testing.T
	db       *gorm.DB
	svc      *entities.MonitoredService
	checks   repository.HealthCheckRepository
	alerts   repository.AlertHistoryRepository
	rules    repository.AlertRuleRepository
	notifier *fakeNotifier
	clock    *fakeClock
	eval     *Evaluator
}

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	h := &harness{
		t:        t,
		db:       db,
		checks:   repository.NewHealthCheckRepository(db),
		alerts:   repository.NewAlertHistoryRepository(db),
		rules:    repository.NewAlertRuleRepository(db),
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: t0},
	}
	h.svc = &entities.MonitoredService{Name: "orders-api", URL: "http://orders:8080", HealthEndpoint: "/health", TimeoutMs: 5000, Active: true}
	require.NoError(t, repository.NewServiceRepository(db).Create(t.Context(), h.svc))

	opts.Clock = h.clock.Now
	eval, err := NewEvaluator(h.rules, h.checks, h.alerts, h.notifier, opts, testutil.Logger())
	require.NoError(t, err)
	h.eval = eval
	return h
}

func (h *harness) addRule(ruleType entities.AlertRuleType, threshold, consecutive, cooldown int) *entities.AlertRule {
	h.t.Helper()
	rule := &entities.AlertRule{
		ServiceID:           h.svc.ID,
		Name:                string(ruleType),
		RuleType:            ruleType,
		ThresholdValue:      threshold,
		ConsecutiveFailures: consecutive,
		CooldownMinutes:     cooldown,
		NotifyEmails:        "ops@example.com",
		Active:              true,
	}
	require.NoError(h.t, h.rules.CreateRule(h.t.Context(), rule))
	return rule
}

// step appends a check at the current clock time and evaluates it.
func (h *harness) step(status entities.ServiceStatus, ms *int) error {
	h.t.Helper()
	hc := &entities.HealthCheck{ServiceID: h.svc.ID, Status: status, ResponseTimeMs: ms, CheckedAt: h.clock.Now()}
	require.NoError(h.t, h.checks.Append(h.t.Context(), hc))
	return h.eval.Evaluate(h.t.Context(), h.svc, hc)
}

func (h *harness) history(ruleID uint) []entities.AlertHistory {
	h.t.Helper()
	items, _, err := h.alerts.ListHistory(h.t.Context(), repository.AlertHistoryFilter{RuleID: ruleID})
	require.NoError(h.t, err)
	return items
}

func (h *harness) advance(d time.Duration) {
	h.clock.Set(h.clock.Now().Add(d))
}

func TestNewEvaluator_RejectsUnknownModes(t *testing.T) {
	_, err := NewEvaluator(nil, nil, nil, nil, Options{Resolution: "eventually"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfiguration, errors.CategoryOf(err))

	_, err = NewEvaluator(nil, nil, nil, nil, Options{Cooldown: "forget"}, nil)
	require.Error(t, err)
}

func TestEvaluator_DowntimeTriggersOnceAfterThreeFailures(t *testing.T) {
	h := newHarness(t, Options{})
	rule := h.addRule(entities.RuleTypeDowntime, 0, 3, 15)

	require.NoError(t, h.step(entities.StatusDown, nil))
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDown, nil))
	assert.Empty(t, h.history(rule.ID))

	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDegraded, testutil.IntPtr(4500)))

	items := h.history(rule.ID)
	require.Len(t, items, 1)
	assert.Equal(t, entities.RuleTypeDowntime, items[0].AlertType)
	assert.True(t, items[0].TriggeredAt.Equal(h.clock.Now()))
	assert.True(t, items[0].NotificationSent)
	assert.Nil(t, items[0].ResolvedAt)
	assert.Contains(t, items[0].Message, "Service 'orders-api' is DOWN")

	require.Equal(t, 1, h.notifier.count(NotifyAlert))
	assert.Equal(t, []string{"ops@example.com"}, h.notifier.sent[0].recipients)
	assert.Equal(t, "orders-api", h.notifier.sent[0].service)

	// Still failing inside the cooldown: nothing new.
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDown, nil))
	assert.Len(t, h.history(rule.ID), 1)
	assert.Equal(t, 1, h.notifier.count(NotifyAlert))
}

func TestEvaluator_DowntimeWithUpInWindowDoesNotTrigger(t *testing.T) {
	h := newHarness(t, Options{})
	rule := h.addRule(entities.RuleTypeDowntime, 0, 3, 15)

	require.NoError(t, h.step(entities.StatusDown, nil))
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusUp, testutil.IntPtr(100)))
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDown, nil))
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDown, nil))

	assert.Empty(t, h.history(rule.ID))
	assert.Zero(t, h.notifier.count(NotifyAlert))
}

// With the default preserve policy, a re-trigger after cooldown leaves the
// earlier alert open, so the rule briefly has two unresolved rows. This is a
// known characteristic of the preserve policy, not a regression.
func TestEvaluator_CooldownPreserveLeavesPriorAlertOpen(t *testing.T) {
	h := newHarness(t, Options{})
	rule := h.addRule(entities.RuleTypeDowntime, 0, 1, 15)

	require.NoError(t, h.step(entities.StatusDown, nil))
	require.Len(t, h.history(rule.ID), 1)

	h.clock.Set(t0.Add(10 * time.Minute))
	require.NoError(t, h.step(entities.StatusDown, nil))
	assert.Len(t, h.history(rule.ID), 1, "no new row inside the cooldown")
	assert.Equal(t, 1, h.notifier.count(NotifyAlert), "no second notification inside the cooldown")

	h.clock.Set(t0.Add(16 * time.Minute))
	require.NoError(t, h.step(entities.StatusDown, nil))
	items := h.history(rule.ID)
	require.Len(t, items, 2)
	assert.Equal(t, 2, h.notifier.count(NotifyAlert))

	active, err := h.alerts.ListActiveByRule(t.Context(), rule.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2, "preserve policy does not close the earlier alert")
	assert.True(t, active[0].TriggeredAt.Equal(t0.Add(16*time.Minute)))

	// Cooldown is measured from the newest open alert.
	h.clock.Set(t0.Add(20 * time.Minute))
	require.NoError(t, h.step(entities.StatusDown, nil))
	assert.Len(t, h.history(rule.ID), 2)
}

func TestEvaluator_CooldownSupersedeKeepsSingleOpenAlert(t *testing.T) {
	h := newHarness(t, Options{Cooldown: CooldownSupersede})
	rule := h.addRule(entities.RuleTypeDowntime, 0, 1, 15)

	require.NoError(t, h.step(entities.StatusDown, nil))
	h.clock.Set(t0.Add(16 * time.Minute))
	require.NoError(t, h.step(entities.StatusDown, nil))

	items := h.history(rule.ID)
	require.Len(t, items, 2)
	active, err := h.alerts.ListActiveByRule(t.Context(), rule.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].TriggeredAt.Equal(t0.Add(16*time.Minute)))

	// Older row resolved at the supersede time, without a resolution notice.
	older := items[1]
	require.NotNil(t, older.ResolvedAt)
	assert.True(t, older.ResolvedAt.Equal(t0.Add(16*time.Minute)))
	assert.Zero(t, h.notifier.count(NotifyResolution))
}

func TestEvaluator_ResolutionOnUpNotifiesOnce(t *testing.T) {
	h := newHarness(t, Options{})
	rule := h.addRule(entities.RuleTypeDowntime, 0, 1, 15)

	require.NoError(t, h.step(entities.StatusDown, nil))
	h.clock.Set(t0.Add(16 * time.Minute))
	require.NoError(t, h.step(entities.StatusDown, nil))

	h.clock.Set(t0.Add(17 * time.Minute))
	require.NoError(t, h.step(entities.StatusUp, testutil.IntPtr(80)))

	for _, item := range h.history(rule.ID) {
		require.NotNil(t, item.ResolvedAt, "alert %d should be resolved", item.ID)
		assert.True(t, item.ResolvedAt.Equal(t0.Add(17*time.Minute)))
	}
	assert.Equal(t, 1, h.notifier.count(NotifyResolution))

	// Further UP checks have nothing left to resolve.
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusUp, testutil.IntPtr(80)))
	assert.Equal(t, 1, h.notifier.count(NotifyResolution))

	// The rule can trigger again.
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDown, nil))
	assert.Len(t, h.history(rule.ID), 3)
}

// In any_up mode a single UP check resolves an error-rate alert even though
// the window rate may still be above the threshold.
func TestEvaluator_AnyUpResolvesErrorRateAlert(t *testing.T) {
	h := newHarness(t, Options{})
	rule := h.addRule(entities.RuleTypeErrorRate, 50, 1, 15)

	require.NoError(t, h.step(entities.StatusDown, nil))
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDown, nil))
	require.Len(t, h.history(rule.ID), 1)

	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusUp, testutil.IntPtr(50))) // window rate 66%, still triggering
	assert.Len(t, h.history(rule.ID), 1)

	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusUp, testutil.IntPtr(50))) // 2 of 4 down, still >= 50
	assert.Zero(t, h.notifier.count(NotifyResolution))

	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusUp, testutil.IntPtr(50))) // 40%, not triggering, UP
	assert.Equal(t, 1, h.notifier.count(NotifyResolution))
}

func TestEvaluator_StrictResolutionWaitsForOwnCondition(t *testing.T) {
	h := newHarness(t, Options{Resolution: ResolveStrict})
	slow := h.addRule(entities.RuleTypeSlowResponse, 4000, 1, 15)
	down := h.addRule(entities.RuleTypeDowntime, 0, 1, 15)

	require.NoError(t, h.step(entities.StatusDegraded, testutil.IntPtr(4500)))
	require.Len(t, h.history(slow.ID), 1)
	require.Len(t, h.history(down.ID), 1)

	// Status DOWN without a response time: neither rule is cleared.
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDown, nil))
	assert.Zero(t, h.notifier.count(NotifyResolution))

	// Fast but DEGRADED (4xx): the slow rule clears, the downtime rule does not.
	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDegraded, testutil.IntPtr(90)))
	assert.NotNil(t, h.history(slow.ID)[0].ResolvedAt)
	assert.Nil(t, h.history(down.ID)[0].ResolvedAt)
	assert.Equal(t, 1, h.notifier.count(NotifyResolution))

	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusUp, testutil.IntPtr(90)))
	assert.NotNil(t, h.history(down.ID)[0].ResolvedAt)
	assert.Equal(t, 2, h.notifier.count(NotifyResolution))
}

func TestEvaluator_NotificationFailureLeavesFlagUnset(t *testing.T) {
	h := newHarness(t, Options{})
	h.notifier.fail = errors.NewStd("smtp: connection refused")
	rule := h.addRule(entities.RuleTypeDowntime, 0, 1, 15)

	require.NoError(t, h.step(entities.StatusDown, nil), "delivery failures are not evaluation errors")

	items := h.history(rule.ID)
	require.Len(t, items, 1)
	assert.False(t, items[0].NotificationSent)
	assert.Nil(t, items[0].NotificationSentAt)
}

func TestEvaluator_BadRuleDoesNotStopOthers(t *testing.T) {
	h := newHarness(t, Options{})
	broken := h.addRule("LATENCY_P99", 10, 1, 15)
	good := h.addRule(entities.RuleTypeDowntime, 0, 1, 15)

	err := h.step(entities.StatusDown, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LATENCY_P99")

	assert.Empty(t, h.history(broken.ID))
	assert.Len(t, h.history(good.ID), 1)
}

func TestEvaluator_InactiveRulesAreIgnored(t *testing.T) {
	h := newHarness(t, Options{})
	rule := h.addRule(entities.RuleTypeDowntime, 0, 1, 15)
	require.NoError(t, h.rules.ToggleRule(t.Context(), rule.ID, false))

	require.NoError(t, h.step(entities.StatusDown, nil))
	assert.Empty(t, h.history(rule.ID))
}

func TestEvaluator_OrdersAPIScenario(t *testing.T) {
	h := newHarness(t, Options{})
	rule := h.addRule(entities.RuleTypeSlowResponse, 4000, 2, 15)

	// 200 after 4200ms against a 5000ms timeout classifies as DEGRADED.
	require.NoError(t, h.step(entities.StatusDegraded, testutil.IntPtr(4200)))
	assert.Empty(t, h.history(rule.ID), "first slow check must not trigger")

	h.advance(30 * time.Second)
	require.NoError(t, h.step(entities.StatusDegraded, testutil.IntPtr(4300)))
	items := h.history(rule.ID)
	require.Len(t, items, 1)
	assert.Equal(t, "Service 'orders-api' is responding slowly. Response time: 4300ms (threshold: 4000ms)", items[0].Message)
	assert.Equal(t, 1, h.notifier.count(NotifyAlert))
}
