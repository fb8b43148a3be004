package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/events"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/observability/metrics"
)

// Options tunes an Evaluator. Zero values select the defaults.
type Options struct {
	Resolution      ResolutionMode
	Cooldown        CooldownPolicy
	ErrorRateWindow time.Duration
	// Clock returns the current time; time.Now when nil.
	Clock   func() time.Time
	Metrics *metrics.Metrics
	Events  events.Publisher
}

// Evaluator runs every active rule of a service against a fresh health check
// and drives the per-rule state machine NONE -> ACTIVE -> RESOLVED.
type Evaluator struct {
	rules    RuleSource
	checks   HistoryReader
	alerts   AlertStore
	notifier NotificationPort
	opts     Options
	log      logger.Logger

	// Serialises evaluation per service so a manual check cannot interleave
	// with a scheduled one.
	serviceLocks sync.Map // uint -> *sync.Mutex
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(rules RuleSource, checks HistoryReader, alerts AlertStore, notifier NotificationPort, opts Options, log logger.Logger) (*Evaluator, error) {
	if opts.Resolution == "" {
		opts.Resolution = ResolveOnAnyUp
	}
	if opts.Cooldown == "" {
		opts.Cooldown = CooldownPreserve
	}
	if opts.ErrorRateWindow <= 0 {
		opts.ErrorRateWindow = DefaultErrorRateWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}

	switch opts.Resolution {
	case ResolveOnAnyUp, ResolveStrict:
	default:
		return nil, errors.Newf("unknown resolution mode %q", opts.Resolution).
			Component("alerting").
			Category(errors.CategoryConfiguration).
			Build()
	}
	switch opts.Cooldown {
	case CooldownPreserve, CooldownSupersede:
	default:
		return nil, errors.Newf("unknown cooldown policy %q", opts.Cooldown).
			Component("alerting").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Evaluator{
		rules:    rules,
		checks:   checks,
		alerts:   alerts,
		notifier: notifier,
		opts:     opts,
		log:      log.Module("alerting"),
	}, nil
}

// Evaluate runs every active rule of svc against hc. A failing rule does not
// stop the remaining rules; their errors are joined.
func (e *Evaluator) Evaluate(ctx context.Context, svc *entities.MonitoredService, hc *entities.HealthCheck) error {
	mu := e.lockFor(svc.ID)
	mu.Lock()
	defer mu.Unlock()

	rules, err := e.rules.ListActiveForService(ctx, svc.ID)
	if err != nil {
		return errors.New(err).
			Component("alerting").
			Category(errors.CategoryDatabase).
			Context("service_id", svc.ID).
			Context("operation", "list_rules").
			Build()
	}

	now := e.opts.Clock()
	var errs []error
	for i := range rules {
		rule := &rules[i]
		if err := e.evaluateRule(ctx, svc, hc, rule, now); err != nil {
			e.log.Error("alert rule evaluation failed",
				logger.Uint64("service_id", uint64(svc.ID)),
				logger.Uint64("rule_id", uint64(rule.ID)),
				logger.String("rule_type", string(rule.RuleType)),
				logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Evaluator) lockFor(serviceID uint) *sync.Mutex {
	mu, _ := e.serviceLocks.LoadOrStore(serviceID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (e *Evaluator) conditionFor(rule *entities.AlertRule) (Condition, error) {
	cond, err := ConditionFor(rule)
	if err != nil {
		return nil, err
	}
	if er, ok := cond.(ErrorRate); ok {
		er.Window = e.opts.ErrorRateWindow
		cond = er
	}
	return cond, nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, svc *entities.MonitoredService, hc *entities.HealthCheck, rule *entities.AlertRule, now time.Time) error {
	cond, err := e.conditionFor(rule)
	if err != nil {
		return errors.New(err).
			Component("alerting").
			Category(errors.CategoryValidation).
			Context("rule_id", rule.ID).
			Build()
	}

	verdict, err := cond.Evaluate(ctx, Input{Service: svc, Check: hc, Now: now}, e.checks)
	if err != nil {
		return errors.New(err).
			Component("alerting").
			Category(errors.CategoryEvaluation).
			Context("rule_id", rule.ID).
			Context("rule_type", string(rule.RuleType)).
			Build()
	}

	if verdict.Trigger {
		return e.trigger(ctx, svc, hc, rule, verdict, now)
	}
	if e.shouldResolve(hc, verdict) {
		return e.resolve(ctx, svc, rule, now)
	}
	return nil
}

func (e *Evaluator) shouldResolve(hc *entities.HealthCheck, v Verdict) bool {
	if e.opts.Resolution == ResolveStrict {
		return v.Cleared
	}
	return hc.Status == entities.StatusUp
}

// trigger opens a new alert unless the newest open alert is still in cooldown.
func (e *Evaluator) trigger(ctx context.Context, svc *entities.MonitoredService, hc *entities.HealthCheck, rule *entities.AlertRule, v Verdict, now time.Time) error {
	active, err := e.alerts.ListActiveByRule(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to load active alerts for rule %d: %w", rule.ID, err)
	}
	if len(active) > 0 && now.Before(active[0].TriggeredAt.Add(rule.Cooldown())) {
		e.log.Debug("alert in cooldown",
			logger.String("rule", rule.Name),
			logger.Uint64("alert_id", uint64(active[0].ID)),
			logger.Time("cooldown_until", active[0].TriggeredAt.Add(rule.Cooldown())))
		e.opts.Metrics.RecordAlert(string(rule.RuleType), ActionSuppressed)
		return nil
	}

	alert := &entities.AlertHistory{
		RuleID:      rule.ID,
		ServiceID:   svc.ID,
		AlertType:   rule.RuleType,
		Message:     BuildMessage(svc, hc, rule, v),
		TriggeredAt: now,
	}

	if e.opts.Cooldown == CooldownSupersede && len(active) > 0 {
		ids := alertIDs(active)
		if err := e.alerts.Supersede(ctx, ids, now, alert); err != nil {
			return fmt.Errorf("failed to supersede alerts for rule %d: %w", rule.ID, err)
		}
		e.log.Info("superseded open alerts",
			logger.String("rule", rule.Name),
			logger.Int("count", len(ids)))
		e.opts.Metrics.RecordAlert(string(rule.RuleType), ActionSuperseded)
	} else if err := e.alerts.SaveAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to save alert for rule %d: %w", rule.ID, err)
	}

	e.log.Warn("alert triggered",
		logger.String("rule", rule.Name),
		logger.String("service", svc.Name),
		logger.Uint64("alert_id", uint64(alert.ID)),
		logger.String("message", alert.Message))
	e.opts.Metrics.RecordAlert(string(rule.RuleType), ActionTriggered)
	e.publish(events.KindAlertTriggered, svc, rule, alert)

	alert.Rule = *rule
	alert.Service = *svc
	return e.notifyAlert(ctx, alert, rule)
}

// notifyAlert never propagates delivery failures; the row simply stays
// NotificationSent=false.
func (e *Evaluator) notifyAlert(ctx context.Context, alert *entities.AlertHistory, rule *entities.AlertRule) error {
	if err := e.notifier.SendAlert(ctx, alert, rule.Recipients()); err != nil {
		e.log.Error("failed to send alert notification",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.Error(err))
		e.opts.Metrics.RecordNotification(NotifyAlert, false)
		return nil
	}
	e.opts.Metrics.RecordNotification(NotifyAlert, true)

	sentAt := e.opts.Clock()
	if err := e.alerts.MarkNotified(ctx, alert.ID, sentAt); err != nil {
		return fmt.Errorf("failed to record notification for alert %d: %w", alert.ID, err)
	}
	alert.NotificationSent = true
	alert.NotificationSentAt = &sentAt
	return nil
}

// resolve closes every open alert of the rule and notifies once, for the newest.
func (e *Evaluator) resolve(ctx context.Context, svc *entities.MonitoredService, rule *entities.AlertRule, now time.Time) error {
	active, err := e.alerts.ListActiveByRule(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to load active alerts for rule %d: %w", rule.ID, err)
	}
	if len(active) == 0 {
		return nil
	}

	if _, err := e.alerts.Resolve(ctx, alertIDs(active), now); err != nil {
		return fmt.Errorf("failed to resolve alerts for rule %d: %w", rule.ID, err)
	}

	newest := active[0]
	newest.ResolvedAt = &now
	newest.Rule = *rule
	newest.Service = *svc

	e.log.Info("alert resolved",
		logger.String("rule", rule.Name),
		logger.String("service", svc.Name),
		logger.Uint64("alert_id", uint64(newest.ID)),
		logger.Int("closed", len(active)))
	e.opts.Metrics.RecordAlert(string(rule.RuleType), ActionResolved)
	e.publish(events.KindAlertResolved, svc, rule, &newest)

	if err := e.notifier.SendResolution(ctx, &newest, rule.Recipients()); err != nil {
		e.log.Error("failed to send resolution notification",
			logger.Uint64("alert_id", uint64(newest.ID)),
			logger.Error(err))
		e.opts.Metrics.RecordNotification(NotifyResolution, false)
		return nil
	}
	e.opts.Metrics.RecordNotification(NotifyResolution, true)
	return nil
}

func (e *Evaluator) publish(kind events.Kind, svc *entities.MonitoredService, rule *entities.AlertRule, alert *entities.AlertHistory) {
	if e.opts.Events == nil {
		return
	}
	e.opts.Events.Publish(&events.Event{
		Kind:        kind,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		RuleID:      rule.ID,
		AlertID:     alert.ID,
		Message:     alert.Message,
		Data:        map[string]any{"rule_type": string(rule.RuleType)},
		Timestamp:   e.opts.Clock(),
	})
}

func alertIDs(alerts []entities.AlertHistory) []uint {
	ids := make([]uint, len(alerts))
	for i := range alerts {
		ids[i] = alerts[i].ID
	}
	return ids
}
