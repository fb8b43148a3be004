package monitor

import (
	"context"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/events"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/observability/metrics"
)

// CheckStore appends probe results.
type CheckStore interface {
	Append(ctx context.Context, hc *entities.HealthCheck) error
}

// AlertEvaluator evaluates a fresh check against the service's rules.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, svc *entities.MonitoredService, hc *entities.HealthCheck) error
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithClock overrides the time source used for CheckedAt.
func WithClock(clock func() time.Time) CheckerOption {
	return func(c *Checker) { c.clock = clock }
}

// WithMetrics records every check in m.
func WithMetrics(m *metrics.Metrics) CheckerOption {
	return func(c *Checker) { c.metrics = m }
}

// WithEvents publishes a health_check event per stored result.
func WithEvents(p events.Publisher) CheckerOption {
	return func(c *Checker) { c.events = p }
}

// Checker runs the per-service pipeline: probe, classify, append, evaluate.
// The scheduler and the manual check-now path share it.
type Checker struct {
	prober    Prober
	store     CheckStore
	evaluator AlertEvaluator
	clock     func() time.Time
	metrics   *metrics.Metrics
	events    events.Publisher
	log       logger.Logger
}

// NewChecker creates a Checker.
func NewChecker(prober Prober, store CheckStore, evaluator AlertEvaluator, log logger.Logger, opts ...CheckerOption) *Checker {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Checker{
		prober:    prober,
		store:     store,
		evaluator: evaluator,
		clock:     time.Now,
		log:       log.Module("checker"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PerformHealthCheck probes svc, stores the classified result and evaluates
// alert rules. When evaluation fails the stored check is still returned
// together with the error.
func (c *Checker) PerformHealthCheck(ctx context.Context, svc *entities.MonitoredService) (*entities.HealthCheck, error) {
	outcome := c.prober.Probe(ctx, svc)
	status := Classify(outcome, svc.EffectiveTimeoutMs())

	ms := outcome.ResponseTimeMs
	hc := &entities.HealthCheck{
		ServiceID:      svc.ID,
		Status:         status,
		ResponseTimeMs: &ms,
		StatusCode:     outcome.StatusCode,
		CheckedAt:      c.clock(),
	}
	if outcome.ErrorMessage != "" {
		msg := outcome.ErrorMessage
		hc.ErrorMessage = &msg
	}

	if err := c.store.Append(ctx, hc); err != nil {
		return nil, errors.New(err).
			Component("monitor").
			Category(errors.CategoryDatabase).
			Context("service_id", svc.ID).
			Context("operation", "append_health_check").
			Build()
	}

	c.metrics.RecordCheck(svc.Name, string(status), time.Duration(outcome.ResponseTimeMs)*time.Millisecond)
	if c.events != nil {
		c.events.Publish(&events.Event{
			Kind:        events.KindHealthCheck,
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Status:      string(status),
			Message:     outcome.ErrorMessage,
			Data:        map[string]any{"response_time_ms": outcome.ResponseTimeMs, "check_id": hc.ID},
			Timestamp:   hc.CheckedAt,
		})
	}

	c.log.Debug("health check recorded",
		logger.String("service", svc.Name),
		logger.String("status", string(status)),
		logger.Int("response_time_ms", outcome.ResponseTimeMs))

	if c.evaluator == nil {
		return hc, nil
	}
	if err := c.evaluator.Evaluate(ctx, svc, hc); err != nil {
		return hc, err
	}
	return hc, nil
}
