package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/events"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/observability/metrics"
	"github.com/robfig/cron/v3"
)

// Retention defaults.
const (
	DefaultRetentionSchedule = "0 3 * * *"
	DefaultHealthCheckMaxAge = 30 * 24 * time.Hour
	DefaultRetentionTimeout  = 5 * time.Minute
)

// HealthCheckPruner deletes old probe results.
type HealthCheckPruner interface {
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}

// AlertHistoryPruner deletes old resolved alerts.
type AlertHistoryPruner interface {
	DeleteResolvedBefore(ctx context.Context, t time.Time) (int64, error)
}

// RetentionPolicy sets the horizons. A zero AlertHistoryMaxAge keeps alert
// history forever.
type RetentionPolicy struct {
	HealthCheckMaxAge  time.Duration
	AlertHistoryMaxAge time.Duration
}

// RetentionReport counts deleted rows.
type RetentionReport struct {
	HealthChecks int64
	Alerts       int64
}

// RetentionJob removes stale health checks and, optionally, old resolved alerts.
type RetentionJob struct {
	checks  HealthCheckPruner
	alerts  AlertHistoryPruner
	policy  RetentionPolicy
	clock   func() time.Time
	metrics *metrics.Metrics
	events  events.Publisher
	log     logger.Logger
}

// NewRetentionJob creates a RetentionJob. alerts may be nil when alert
// history retention is not wanted.
func NewRetentionJob(checks HealthCheckPruner, alerts AlertHistoryPruner, policy RetentionPolicy, log logger.Logger, m *metrics.Metrics, pub events.Publisher) *RetentionJob {
	if policy.HealthCheckMaxAge <= 0 {
		policy.HealthCheckMaxAge = DefaultHealthCheckMaxAge
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RetentionJob{
		checks:  checks,
		alerts:  alerts,
		policy:  policy,
		clock:   time.Now,
		metrics: m,
		events:  pub,
		log:     log.Module("retention"),
	}
}

// SetClock overrides the time source. Used by tests.
func (j *RetentionJob) SetClock(clock func() time.Time) {
	j.clock = clock
}

// Run performs one sweep. Running it twice in a row deletes nothing the
// second time.
func (j *RetentionJob) Run(ctx context.Context) (RetentionReport, error) {
	var report RetentionReport
	now := j.clock()

	cutoff := now.Add(-j.policy.HealthCheckMaxAge)
	deleted, err := j.checks.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return report, errors.New(err).
			Component("retention").
			Category(errors.CategoryDatabase).
			Context("table", "health_checks").
			Context("cutoff", cutoff).
			Build()
	}
	report.HealthChecks = deleted
	j.metrics.RecordRetention("health_checks", deleted)
	j.log.Info("cleaned up old health check records",
		logger.Int64("deleted", deleted),
		logger.Time("cutoff", cutoff))

	if j.alerts != nil && j.policy.AlertHistoryMaxAge > 0 {
		alertCutoff := now.Add(-j.policy.AlertHistoryMaxAge)
		deleted, err := j.alerts.DeleteResolvedBefore(ctx, alertCutoff)
		if err != nil {
			return report, errors.New(err).
				Component("retention").
				Category(errors.CategoryDatabase).
				Context("table", "alert_history").
				Context("cutoff", alertCutoff).
				Build()
		}
		report.Alerts = deleted
		j.metrics.RecordRetention("alert_history", deleted)
		j.log.Info("cleaned up resolved alert history",
			logger.Int64("deleted", deleted),
			logger.Time("cutoff", alertCutoff))
	}

	if j.events != nil {
		j.events.Publish(&events.Event{
			Kind: events.KindRetentionSweep,
			Data: map[string]any{"health_checks": report.HealthChecks, "alerts": report.Alerts},
		})
	}
	return report, nil
}

// RetentionSchedule runs a RetentionJob on a cron expression.
type RetentionSchedule struct {
	cron *cron.Cron
	job  *RetentionJob
	log  logger.Logger
}

// NewRetentionSchedule registers job under the standard five-field spec.
// Overlapping runs are skipped and panics are recovered by the cron chain.
func NewRetentionSchedule(job *RetentionJob, spec string, timeout time.Duration, log logger.Logger) (*RetentionSchedule, error) {
	if spec == "" {
		spec = DefaultRetentionSchedule
	}
	if timeout <= 0 {
		timeout = DefaultRetentionTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Module("retention")

	cl := cronLogger{log: log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := job.Run(ctx); err != nil {
			log.Error("retention sweep failed", logger.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	return &RetentionSchedule{cron: c, job: job, log: log}, nil
}

// Start begins the cron loop in the background.
func (r *RetentionSchedule) Start() {
	r.cron.Start()
	entries := r.cron.Entries()
	if len(entries) > 0 {
		r.log.Info("retention scheduled", logger.Time("next_run", entries[0].Next))
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *RetentionSchedule) Stop() {
	<-r.cron.Stop().Done()
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
