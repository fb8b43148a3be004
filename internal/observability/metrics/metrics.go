// Package metrics exposes the engine's prometheus collectors.
//
// Every recording method is safe on a nil *Metrics so components can run with
// metrics disabled without nil checks at each call site.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "healthmon"

// Task outcomes recorded by the scheduler.
const (
	TaskOK      = "ok"
	TaskFailed  = "failed"
	TaskPanic   = "panic"
	TaskSkipped = "skipped"
)

// Metrics holds the engine collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	checks          *prometheus.CounterVec
	probeDuration   *prometheus.HistogramVec
	tasks           *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	ticks           prometheus.Counter
	alerts          *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	retentionRemove *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Health checks performed, by service and classified status.",
		}, []string{"service", "status"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall-clock latency of health probes.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_tasks_total",
			Help:      "Per-service scheduler tasks by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Time from tick start until every task of the tick finished.",
			Buckets:   prometheus.DefBuckets,
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Completed scheduler ticks.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert lifecycle transitions by rule type and action.",
		}, []string{"rule_type", "action"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by kind and result.",
		}, []string{"kind", "result"}),
		retentionRemove: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_rows_total",
			Help:      "Rows removed by the retention job.",
		}, []string{"table"}),
	}

	m.registry.MustRegister(
		m.checks,
		m.probeDuration,
		m.tasks,
		m.tickDuration,
		m.ticks,
		m.alerts,
		m.notifications,
		m.retentionRemove,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the engine collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordCheck(service, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(service, status).Inc()
	m.probeDuration.WithLabelValues(service).Observe(latency.Seconds())
}

func (m *Metrics) RecordTask(outcome string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// RecordAlert counts a lifecycle action: triggered, suppressed, superseded or resolved.
func (m *Metrics) RecordAlert(ruleType, action string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(ruleType, action).Inc()
}

func (m *Metrics) RecordNotification(kind string, ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) RecordRetention(table string, deleted int64) {
	if m == nil {
		return
	}
	m.retentionRemove.WithLabelValues(table).Add(float64(deleted))
}
