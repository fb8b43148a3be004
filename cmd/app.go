package cmd

import (
	"context"
	"net/http"

	"github.com/loghealer/healthmon/internal/alerting"
	"github.com/loghealer/healthmon/internal/api"
	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/datastore"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/events"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/monitor"
	"github.com/loghealer/healthmon/internal/notification"
	"github.com/loghealer/healthmon/internal/observability/metrics"
)

// app is the fully wired engine.
type app struct {
	settings *conf.Settings
	log      logger.Logger

	store    *datastore.Store
	services repository.ServiceRepository
	checks   repository.HealthCheckRepository
	rules    repository.AlertRuleRepository
	history  repository.AlertHistoryRepository

	bus       *events.Bus
	metrics   *metrics.Metrics
	notifier  *notification.Service
	ruleCache api.RuleCacheInvalidator
	evaluator *alerting.Evaluator
	checker   *monitor.Checker
	retention *monitor.RetentionJob
}

// buildApp opens the database and wires every component. The caller must
// Close the result.
func buildApp(ctx context.Context, settings *conf.Settings, log logger.Logger) (*app, error) {
	store, err := datastore.Open(ctx, settings.Database, log)
	if err != nil {
		return nil, err
	}
	a := &app{
		settings: settings,
		log:      log,
		store:    store,
		services: repository.NewServiceRepository(store.DB()),
		checks:   repository.NewHealthCheckRepository(store.DB()),
		rules:    repository.NewAlertRuleRepository(store.DB()),
		history:  repository.NewAlertHistoryRepository(store.DB()),
		bus:      events.NewBus(events.DefaultBufferSize, log),
	}
	if settings.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	notifier, err := notification.NewServiceFromSettings(&settings.Notification, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := notification.SetService(notifier); err != nil {
		log.Debug("notification service already installed", logger.Error(err))
	}
	a.notifier = notifier

	var ruleSource alerting.RuleSource = a.rules
	if ttl := settings.Alerting.RuleCacheTTL.Std(); ttl > 0 {
		cached := alerting.NewCachedRuleSource(a.rules, ttl)
		if inv, ok := cached.(api.RuleCacheInvalidator); ok {
			a.ruleCache = inv
		}
		ruleSource = cached
	}

	a.evaluator, err = alerting.NewEvaluator(ruleSource, a.checks, a.history, notifier, alerting.Options{
		Resolution:      alerting.ResolutionMode(settings.Alerting.ResolutionMode),
		Cooldown:        alerting.CooldownPolicy(settings.Alerting.CooldownPolicy),
		ErrorRateWindow: settings.Alerting.ErrorRateWindow.Std(),
		Metrics:         a.metrics,
		Events:          a.bus,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	prober := monitor.NewHTTPProber(&http.Client{}, settings.Monitoring.UserAgent)
	a.checker = monitor.NewChecker(prober, a.checks, a.evaluator, log,
		monitor.WithMetrics(a.metrics),
		monitor.WithEvents(a.bus))

	a.retention = monitor.NewRetentionJob(a.checks, a.history, monitor.RetentionPolicy{
		HealthCheckMaxAge:  settings.Retention.HealthCheckHorizon(),
		AlertHistoryMaxAge: settings.Retention.AlertHistoryHorizon(),
	}, log, a.metrics, a.bus)
	return a, nil
}

func (a *app) newScheduler() (*monitor.Scheduler, error) {
	return monitor.NewScheduler(a.services, a.checker, monitor.SchedulerConfig{
		Interval:             a.settings.Monitoring.CheckInterval.Std(),
		PoolSize:             a.settings.Monitoring.WorkerPoolSize,
		ShutdownGrace:        a.settings.Monitoring.ShutdownGrace.Std(),
		HonorServiceInterval: a.settings.Monitoring.HonorServiceInterval,
	}, a.log, a.metrics, a.bus)
}

func (a *app) newAPIServer(hub *api.Hub) *api.Server {
	return api.NewServer(&a.settings.API, &api.Dependencies{
		Services:  a.services,
		Checks:    a.checks,
		Rules:     a.rules,
		History:   a.history,
		Checker:   a.checker,
		RuleCache: a.ruleCache,
		Metrics:   a.metrics,
		Hub:       hub,
	}, a.log)
}

// Close stops the event bus and releases connections.
func (a *app) Close() {
	if a.bus != nil {
		a.bus.Stop()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close database", logger.Error(err))
		}
	}
}

// logEvents mirrors alert lifecycle events into the log at debug level.
func (a *app) logEvents() {
	log := a.log.Module("events")
	a.bus.Subscribe(func(e *events.Event) {
		if e.Kind == events.KindHealthCheck {
			return
		}
		log.Debug("engine event",
			logger.String("kind", string(e.Kind)),
			logger.String("service", e.ServiceName),
			logger.Uint64("alert_id", uint64(e.AlertID)),
			logger.Time("at", e.Timestamp))
	})
}
