package monitor

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/events"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/observability/metrics"
	"golang.org/x/sync/semaphore"
)

// Scheduler defaults.
const (
	DefaultInterval      = 30 * time.Second
	DefaultPoolSize      = 10
	DefaultShutdownGrace = 10 * time.Second
)

// ServiceRegistry lists the services to probe on each tick.
type ServiceRegistry interface {
	ListActive(ctx context.Context) ([]entities.MonitoredService, error)
}

// HealthChecker runs the pipeline for one service.
type HealthChecker interface {
	PerformHealthCheck(ctx context.Context, svc *entities.MonitoredService) (*entities.HealthCheck, error)
}

// SchedulerConfig controls tick cadence and fan-out.
type SchedulerConfig struct {
	Interval time.Duration
	PoolSize int
	// ShutdownGrace is how long in-flight tasks may keep running after the
	// run context is cancelled before their own context is cancelled.
	ShutdownGrace time.Duration
	// HonorServiceInterval dispatches a service only once its own
	// CheckIntervalSec has elapsed since its previous dispatch.
	HonorServiceInterval bool
	Clock                func() time.Time
}

// TaskContext identifies one service's pipeline run within a tick. It is
// passed by value; the service is a snapshot taken at the start of the tick.
type TaskContext struct {
	TickID  string
	TaskID  string
	Service entities.MonitoredService
}

// TickReport summarises one tick.
type TickReport struct {
	TickID     string
	StartedAt  time.Time
	Duration   time.Duration
	Services   int
	Dispatched int
	Succeeded  int
	Failed     int
	Skipped    int
	NotDue     int
}

// Scheduler probes every active service once per tick on a bounded pool.
type Scheduler struct {
	registry ServiceRegistry
	checker  HealthChecker
	cfg      SchedulerConfig
	metrics  *metrics.Metrics
	events   events.Publisher
	log      logger.Logger

	// pool caps concurrent tasks across overlapping ticks.
	pool *semaphore.Weighted

	mu           sync.Mutex
	inFlight     map[uint]struct{}
	lastDispatch map[uint]time.Time

	ticks sync.WaitGroup
}

// NewScheduler validates cfg and creates a Scheduler.
func NewScheduler(registry ServiceRegistry, checker HealthChecker, cfg SchedulerConfig, log logger.Logger, m *metrics.Metrics, pub events.Publisher) (*Scheduler, error) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Interval < 0 {
		return nil, errors.Newf("scheduler interval must be positive, got %s", cfg.Interval).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.PoolSize <= 0 {
		return nil, errors.Newf("worker pool size must be positive, got %d", cfg.PoolSize).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		registry:     registry,
		checker:      checker,
		cfg:          cfg,
		metrics:      m,
		events:       pub,
		log:          log.Module("scheduler"),
		pool:         semaphore.NewWeighted(int64(cfg.PoolSize)),
		inFlight:     make(map[uint]struct{}),
		lastDispatch: make(map[uint]time.Time),
	}, nil
}

// Run ticks until ctx is cancelled. The first tick starts immediately. On
// cancellation no new ticks start; running tasks get ShutdownGrace to finish
// before their context is cancelled, and Run returns once they have unwound.
func (s *Scheduler) Run(ctx context.Context) error {
	taskCtx, hardStop := context.WithCancel(context.WithoutCancel(ctx))
	defer hardStop()

	s.log.Info("scheduler started",
		logger.Duration("interval", s.cfg.Interval),
		logger.Int("pool_size", s.cfg.PoolSize))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.startTick(taskCtx)
	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-ticker.C:
			s.startTick(taskCtx)
		}
	}

	done := make(chan struct{})
	go func() {
		s.ticks.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.Warn("shutdown grace elapsed, cancelling in-flight health checks",
			logger.Duration("grace", s.cfg.ShutdownGrace))
		hardStop()
		<-done
	}
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) startTick(ctx context.Context) {
	s.ticks.Add(1)
	go func() {
		defer s.ticks.Done()
		s.RunTick(ctx)
	}()
}

// RunTick snapshots the active services, dispatches one task per service and
// waits for all of them.
func (s *Scheduler) RunTick(ctx context.Context) TickReport {
	report := TickReport{TickID: uuid.NewString(), StartedAt: s.cfg.Clock()}
	started := time.Now()
	log := s.log.With(logger.String("tick_id", report.TickID))

	services, err := s.registry.ListActive(ctx)
	if err != nil {
		log.Error("failed to list active services", logger.Error(err))
		return report
	}
	report.Services = len(services)
	if len(services) == 0 {
		log.Debug("no active services to check")
		return report
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		failed    atomic.Int32
	)

	for i := range services {
		svc := services[i]
		if !s.due(&svc, report.StartedAt) {
			report.NotDue++
			continue
		}
		if !s.claim(svc.ID) {
			report.Skipped++
			s.metrics.RecordTask(metrics.TaskSkipped)
			log.Debug("previous check still running, skipping",
				logger.Uint64("service_id", uint64(svc.ID)),
				logger.String("service", svc.Name))
			continue
		}
		if err := s.pool.Acquire(ctx, 1); err != nil {
			s.release(svc.ID)
			report.Skipped++
			s.metrics.RecordTask(metrics.TaskSkipped)
			continue
		}

		tc := TaskContext{TickID: report.TickID, TaskID: uuid.NewString(), Service: svc}
		s.markDispatched(svc.ID, report.StartedAt)
		report.Dispatched++
		wg.Go(func() {
			defer s.pool.Release(1)
			defer s.release(tc.Service.ID)
			if s.runTask(ctx, tc) {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		})
	}
	wg.Wait()

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	report.Duration = time.Since(started)
	s.metrics.RecordTick(report.Duration)

	if s.events != nil {
		s.events.Publish(&events.Event{
			Kind: events.KindTickCompleted,
			Data: map[string]any{
				"tick_id":    report.TickID,
				"dispatched": report.Dispatched,
				"failed":     report.Failed,
				"skipped":    report.Skipped,
			},
		})
	}
	log.Info("health check tick completed",
		logger.Int("services", report.Services),
		logger.Int("dispatched", report.Dispatched),
		logger.Int("failed", report.Failed),
		logger.Int("skipped", report.Skipped),
		logger.Duration("duration", report.Duration))
	return report
}

// runTask executes one pipeline run. Errors and panics are contained here so
// sibling tasks and the tick are unaffected.
func (s *Scheduler) runTask(ctx context.Context, tc TaskContext) (ok bool) {
	log := s.log.With(
		logger.String("tick_id", tc.TickID),
		logger.String("task_id", tc.TaskID),
		logger.String("service", tc.Service.Name))

	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.metrics.RecordTask(metrics.TaskPanic)
			err := errors.Newf("health check task panicked: %v", r).
				Component("scheduler").
				Category(errors.CategorySystem).
				Context("service_id", tc.Service.ID).
				Context("task_id", tc.TaskID).
				Build()
			log.Error("health check task panicked",
				logger.Error(err),
				logger.String("stack", string(debug.Stack())))
		}
	}()

	hc, err := s.checker.PerformHealthCheck(ctx, &tc.Service)
	if err != nil {
		s.metrics.RecordTask(metrics.TaskFailed)
		log.Error("health check task failed", logger.Error(err))
		return false
	}
	s.metrics.RecordTask(metrics.TaskOK)
	log.Debug("health check task completed", logger.String("status", string(hc.Status)))
	return true
}

func (s *Scheduler) claim(serviceID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[serviceID]; busy {
		return false
	}
	s.inFlight[serviceID] = struct{}{}
	return true
}

func (s *Scheduler) release(serviceID uint) {
	s.mu.Lock()
	delete(s.inFlight, serviceID)
	s.mu.Unlock()
}

func (s *Scheduler) markDispatched(serviceID uint, at time.Time) {
	s.mu.Lock()
	s.lastDispatch[serviceID] = at
	s.mu.Unlock()
}

// due reports whether svc should be probed this tick. Half a tick of slack
// absorbs ticker jitter so a service whose interval equals the tick period is
// never skipped.
func (s *Scheduler) due(svc *entities.MonitoredService, now time.Time) bool {
	if !s.cfg.HonorServiceInterval {
		return true
	}
	s.mu.Lock()
	last, seen := s.lastDispatch[svc.ID]
	s.mu.Unlock()
	if !seen {
		return true
	}
	return now.Sub(last)+s.cfg.Interval/2 >= svc.CheckInterval()
}

