package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/logger"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single provider delivery.
const DefaultTimeout = 30 * time.Second

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Enabled false turns every send into a logged no-op that reports success.
	Enabled bool
	// RateLimit is the number of notifications per second; 0 means unlimited.
	RateLimit float64
	Burst     int
	Timeout   time.Duration
	Providers []Provider
	Logger    logger.Logger
}

// Service renders alert notices and fans them out to the providers.
type Service struct {
	enabled   bool
	providers []Provider
	limiter   *rate.Limiter
	timeout   time.Duration
	log       logger.Logger
}

// NewService creates a Service from config.
func NewService(config *ServiceConfig) *Service {
	log := config.Logger
	if log == nil {
		log = logger.NewNop()
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		enabled:   config.Enabled,
		providers: config.Providers,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   timeout,
		log:       log.Module("notification"),
	}
}

// NewServiceFromSettings builds the providers described by settings. With no
// destination configured, notifications go to the log.
func NewServiceFromSettings(settings *conf.NotificationSettings, log logger.Logger) (*Service, error) {
	timeout := settings.Timeout.Std()
	var providers []Provider
	if len(settings.URLs) > 0 {
		providers = append(providers, NewShoutrrrProvider("shoutrrr", true, settings.URLs, false, timeout))
	}
	if settings.EmailURL != "" {
		providers = append(providers, NewShoutrrrProvider("email", true, []string{settings.EmailURL}, true, timeout))
	}
	if settings.MQTT.Enabled {
		providers = append(providers, NewMQTTProvider(settings.MQTT, timeout, log))
	}
	if len(providers) == 0 {
		providers = append(providers, NewLogProvider(log))
	}

	for _, p := range providers {
		if err := p.ValidateConfig(); err != nil {
			return nil, err
		}
	}
	return NewService(&ServiceConfig{
		Enabled:   settings.Enabled,
		RateLimit: settings.RateLimit,
		Burst:     settings.Burst,
		Timeout:   timeout,
		Providers: providers,
		Logger:    log,
	}), nil
}

// SendAlert sends the "[ALERT]" notice for alert.
func (s *Service) SendAlert(ctx context.Context, alert *entities.AlertHistory, recipients []string) error {
	return s.send(ctx, KindAlert, alert, recipients)
}

// SendResolution sends the "[RESOLVED]" notice for alert.
func (s *Service) SendResolution(ctx context.Context, alert *entities.AlertHistory, recipients []string) error {
	return s.send(ctx, KindResolution, alert, recipients)
}

// send succeeds when at least one provider delivered the notice. Partial
// failures are logged.
func (s *Service) send(ctx context.Context, kind Kind, alert *entities.AlertHistory, recipients []string) error {
	n, err := NewNotification(kind, alert, recipients)
	if err != nil {
		return s.notificationError(err, alert)
	}

	if !s.enabled {
		s.log.Info("notifications disabled, would send",
			logger.String("subject", n.Subject),
			logger.Any("recipients", recipients),
			logger.String("message", n.Message))
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return s.notificationError(fmt.Errorf("rate limiter: %w", err), alert)
	}

	var (
		errs      []error
		delivered int
	)
	for _, p := range s.providers {
		if !p.IsEnabled() {
			continue
		}
		if err := s.deliver(ctx, p, n); err != nil {
			s.log.Warn("notification provider failed",
				logger.String("provider", p.GetName()),
				logger.Uint64("alert_id", uint64(alert.ID)),
				logger.Error(err))
			errs = append(errs, err)
			continue
		}
		delivered++
	}

	if delivered == 0 && len(errs) > 0 {
		return s.notificationError(errors.Join(errs...), alert)
	}
	s.log.Info("notification sent",
		logger.String("subject", n.Subject),
		logger.Int("providers", delivered))
	return nil
}

func (s *Service) deliver(ctx context.Context, p Provider, n *Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return p.Send(ctx, n)
}

func (s *Service) notificationError(err error, alert *entities.AlertHistory) error {
	return errors.New(err).
		Component("notification").
		Category(errors.CategoryNotification).
		Context("alert_id", alert.ID).
		Context("alert_type", string(alert.AlertType)).
		Build()
}

// Close releases provider connections.
func (s *Service) Close() {
	for _, p := range s.providers {
		if c, ok := p.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
