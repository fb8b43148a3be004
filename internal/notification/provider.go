package notification

import (
	"context"

	"github.com/loghealer/healthmon/internal/logger"
)

// Provider delivers a rendered notification to one destination.
type Provider interface {
	GetName() string
	IsEnabled() bool
	ValidateConfig() error
	Send(ctx context.Context, n *Notification) error
}

// LogProvider writes notifications to the log. It is the fallback when no
// other destination is configured.
type LogProvider struct {
	log logger.Logger
}

// NewLogProvider creates a LogProvider.
func NewLogProvider(log logger.Logger) *LogProvider {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogProvider{log: log.Module("notification")}
}

func (p *LogProvider) GetName() string       { return "log" }
func (p *LogProvider) IsEnabled() bool       { return true }
func (p *LogProvider) ValidateConfig() error { return nil }

func (p *LogProvider) Send(_ context.Context, n *Notification) error {
	p.log.Warn(n.Subject,
		logger.String("kind", string(n.Kind)),
		logger.Uint64("alert_id", uint64(n.AlertID)),
		logger.Any("recipients", n.Recipients),
		logger.String("message", n.Message))
	return nil
}
