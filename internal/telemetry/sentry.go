// Package telemetry wires error reporting to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/errors"
)

// flushTimeout bounds how long Flush waits for queued events.
const flushTimeout = 2 * time.Second

// InitSentry initialises the Sentry client and installs it as the error reporter.
// It is a no-op when Sentry is disabled in settings.
func InitSentry(settings conf.SentrySettings, release string) error {
	if !settings.Enabled {
		return nil
	}
	if settings.DSN == "" {
		return fmt.Errorf("sentry enabled but dsn is empty")
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		Release:          release,
		AttachStacktrace: true,
		SampleRate:       settings.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	errors.SetReporter(&SentryReporter{hub: sentry.CurrentHub()})
	return nil
}

// Flush waits for buffered events to be sent.
func Flush() {
	sentry.Flush(flushTimeout)
}

// SentryReporter forwards enhanced errors to a Sentry hub.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter creates a reporter bound to hub.
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

// Report implements errors.Reporter.
func (r *SentryReporter) Report(ee *errors.EnhancedError) {
	if r.hub == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.GetCategory()))
		if ctx := ee.GetContext(); len(ctx) > 0 {
			scope.SetContext("error_context", sentry.Context(ctx))
		}
		r.hub.CaptureException(ee)
	})
}
