// Package monitor probes registered services on a schedule, classifies and
// stores each result, and hands it to the alert evaluator.
package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
)

// maxDrainBytes bounds how much of a health response body is read before closing.
const maxDrainBytes = 64 << 10

// DefaultUserAgent is sent with every probe unless configured otherwise.
const DefaultUserAgent = "healthmon/1.0"

// Outcome is the raw result of one probe. A nil StatusCode means no HTTP
// response was received.
type Outcome struct {
	StatusCode     *int
	ResponseTimeMs int
	ErrorMessage   string
}

// Prober performs a single health probe. Failures are reported in the
// Outcome, never as errors.
type Prober interface {
	Probe(ctx context.Context, svc *entities.MonitoredService) Outcome
}

// HTTPProber issues a GET against the service's health URL.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

// NewHTTPProber creates a prober. A nil client uses a dedicated client with
// default transport settings; timeouts come from each service.
func NewHTTPProber(client *http.Client, userAgent string) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPProber{client: client, userAgent: userAgent}
}

// Probe sends one GET bounded by the service timeout. Latency runs from
// request start until response headers arrive or the request fails.
func (p *HTTPProber) Probe(ctx context.Context, svc *entities.MonitoredService) Outcome {
	timeout := svc.Timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.HealthURL(), http.NoBody)
	if err != nil {
		return Outcome{ErrorMessage: fmt.Sprintf("invalid health url: %v", err)}
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := p.client.Do(req)
	elapsed := int(time.Since(start).Milliseconds())
	if err != nil {
		return Outcome{ResponseTimeMs: elapsed, ErrorMessage: describeError(err, timeout)}
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)

	code := resp.StatusCode
	out := Outcome{StatusCode: &code, ResponseTimeMs: elapsed}
	if code < 200 || code >= 300 {
		out.ErrorMessage = fmt.Sprintf("unexpected status: %d %s", code, http.StatusText(code))
	}
	return out
}

func describeError(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timeout after %dms", timeout.Milliseconds())
	}
	if errors.Is(err, context.Canceled) {
		return "probe cancelled"
	}
	return err.Error()
}
