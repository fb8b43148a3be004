package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loghealer/healthmon/internal/errors"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// shoutrrrSender is the subset of the shoutrrr router the provider uses.
type shoutrrrSender interface {
	Send(message string, params *types.Params) []error
}

// ShoutrrrProvider sends notifications to shoutrrr service URLs.
type ShoutrrrProvider struct {
	name    string
	enabled bool
	urls    []string
	// withRecipients adds the rule recipients as smtp toaddresses.
	withRecipients bool
	timeout        time.Duration

	sender shoutrrrSender
}

// NewShoutrrrProvider creates a provider for urls. The sender is built by
// ValidateConfig.
func NewShoutrrrProvider(name string, enabled bool, urls []string, withRecipients bool, timeout time.Duration) *ShoutrrrProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ShoutrrrProvider{
		name:           name,
		enabled:        enabled,
		urls:           urls,
		withRecipients: withRecipients,
		timeout:        timeout,
	}
}

func (p *ShoutrrrProvider) GetName() string { return p.name }
func (p *ShoutrrrProvider) IsEnabled() bool { return p.enabled }

// ValidateConfig parses the URLs and prepares the sender.
func (p *ShoutrrrProvider) ValidateConfig() error {
	if !p.enabled {
		return nil
	}
	if len(p.urls) == 0 {
		return errors.Newf("provider %s: no service urls configured", p.name).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(p.urls...)
	if err != nil {
		return errors.New(fmt.Errorf("provider %s: invalid service url: %w", p.name, err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	p.sender = sender
	return nil
}

// Send delivers n. shoutrrr is not context aware, so the call runs in its own
// goroutine and Send returns when it finishes, the timeout elapses or ctx ends.
func (p *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	if p.sender == nil {
		if err := p.ValidateConfig(); err != nil {
			return err
		}
	}

	params := types.Params{"title": n.Subject}
	if p.withRecipients && len(n.Recipients) > 0 {
		params["subject"] = n.Subject
		params["toaddresses"] = strings.Join(n.Recipients, ",")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan []error, 1)
	go func() {
		done <- p.sender.Send(n.Text, &params)
	}()

	select {
	case errs := <-done:
		if err := errors.Join(compact(errs)...); err != nil {
			return fmt.Errorf("provider %s: %w", p.name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("provider %s: send aborted: %w", p.name, ctx.Err())
	}
}

func compact(errs []error) []error {
	out := errs[:0:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
