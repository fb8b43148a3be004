// Package notification delivers alert and resolution notices through
// shoutrrr service URLs, an MQTT broker or the log.
package notification

import (
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// Kind distinguishes alert notices from resolution notices.
type Kind string

const (
	KindAlert      Kind = "alert"
	KindResolution Kind = "resolution"
)

// Notification is one rendered notice, ready for any provider.
type Notification struct {
	Kind        Kind
	AlertID     uint
	RuleID      uint
	AlertType   entities.AlertRuleType
	ServiceName string
	ServiceURL  string
	Subject     string
	Message     string
	HTML        string
	Text        string
	Recipients  []string
	TriggeredAt time.Time
	ResolvedAt  *time.Time
	Timestamp   time.Time
}

// NewNotification renders alert into a notice of the given kind.
func NewNotification(kind Kind, alert *entities.AlertHistory, recipients []string) (*Notification, error) {
	n := &Notification{
		Kind:        kind,
		AlertID:     alert.ID,
		RuleID:      alert.RuleID,
		AlertType:   alert.AlertType,
		Message:     alert.Message,
		Recipients:  recipients,
		TriggeredAt: alert.TriggeredAt,
		ResolvedAt:  alert.ResolvedAt,
		Timestamp:   time.Now(),
	}
	svc := alert.Service
	if svc.Name == "" {
		svc = alert.Rule.Service
	}
	n.ServiceName = svc.Name
	if svc.URL != "" {
		n.ServiceURL = svc.HealthURL()
	}
	n.Subject = Subject(kind, alert.AlertType, n.ServiceName)

	html, text, err := renderBody(n)
	if err != nil {
		return nil, err
	}
	n.HTML = html
	n.Text = text
	return n, nil
}
