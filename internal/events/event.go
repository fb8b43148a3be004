// Package events carries engine lifecycle events to in-process subscribers
// such as the websocket feed.
package events

import "time"

// Kind identifies what happened.
type Kind string

const (
	KindHealthCheck    Kind = "health_check"
	KindAlertTriggered Kind = "alert_triggered"
	KindAlertResolved  Kind = "alert_resolved"
	KindTickCompleted  Kind = "tick_completed"
	KindRetentionSweep Kind = "retention_sweep"
)

// Event is a single engine occurrence. Only the fields relevant to Kind are set.
type Event struct {
	Kind        Kind           `json:"kind"`
	ServiceID   uint           `json:"service_id,omitempty"`
	ServiceName string         `json:"service_name,omitempty"`
	RuleID      uint           `json:"rule_id,omitempty"`
	AlertID     uint           `json:"alert_id,omitempty"`
	Status      string         `json:"status,omitempty"`
	Message     string         `json:"message,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Handler processes events.
type Handler func(event *Event)

// Publisher is the write side of the bus, accepted by producers.
type Publisher interface {
	Publish(event *Event)
}
