package entities

import (
	"strings"
	"time"
)

// AlertRuleType identifies how a rule is evaluated.
type AlertRuleType string

const (
	RuleTypeDowntime     AlertRuleType = "DOWNTIME"
	RuleTypeSlowResponse AlertRuleType = "SLOW_RESPONSE"
	RuleTypeErrorRate    AlertRuleType = "ERROR_RATE"
)

// Rule defaults.
const (
	DefaultConsecutiveFailures = 1
	DefaultCooldownMinutes     = 15
)

// AlertRule belongs to one service. ThresholdValue is milliseconds for
// slow-response rules and a percentage for error-rate rules; downtime rules
// ignore it.
type AlertRule struct {
	ID                  uint             `gorm:"primaryKey" json:"id"`
	ServiceID           uint             `gorm:"not null;index" json:"service_id"`
	Name                string           `gorm:"size:100;not null" json:"name"`
	RuleType            AlertRuleType    `gorm:"size:50;not null" json:"rule_type"`
	ThresholdValue      int              `gorm:"not null;default:0" json:"threshold_value"`
	ConsecutiveFailures int              `gorm:"not null;default:1" json:"consecutive_failures"`
	NotifyEmails        string           `gorm:"type:text;not null" json:"notify_emails"`
	CooldownMinutes     int              `gorm:"not null;default:15" json:"cooldown_minutes"`
	Active              bool             `gorm:"not null;index" json:"active"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	Service             MonitoredService `gorm:"foreignKey:ServiceID;constraint:OnDelete:CASCADE" json:"service,omitzero"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}

// Recipients splits NotifyEmails on commas, dropping blanks.
func (r *AlertRule) Recipients() []string {
	parts := strings.Split(r.NotifyEmails, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Cooldown returns the minimum time between triggers while an alert is open.
func (r *AlertRule) Cooldown() time.Duration {
	if r.CooldownMinutes < 0 {
		return 0
	}
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// WindowSize returns the consecutive-failure window, at least one check.
func (r *AlertRule) WindowSize() int {
	if r.ConsecutiveFailures < 1 {
		return DefaultConsecutiveFailures
	}
	return r.ConsecutiveFailures
}
