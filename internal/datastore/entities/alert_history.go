package entities

import "time"

// AlertHistory records one triggered alert and, once resolved, when it cleared.
// A nil ResolvedAt means the alert is still active.
type AlertHistory struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	RuleID             uint             `gorm:"not null;index:idx_alert_history_rule_open,priority:1" json:"rule_id"`
	ServiceID          uint             `gorm:"not null;index" json:"service_id"`
	AlertType          AlertRuleType    `gorm:"size:50;not null" json:"alert_type"`
	Message            string           `gorm:"type:text;not null" json:"message"`
	TriggeredAt        time.Time        `gorm:"not null;index" json:"triggered_at"`
	ResolvedAt         *time.Time       `gorm:"index:idx_alert_history_rule_open,priority:2" json:"resolved_at"`
	NotificationSent   bool             `gorm:"not null;default:false" json:"notification_sent"`
	NotificationSentAt *time.Time       `json:"notification_sent_at"`
	Rule               AlertRule        `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"rule,omitzero"`
	Service            MonitoredService `gorm:"foreignKey:ServiceID;constraint:OnDelete:CASCADE" json:"service,omitzero"`
}

// TableName returns the table name for GORM.
func (AlertHistory) TableName() string {
	return "alert_history"
}

// IsResolved reports whether the alert has cleared.
func (h *AlertHistory) IsResolved() bool {
	return h.ResolvedAt != nil
}
