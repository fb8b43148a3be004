package entities

import "time"

// ServiceStatus is the classified health of a single probe.
type ServiceStatus string

const (
	StatusUp       ServiceStatus = "UP"
	StatusDegraded ServiceStatus = "DEGRADED"
	StatusDown     ServiceStatus = "DOWN"
	StatusUnknown  ServiceStatus = "UNKNOWN"
)

// IsFailing reports whether the status counts as a failure for downtime rules.
func (s ServiceStatus) IsFailing() bool {
	return s == StatusDown || s == StatusDegraded
}

// HealthCheck is one immutable probe result. Rows are only appended by the
// probe pipeline and only deleted by retention.
type HealthCheck struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ServiceID      uint          `gorm:"not null;index:idx_health_checks_service_checked,priority:1" json:"service_id"`
	Status         ServiceStatus `gorm:"size:20;not null" json:"status"`
	ResponseTimeMs *int          `json:"response_time_ms"`
	StatusCode     *int          `json:"status_code"`
	ErrorMessage   *string       `gorm:"type:text" json:"error_message"`
	CheckedAt      time.Time     `gorm:"not null;index;index:idx_health_checks_service_checked,priority:2" json:"checked_at"`
}

// TableName returns the table name for GORM.
func (HealthCheck) TableName() string {
	return "health_checks"
}
