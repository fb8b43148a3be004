package entities

import (
	"strings"
	"time"
)

// Defaults applied to new services.
const (
	DefaultCheckIntervalSec = 30
	DefaultTimeoutMs        = 5000
)

// MonitoredService is an external endpoint whose health is probed periodically.
// The engine treats it as read-only configuration.
type MonitoredService struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Description      string    `gorm:"size:500;default:''" json:"description"`
	URL              string    `gorm:"size:500;not null" json:"url"`
	HealthEndpoint   string    `gorm:"size:200;not null" json:"health_endpoint"`
	CheckIntervalSec int       `gorm:"not null;default:30" json:"check_interval_sec"`
	TimeoutMs        int       `gorm:"not null;default:5000" json:"timeout_ms"`
	Active           bool      `gorm:"not null;index" json:"active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (MonitoredService) TableName() string {
	return "monitored_services"
}

// HealthURL joins the base URL and the health endpoint with exactly one slash.
func (s *MonitoredService) HealthURL() string {
	base := strings.TrimSuffix(s.URL, "/")
	endpoint := s.HealthEndpoint
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Timeout returns the probe timeout, falling back to the default for unset values.
func (s *MonitoredService) Timeout() time.Duration {
	return time.Duration(s.EffectiveTimeoutMs()) * time.Millisecond
}

// EffectiveTimeoutMs returns TimeoutMs or the default when it is not positive.
func (s *MonitoredService) EffectiveTimeoutMs() int {
	if s.TimeoutMs <= 0 {
		return DefaultTimeoutMs
	}
	return s.TimeoutMs
}

// CheckInterval returns the service's own polling interval.
func (s *MonitoredService) CheckInterval() time.Duration {
	if s.CheckIntervalSec <= 0 {
		return DefaultCheckIntervalSec * time.Second
	}
	return time.Duration(s.CheckIntervalSec) * time.Second
}
