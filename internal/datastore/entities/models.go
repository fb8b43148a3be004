// Package entities defines the gorm models persisted by healthmon.
package entities

// All returns every model for auto-migration, parents first.
func All() []any {
	return []any{
		&MonitoredService{},
		&HealthCheck{},
		&AlertRule{},
		&AlertHistory{},
	}
}
