package alerting

import (
	"context"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// RuleSource lists the active rules of a service.
type RuleSource interface {
	ListActiveForService(ctx context.Context, serviceID uint) ([]entities.AlertRule, error)
}

// HistoryReader is the read side of the health-check store used by conditions.
type HistoryReader interface {
	Recent(ctx context.Context, serviceID uint, n int) ([]entities.HealthCheck, error)
	Since(ctx context.Context, serviceID uint, t time.Time) ([]entities.HealthCheck, error)
}

// AlertStore persists alert lifecycle rows.
type AlertStore interface {
	ListActiveByRule(ctx context.Context, ruleID uint) ([]entities.AlertHistory, error)
	SaveAlert(ctx context.Context, alert *entities.AlertHistory) error
	Supersede(ctx context.Context, resolveIDs []uint, at time.Time, alert *entities.AlertHistory) error
	MarkNotified(ctx context.Context, id uint, at time.Time) error
	Resolve(ctx context.Context, ids []uint, at time.Time) (int64, error)
}

// NotificationPort delivers alert and resolution notices. The alert passed in
// has its Rule and Service associations populated.
type NotificationPort interface {
	SendAlert(ctx context.Context, alert *entities.AlertHistory, recipients []string) error
	SendResolution(ctx context.Context, alert *entities.AlertHistory, recipients []string) error
}
