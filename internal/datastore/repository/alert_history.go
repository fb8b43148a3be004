package repository

import (
	"context"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// AlertHistoryRepository persists alert lifecycle rows. Only the evaluator
// and the retention job write to it.
type AlertHistoryRepository interface {
	// ListActiveByRule returns the rule's unresolved rows, newest first.
	ListActiveByRule(ctx context.Context, ruleID uint) ([]entities.AlertHistory, error)
	SaveAlert(ctx context.Context, alert *entities.AlertHistory) error
	// Supersede resolves the given rows and inserts alert in one transaction.
	Supersede(ctx context.Context, resolveIDs []uint, at time.Time, alert *entities.AlertHistory) error
	MarkNotified(ctx context.Context, id uint, at time.Time) error
	Resolve(ctx context.Context, ids []uint, at time.Time) (int64, error)

	ListUnresolved(ctx context.Context) ([]entities.AlertHistory, error)
	ListHistory(ctx context.Context, filter AlertHistoryFilter) ([]entities.AlertHistory, int64, error)
	// DeleteResolvedBefore removes resolved rows whose ResolvedAt is before t.
	DeleteResolvedBefore(ctx context.Context, t time.Time) (int64, error)
}

// AlertHistoryFilter controls history listing queries.
type AlertHistoryFilter struct {
	RuleID    uint
	ServiceID uint
	Limit     int
	Offset    int
}
