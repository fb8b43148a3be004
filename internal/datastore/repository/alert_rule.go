package repository

import (
	"context"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// AlertRuleRepository stores alert rules. Rules are managed outside this
// service; CreateRule exists for seeding.
type AlertRuleRepository interface {
	ListActiveForService(ctx context.Context, serviceID uint) ([]entities.AlertRule, error)
	ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error)
	GetRule(ctx context.Context, id uint) (*entities.AlertRule, error)
	CreateRule(ctx context.Context, rule *entities.AlertRule) error
	ToggleRule(ctx context.Context, id uint, active bool) error
}

// AlertRuleFilter controls rule listing queries.
type AlertRuleFilter struct {
	ServiceID uint
	RuleType  entities.AlertRuleType
	Active    *bool
}
