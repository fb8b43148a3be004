package repository

import (
	"context"
	"fmt"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// alertRuleRepository implements AlertRuleRepository.
type alertRuleRepository struct {
	db *gorm.DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository.
func NewAlertRuleRepository(db *gorm.DB) AlertRuleRepository {
	return &alertRuleRepository{db: db}
}

// ListActiveForService returns the active rules attached to a service.
func (r *alertRuleRepository) ListActiveForService(ctx context.Context, serviceID uint) ([]entities.AlertRule, error) {
	active := true
	return r.ListRules(ctx, AlertRuleFilter{ServiceID: serviceID, Active: &active})
}

// ListRules returns alert rules matching the given filter.
func (r *alertRuleRepository) ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error) {
	var rules []entities.AlertRule
	query := r.db.WithContext(ctx)

	if filter.ServiceID > 0 {
		query = query.Where("service_id = ?", filter.ServiceID)
	}
	if filter.RuleType != "" {
		query = query.Where("rule_type = ?", filter.RuleType)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	if err := query.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// GetRule returns a single alert rule by ID with its service.
// Returns ErrAlertRuleNotFound if the rule does not exist.
func (r *alertRuleRepository) GetRule(ctx context.Context, id uint) (*entities.AlertRule, error) {
	var rule entities.AlertRule
	if err := r.db.WithContext(ctx).Preload("Service").First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertRuleNotFound
		}
		return nil, fmt.Errorf("failed to get alert rule %d: %w", id, err)
	}
	return &rule, nil
}

// CreateRule inserts a rule without touching its service association.
func (r *alertRuleRepository) CreateRule(ctx context.Context, rule *entities.AlertRule) error {
	if rule.ConsecutiveFailures == 0 {
		rule.ConsecutiveFailures = entities.DefaultConsecutiveFailures
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// ToggleRule activates or deactivates an alert rule.
func (r *alertRuleRepository) ToggleRule(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle alert rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}
