package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type alertHistoryRepository struct {
	db *gorm.DB
}

// NewAlertHistoryRepository creates a new AlertHistoryRepository.
func NewAlertHistoryRepository(db *gorm.DB) AlertHistoryRepository {
	return &alertHistoryRepository{db: db}
}

func (r *alertHistoryRepository) ListActiveByRule(ctx context.Context, ruleID uint) ([]entities.AlertHistory, error) {
	var items []entities.AlertHistory
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND resolved_at IS NULL", ruleID).
		Order("triggered_at DESC").Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts for rule %d: %w", ruleID, err)
	}
	return items, nil
}

func (r *alertHistoryRepository) SaveAlert(ctx context.Context, alert *entities.AlertHistory) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to save alert history: %w", err)
	}
	return nil
}

func (r *alertHistoryRepository) Supersede(ctx context.Context, resolveIDs []uint, at time.Time, alert *entities.AlertHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(resolveIDs) > 0 {
			err := tx.Model(&entities.AlertHistory{}).
				Where("id IN ? AND resolved_at IS NULL", resolveIDs).
				Update("resolved_at", at).Error
			if err != nil {
				return fmt.Errorf("failed to resolve superseded alerts: %w", err)
			}
		}
		if err := tx.Omit(clause.Associations).Create(alert).Error; err != nil {
			return fmt.Errorf("failed to save alert history: %w", err)
		}
		return nil
	})
}

func (r *alertHistoryRepository) MarkNotified(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&entities.AlertHistory{}).
		Where("id = ?", id).
		Updates(map[string]any{"notification_sent": true, "notification_sent_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to mark alert %d notified: %w", id, err)
	}
	return nil
}

// Resolve sets ResolvedAt on the still-unresolved rows among ids.
func (r *alertHistoryRepository) Resolve(ctx context.Context, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&entities.AlertHistory{}).
		Where("id IN ? AND resolved_at IS NULL", ids).
		Update("resolved_at", at)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to resolve alerts %v: %w", ids, result.Error)
	}
	return result.RowsAffected, nil
}

// ListUnresolved returns every active alert with its rule and service.
func (r *alertHistoryRepository) ListUnresolved(ctx context.Context) ([]entities.AlertHistory, error) {
	var items []entities.AlertHistory
	err := r.db.WithContext(ctx).
		Preload("Rule").Preload("Service").
		Where("resolved_at IS NULL").
		Order("triggered_at DESC").Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved alerts: %w", err)
	}
	return items, nil
}

// ListHistory returns alert history entries matching the filter with pagination.
func (r *alertHistoryRepository) ListHistory(ctx context.Context, filter AlertHistoryFilter) ([]entities.AlertHistory, int64, error) {
	var items []entities.AlertHistory
	var total int64

	scope := func(q *gorm.DB) *gorm.DB {
		if filter.RuleID > 0 {
			q = q.Where("rule_id = ?", filter.RuleID)
		}
		if filter.ServiceID > 0 {
			q = q.Where("service_id = ?", filter.ServiceID)
		}
		return q
	}

	if err := r.db.WithContext(ctx).Model(&entities.AlertHistory{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alert history: %w", err)
	}

	query := r.db.WithContext(ctx).Scopes(scope).Preload("Rule").Order("triggered_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alert history: %w", err)
	}
	return items, total, nil
}

func (r *alertHistoryRepository) DeleteResolvedBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("resolved_at IS NOT NULL AND resolved_at < ?", t).
		Delete(&entities.AlertHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete resolved alert history before %v: %w", t, result.Error)
	}
	return result.RowsAffected, nil
}
