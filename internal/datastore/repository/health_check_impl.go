package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"gorm.io/gorm"
)

type healthCheckRepository struct {
	db *gorm.DB
}

// NewHealthCheckRepository creates a new HealthCheckRepository.
func NewHealthCheckRepository(db *gorm.DB) HealthCheckRepository {
	return &healthCheckRepository{db: db}
}

func (r *healthCheckRepository) Append(ctx context.Context, hc *entities.HealthCheck) error {
	if hc.CheckedAt.IsZero() {
		hc.CheckedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(hc).Error; err != nil {
		return fmt.Errorf("failed to append health check for service %d: %w", hc.ServiceID, err)
	}
	return nil
}

func (r *healthCheckRepository) Recent(ctx context.Context, serviceID uint, n int) ([]entities.HealthCheck, error) {
	if n <= 0 {
		return nil, nil
	}
	var checks []entities.HealthCheck
	err := r.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("checked_at DESC").Order("id DESC").
		Limit(n).
		Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent health checks for service %d: %w", serviceID, err)
	}
	return checks, nil
}

func (r *healthCheckRepository) Since(ctx context.Context, serviceID uint, t time.Time) ([]entities.HealthCheck, error) {
	var checks []entities.HealthCheck
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND checked_at >= ?", serviceID, t).
		Order("checked_at ASC").Order("id ASC").
		Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get health checks since %v for service %d: %w", t, serviceID, err)
	}
	return checks, nil
}

func (r *healthCheckRepository) CountByStatusSince(ctx context.Context, serviceID uint, status entities.ServiceStatus, t time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.HealthCheck{}).
		Where("service_id = ? AND status = ? AND checked_at >= ?", serviceID, status, t).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count %s checks for service %d: %w", status, serviceID, err)
	}
	return count, nil
}

func (r *healthCheckRepository) AverageResponseTime(ctx context.Context, serviceID uint, since time.Time) (avg float64, ok bool, err error) {
	var result sql.NullFloat64
	err = r.db.WithContext(ctx).Model(&entities.HealthCheck{}).
		Select("AVG(response_time_ms)").
		Where("service_id = ? AND checked_at >= ? AND response_time_ms IS NOT NULL", serviceID, since).
		Scan(&result).Error
	if err != nil {
		return 0, false, fmt.Errorf("failed to average response time for service %d: %w", serviceID, err)
	}
	if !result.Valid {
		return 0, false, nil
	}
	return result.Float64, true, nil
}

// Latest returns the newest check, or nil when the service has none.
func (r *healthCheckRepository) Latest(ctx context.Context, serviceID uint) (*entities.HealthCheck, error) {
	var hc entities.HealthCheck
	err := r.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("checked_at DESC").Order("id DESC").
		First(&hc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest health check for service %d: %w", serviceID, err)
	}
	return &hc, nil
}

// DeleteOlderThan removes checks strictly older than t.
func (r *healthCheckRepository) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("checked_at < ?", t).Delete(&entities.HealthCheck{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete health checks before %v: %w", t, result.Error)
	}
	return result.RowsAffected, nil
}
