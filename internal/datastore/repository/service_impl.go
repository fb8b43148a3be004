package repository

import (
	"context"
	"fmt"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"gorm.io/gorm"
)

type serviceRepository struct {
	db *gorm.DB
}

// NewServiceRepository creates a new ServiceRepository.
func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

// ListActive returns every active service ordered by ID.
func (r *serviceRepository) ListActive(ctx context.Context) ([]entities.MonitoredService, error) {
	var services []entities.MonitoredService
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to list active services: %w", err)
	}
	return services, nil
}

// Get returns a single service. Returns ErrServiceNotFound if it does not exist.
func (r *serviceRepository) Get(ctx context.Context, id uint) (*entities.MonitoredService, error) {
	var svc entities.MonitoredService
	if err := r.db.WithContext(ctx).First(&svc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to get service %d: %w", id, err)
	}
	return &svc, nil
}

func (r *serviceRepository) Create(ctx context.Context, svc *entities.MonitoredService) error {
	if svc.CheckIntervalSec == 0 {
		svc.CheckIntervalSec = entities.DefaultCheckIntervalSec
	}
	if svc.TimeoutMs == 0 {
		svc.TimeoutMs = entities.DefaultTimeoutMs
	}
	if err := r.db.WithContext(ctx).Create(svc).Error; err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (r *serviceRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&entities.MonitoredService{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update service %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrServiceNotFound
	}
	return nil
}
