package repository

import (
	"context"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// ServiceRepository reads the registry of monitored services. The write
// methods exist for seeding and tests; the engine only reads.
type ServiceRepository interface {
	ListActive(ctx context.Context) ([]entities.MonitoredService, error)
	Get(ctx context.Context, id uint) (*entities.MonitoredService, error)
	Create(ctx context.Context, svc *entities.MonitoredService) error
	SetActive(ctx context.Context, id uint, active bool) error
}
