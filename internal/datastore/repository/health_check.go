package repository

import (
	"context"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// HealthCheckRepository is the append-only store of probe results.
// Every read is a single statement, so it sees a consistent snapshot even
// while retention deletes rows concurrently.
type HealthCheckRepository interface {
	Append(ctx context.Context, hc *entities.HealthCheck) error

	// Recent returns the n newest checks for a service, newest first.
	Recent(ctx context.Context, serviceID uint, n int) ([]entities.HealthCheck, error)
	// Since returns checks at or after t, oldest first.
	Since(ctx context.Context, serviceID uint, t time.Time) ([]entities.HealthCheck, error)
	CountByStatusSince(ctx context.Context, serviceID uint, status entities.ServiceStatus, t time.Time) (int64, error)
	// AverageResponseTime averages non-null response times since t. ok is
	// false when no check in range carries a response time.
	AverageResponseTime(ctx context.Context, serviceID uint, since time.Time) (avg float64, ok bool, err error)
	Latest(ctx context.Context, serviceID uint) (*entities.HealthCheck, error)

	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}
