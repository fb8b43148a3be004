package repository

import (
	"testing"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
// Uses shared-cache mode with a single connection so every operation sees the
// same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	// Shared cache outlives a single test when connections linger; start clean.
	require.NoError(t, db.Migrator().DropTable(&entities.AlertHistory{}, &entities.AlertRule{}, &entities.HealthCheck{}, &entities.MonitoredService{}))
	require.NoError(t, db.AutoMigrate(entities.All()...), "failed to migrate tables")
	return db
}

func createTestService(t *testing.T, db *gorm.DB, name string, active bool) *entities.MonitoredService {
	t.Helper()
	svc := &entities.MonitoredService{
		Name:           name,
		URL:            "http://" + name + ":8080",
		HealthEndpoint: "/health",
		Active:         true,
	}
	repo := NewServiceRepository(db)
	require.NoError(t, repo.Create(t.Context(), svc))
	if !active {
		require.NoError(t, repo.SetActive(t.Context(), svc.ID, false))
		svc.Active = false
	}
	return svc
}

func createTestRule(t *testing.T, db *gorm.DB, serviceID uint, ruleType entities.AlertRuleType) *entities.AlertRule {
	t.Helper()
	rule := &entities.AlertRule{
		ServiceID:       serviceID,
		Name:            string(ruleType) + " rule",
		RuleType:        ruleType,
		NotifyEmails:    "ops@example.com",
		CooldownMinutes: 15,
		Active:          true,
	}
	require.NoError(t, NewAlertRuleRepository(db).CreateRule(t.Context(), rule))
	return rule
}

func intPtr(v int) *int { return &v }

func appendCheck(t *testing.T, repo HealthCheckRepository, serviceID uint, status entities.ServiceStatus, ms *int, at time.Time) *entities.HealthCheck {
	t.Helper()
	hc := &entities.HealthCheck{ServiceID: serviceID, Status: status, ResponseTimeMs: ms, CheckedAt: at}
	require.NoError(t, repo.Append(t.Context(), hc))
	return hc
}
