// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory database with the full schema.
// Each call gets its own named shared-cache database and a single connection,
// so every query in the test sees the same data.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=ON"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entities.All()...), "failed to migrate tables")
	return db
}

// Logger returns a logger that discards everything below error.
func Logger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
