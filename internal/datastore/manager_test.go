package datastore

import (
	"path/filepath"
	"testing"

	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMigratesSchema(t *testing.T) {
	settings := conf.DatabaseSettings{
		Driver: conf.DriverSQLite,
		SQLite: conf.SQLiteSettings{Path: filepath.Join(t.TempDir(), "healthmon.db")},
	}

	store, err := Open(t.Context(), settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, model := range entities.All() {
		assert.True(t, store.DB().Migrator().HasTable(model), "missing table for %T", model)
	}
	assert.True(t, store.DB().Migrator().HasIndex(&entities.HealthCheck{}, "idx_health_checks_service_checked"))

	var mode string
	require.NoError(t, store.DB().Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(t.Context(), conf.DatabaseSettings{Driver: "postgres"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	t.Run("built from fields", func(t *testing.T) {
		t.Parallel()
		dsn := MySQLDSN(conf.MySQLSettings{
			Host:     "db.internal",
			Port:     3307,
			Username: "monitor",
			Password: "s3cret",
			Database: "healthmon",
		})
		assert.Contains(t, dsn, "monitor:s3cret@tcp(db.internal:3307)/healthmon")
		assert.Contains(t, dsn, "parseTime=true")
		assert.Contains(t, dsn, "charset=utf8mb4")
	})

	t.Run("explicit dsn wins", func(t *testing.T) {
		t.Parallel()
		dsn := MySQLDSN(conf.MySQLSettings{Host: "ignored", DSN: "u:p@tcp(h:1)/d"})
		assert.Equal(t, "u:p@tcp(h:1)/d", dsn)
	})
}
