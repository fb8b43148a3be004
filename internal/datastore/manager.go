// Package datastore opens the configured database and migrates the healthmon schema.
package datastore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// Store owns the gorm handle for the lifetime of the process.
type Store struct {
	db     *gorm.DB
	driver string
	log    logger.Logger
}

// Open connects to the configured database, tunes the pool and runs
// auto-migration for every entity.
func Open(ctx context.Context, settings conf.DatabaseSettings, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Module("datastore")

	dialector, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	level := gorm_logger.Silent
	if settings.Debug {
		level = gorm_logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gorm_logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: settings.Driver == conf.DriverSQLite,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("driver", settings.Driver).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	switch settings.Driver {
	case conf.DriverSQLite:
		// Single writer; WAL lets readers proceed during retention deletes.
		sqlDB.SetMaxOpenConns(1)
	default:
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetConnMaxIdleTime(1 * time.Minute)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "ping").
			Build()
	}

	s := &Store{db: db, driver: settings.Driver, log: log}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.Info("database ready", logger.String("driver", settings.Driver))
	return s, nil
}

// NewStore wraps an already opened gorm handle. Used by tests.
func NewStore(db *gorm.DB, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{db: db, driver: db.Name(), log: log.Module("datastore")}
}

// DB returns the gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(entities.All()...); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Build()
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func dialectorFor(settings conf.DatabaseSettings) (gorm.Dialector, error) {
	switch settings.Driver {
	case conf.DriverSQLite:
		return sqlite.Open(SQLiteDSN(settings.SQLite.Path)), nil
	case conf.DriverMySQL:
		return mysql.Open(MySQLDSN(settings.MySQL)), nil
	default:
		return nil, errors.Newf("unsupported database driver %q", settings.Driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// SQLiteDSN enables WAL, a busy timeout and foreign keys on the given file.
func SQLiteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
}

// MySQLDSN returns the explicit DSN when set, otherwise one built from the
// individual fields.
func MySQLDSN(settings conf.MySQLSettings) string {
	if settings.DSN != "" {
		return settings.DSN
	}
	cfg := gomysql.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
