//go:build integration

package containers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"

	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// DefaultMySQLImage is the server image used by NewMySQLContainer.
const DefaultMySQLImage = "mysql:8.0"

// MySQLContainer is a running MySQL server with a healthmon database.
type MySQLContainer struct {
	container *mysql.MySQLContainer
	database  string
	username  string
	password  string
}

// NewMySQLContainer starts MySQL and creates an empty "healthmon_test" database.
func NewMySQLContainer(ctx context.Context) (*MySQLContainer, error) {
	c := &MySQLContainer{database: "healthmon_test", username: "healthmon", password: "healthmon"}
	container, err := mysql.Run(ctx, DefaultMySQLImage,
		mysql.WithDatabase(c.database),
		mysql.WithUsername(c.username),
		mysql.WithPassword(c.password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start mysql container: %w", err)
	}
	c.container = container
	return c, nil
}

// Settings returns database settings pointing at the container, suitable for
// datastore.Open.
func (c *MySQLContainer) Settings(ctx context.Context) (conf.DatabaseSettings, error) {
	host, err := c.container.Host(ctx)
	if err != nil {
		return conf.DatabaseSettings{}, fmt.Errorf("failed to get mysql host: %w", err)
	}
	port, err := c.container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		return conf.DatabaseSettings{}, fmt.Errorf("failed to get mysql port: %w", err)
	}
	p, err := strconv.Atoi(port.Port())
	if err != nil {
		return conf.DatabaseSettings{}, fmt.Errorf("invalid mysql port %q: %w", port.Port(), err)
	}
	return conf.DatabaseSettings{
		Driver: conf.DriverMySQL,
		MySQL: conf.MySQLSettings{
			Host:     host,
			Port:     p,
			Username: c.username,
			Password: c.password,
			Database: c.database,
		},
	}, nil
}

// Reset empties every healthmon table, children first.
func (c *MySQLContainer) Reset(ctx context.Context, db *gorm.DB) error {
	models := entities.All()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return fmt.Errorf("failed to reset %T: %w", models[i], err)
		}
	}
	return nil
}

// Terminate stops and removes the container.
func (c *MySQLContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate mysql container: %w", err)
	}
	return nil
}
