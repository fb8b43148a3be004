package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/observability/metrics"
)

// HealthChecker runs one health check on demand.
type HealthChecker interface {
	PerformHealthCheck(ctx context.Context, svc *entities.MonitoredService) (*entities.HealthCheck, error)
}

// RuleCacheInvalidator drops cached rules for a service.
type RuleCacheInvalidator interface {
	Invalidate(serviceID uint)
}

// Dependencies are the collaborators the handlers use. Checker, RuleCache,
// Metrics and Hub are optional.
type Dependencies struct {
	Services  repository.ServiceRepository
	Checks    repository.HealthCheckRepository
	Rules     repository.AlertRuleRepository
	History   repository.AlertHistoryRepository
	Checker   HealthChecker
	RuleCache RuleCacheInvalidator
	Metrics   *metrics.Metrics
	Hub       *Hub
}

// Controller holds the v1 handlers.
type Controller struct {
	Group *echo.Group
	deps  *Dependencies
	log   logger.Logger
}

// NewController registers every v1 route on group.
func NewController(group *echo.Group, deps *Dependencies, log logger.Logger) *Controller {
	c := &Controller{Group: group, deps: deps, log: log}
	c.Group.GET("/healthz", c.Healthz)
	c.initServiceRoutes()
	c.initAlertRoutes()
	if deps.Hub != nil {
		c.Group.GET("/events/ws", echo.WrapHandler(deps.Hub))
	}
	return c
}

// Close disconnects websocket clients.
func (c *Controller) Close() {
	if c.deps.Hub != nil {
		c.deps.Hub.Close()
	}
}

// Healthz reports liveness.
func (c *Controller) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleError logs err and writes a JSON error body with message.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	c.log.Error(message,
		logger.String("path", ctx.Path()),
		logger.Error(err))
	return ctx.JSON(code, map[string]string{"error": message})
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func notFound(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusNotFound, map[string]string{"error": message})
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// queryInt returns the named query parameter, def when absent, or an error.
func queryInt(ctx echo.Context, name string, def int) (int, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func queryUint(ctx echo.Context, name string) (uint, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	return uint(v), err
}
