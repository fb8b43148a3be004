package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/logger"
)

const (
	defaultRecentChecks = 20
	maxRecentChecks     = 500
	defaultAverageSince = time.Hour
)

func (c *Controller) initServiceRoutes() {
	services := c.Group.Group("/services")
	services.GET("", c.ListServices)
	services.GET("/:id", c.GetService)
	services.GET("/:id/checks", c.ListRecentChecks)
	services.GET("/:id/response-time", c.GetAverageResponseTime)
	services.POST("/:id/check", c.CheckService)
}

// ListServices returns the active services.
func (c *Controller) ListServices(ctx echo.Context) error {
	services, err := c.deps.Services.ListActive(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list services", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"services": services,
		"count":    len(services),
	})
}

// GetService returns one service with its latest check.
func (c *Controller) GetService(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid service ID")
	}
	reqCtx := ctx.Request().Context()
	svc, err := c.deps.Services.Get(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return notFound(ctx, "Service not found")
		}
		return c.HandleError(ctx, err, "Failed to get service", http.StatusInternalServerError)
	}
	latest, err := c.deps.Checks.Latest(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get latest health check", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"service":      svc,
		"latest_check": latest,
	})
}

// ListRecentChecks returns the newest checks of a service, newest first.
func (c *Controller) ListRecentChecks(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid service ID")
	}
	limit, err := queryInt(ctx, "limit", defaultRecentChecks)
	if err != nil || limit <= 0 {
		return badRequest(ctx, "Invalid limit")
	}
	limit = min(limit, maxRecentChecks)

	checks, err := c.deps.Checks.Recent(ctx.Request().Context(), id, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list health checks", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"service_id": id,
		"checks":     checks,
		"count":      len(checks),
	})
}

// GetAverageResponseTime returns the mean response time over ?since= (a Go
// duration, default 1h).
func (c *Controller) GetAverageResponseTime(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid service ID")
	}
	window := defaultAverageSince
	if raw := ctx.QueryParam("since"); raw != "" {
		window, err = time.ParseDuration(raw)
		if err != nil || window <= 0 {
			return badRequest(ctx, "Invalid since duration")
		}
	}

	since := time.Now().Add(-window)
	avg, ok, err := c.deps.Checks.AverageResponseTime(ctx.Request().Context(), id, since)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute average response time", http.StatusInternalServerError)
	}
	resp := map[string]any{
		"service_id": id,
		"since":      since.UTC(),
	}
	if ok {
		resp["average_response_time_ms"] = avg
	} else {
		resp["average_response_time_ms"] = nil
	}
	return ctx.JSON(http.StatusOK, resp)
}

// CheckService runs the health check pipeline for one service immediately.
func (c *Controller) CheckService(ctx echo.Context) error {
	if c.deps.Checker == nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Health checks are not available"})
	}
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid service ID")
	}
	reqCtx := ctx.Request().Context()
	svc, err := c.deps.Services.Get(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return notFound(ctx, "Service not found")
		}
		return c.HandleError(ctx, err, "Failed to get service", http.StatusInternalServerError)
	}

	hc, err := c.deps.Checker.PerformHealthCheck(reqCtx, svc)
	if hc == nil {
		return c.HandleError(ctx, err, "Health check failed", http.StatusInternalServerError)
	}
	resp := map[string]any{"check": hc}
	if err != nil {
		c.log.Warn("alert evaluation failed after manual check",
			logger.Uint64("service_id", uint64(id)),
			logger.Error(err))
		resp["evaluation_error"] = err.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}
