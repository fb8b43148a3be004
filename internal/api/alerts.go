package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/loghealer/healthmon/internal/datastore/entities"
	"github.com/loghealer/healthmon/internal/datastore/repository"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/logger"
)

const maxHistoryLimit = 200

func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")
	alerts.GET("/active", c.ListActiveAlerts)
	alerts.GET("/history", c.ListAlertHistory)
	alerts.GET("/rules", c.ListAlertRules)
	alerts.GET("/rules/:id", c.GetAlertRule)
	alerts.PATCH("/rules/:id/toggle", c.ToggleAlertRule)
}

// ListActiveAlerts returns every unresolved alert with its rule and service.
func (c *Controller) ListActiveAlerts(ctx echo.Context) error {
	alerts, err := c.deps.History.ListUnresolved(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list active alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ListAlertHistory returns paginated alert history, newest first.
func (c *Controller) ListAlertHistory(ctx echo.Context) error {
	limit, err := queryInt(ctx, "limit", 50)
	if err != nil || limit <= 0 {
		return badRequest(ctx, "Invalid limit")
	}
	offset, err := queryInt(ctx, "offset", 0)
	if err != nil || offset < 0 {
		return badRequest(ctx, "Invalid offset")
	}
	ruleID, err := queryUint(ctx, "rule_id")
	if err != nil {
		return badRequest(ctx, "Invalid rule_id")
	}
	serviceID, err := queryUint(ctx, "service_id")
	if err != nil {
		return badRequest(ctx, "Invalid service_id")
	}

	filter := repository.AlertHistoryFilter{
		RuleID:    ruleID,
		ServiceID: serviceID,
		Limit:     min(limit, maxHistoryLimit),
		Offset:    offset,
	}
	items, total, err := c.deps.History.ListHistory(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"history": items,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// ListAlertRules returns rules, optionally filtered by service_id, type and active.
func (c *Controller) ListAlertRules(ctx echo.Context) error {
	serviceID, err := queryUint(ctx, "service_id")
	if err != nil {
		return badRequest(ctx, "Invalid service_id")
	}
	filter := repository.AlertRuleFilter{
		ServiceID: serviceID,
		RuleType:  entities.AlertRuleType(ctx.QueryParam("type")),
	}
	if raw := ctx.QueryParam("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(ctx, "Invalid active flag")
		}
		filter.Active = &v
	}

	rules, err := c.deps.Rules.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert rules", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetAlertRule returns a single rule.
func (c *Controller) GetAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}
	rule, err := c.deps.Rules.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return notFound(ctx, "Alert rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get alert rule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, rule)
}

// ToggleAlertRule activates or deactivates a rule and drops its service's
// cached rules.
func (c *Controller) ToggleAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := ctx.Bind(&body); err != nil || body.Active == nil {
		return badRequest(ctx, "Invalid request body")
	}

	reqCtx := ctx.Request().Context()
	rule, err := c.deps.Rules.GetRule(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return notFound(ctx, "Alert rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get alert rule", http.StatusInternalServerError)
	}
	if err := c.deps.Rules.ToggleRule(reqCtx, id, *body.Active); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return notFound(ctx, "Alert rule not found")
		}
		return c.HandleError(ctx, err, "Failed to toggle alert rule", http.StatusInternalServerError)
	}
	if c.deps.RuleCache != nil {
		c.deps.RuleCache.Invalidate(rule.ServiceID)
	}

	c.log.Info("alert rule toggled",
		logger.Uint64("id", uint64(id)),
		logger.Bool("active", *body.Active))
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "active": *body.Active})
}
