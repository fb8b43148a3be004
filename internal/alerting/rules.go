package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// Verdict is the outcome of evaluating one condition against a fresh check.
// Cleared reports whether the condition is positively no longer present,
// which strict resolution requires. A verdict can be neither triggered nor
// cleared when there is not enough history to decide.
type Verdict struct {
	Trigger bool
	Cleared bool
	// Observed is the metric the message reports: response time in ms for
	// slow-response rules, error percentage for error-rate rules.
	Observed int
}

// Input is everything a condition may look at.
type Input struct {
	Service *entities.MonitoredService
	Check   *entities.HealthCheck
	Now     time.Time
}

// Condition is the closed set of rule variants: Downtime, SlowResponse and ErrorRate.
type Condition interface {
	Evaluate(ctx context.Context, in Input, history HistoryReader) (Verdict, error)
	Type() entities.AlertRuleType
	condition()
}

// Downtime fires when the last N checks are all DOWN or DEGRADED.
type Downtime struct {
	ConsecutiveFailures int
}

// SlowResponse fires when the last N checks all took at least ThresholdMs.
type SlowResponse struct {
	ThresholdMs         int
	ConsecutiveFailures int
}

// ErrorRate fires when the share of DOWN checks within Window reaches
// ThresholdPercent. A zero Window means DefaultErrorRateWindow.
type ErrorRate struct {
	ThresholdPercent int
	Window           time.Duration
}

func (Downtime) condition()     {}
func (SlowResponse) condition() {}
func (ErrorRate) condition()    {}

func (Downtime) Type() entities.AlertRuleType     { return entities.RuleTypeDowntime }
func (SlowResponse) Type() entities.AlertRuleType { return entities.RuleTypeSlowResponse }
func (ErrorRate) Type() entities.AlertRuleType    { return entities.RuleTypeErrorRate }

// ConditionFor maps a stored rule to its condition variant.
func ConditionFor(rule *entities.AlertRule) (Condition, error) {
	switch rule.RuleType {
	case entities.RuleTypeDowntime:
		return Downtime{ConsecutiveFailures: rule.WindowSize()}, nil
	case entities.RuleTypeSlowResponse:
		return SlowResponse{ThresholdMs: rule.ThresholdValue, ConsecutiveFailures: rule.WindowSize()}, nil
	case entities.RuleTypeErrorRate:
		return ErrorRate{ThresholdPercent: rule.ThresholdValue, Window: DefaultErrorRateWindow}, nil
	default:
		return nil, fmt.Errorf("unknown alert rule type %q for rule %d", rule.RuleType, rule.ID)
	}
}

func (c Downtime) Evaluate(ctx context.Context, in Input, history HistoryReader) (Verdict, error) {
	if in.Check.Status == entities.StatusUp {
		return Verdict{Cleared: true}, nil
	}
	n := max(c.ConsecutiveFailures, 1)
	recent, err := history.Recent(ctx, in.Service.ID, n)
	if err != nil {
		return Verdict{}, err
	}
	if len(recent) < n {
		return Verdict{}, nil
	}
	for i := range recent {
		if !recent[i].Status.IsFailing() {
			return Verdict{}, nil
		}
	}
	return Verdict{Trigger: true}, nil
}

func (c SlowResponse) Evaluate(ctx context.Context, in Input, history HistoryReader) (Verdict, error) {
	rt := in.Check.ResponseTimeMs
	if rt == nil {
		return Verdict{}, nil
	}
	if *rt < c.ThresholdMs {
		return Verdict{Cleared: true, Observed: *rt}, nil
	}
	n := max(c.ConsecutiveFailures, 1)
	recent, err := history.Recent(ctx, in.Service.ID, n)
	if err != nil {
		return Verdict{}, err
	}
	if len(recent) < n {
		return Verdict{Observed: *rt}, nil
	}
	for i := range recent {
		if recent[i].ResponseTimeMs == nil || *recent[i].ResponseTimeMs < c.ThresholdMs {
			return Verdict{Observed: *rt}, nil
		}
	}
	return Verdict{Trigger: true, Observed: *rt}, nil
}

func (c ErrorRate) Evaluate(ctx context.Context, in Input, history HistoryReader) (Verdict, error) {
	window := c.Window
	if window <= 0 {
		window = DefaultErrorRateWindow
	}
	checks, err := history.Since(ctx, in.Service.ID, in.Now.Add(-window))
	if err != nil {
		return Verdict{}, err
	}
	if len(checks) == 0 {
		return Verdict{}, nil
	}
	down := 0
	for i := range checks {
		if checks[i].Status == entities.StatusDown {
			down++
		}
	}
	rate := down * 100 / len(checks)
	if rate >= c.ThresholdPercent {
		return Verdict{Trigger: true, Observed: rate}, nil
	}
	return Verdict{Cleared: true, Observed: rate}, nil
}
