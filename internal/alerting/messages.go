package alerting

import (
	"fmt"
	"strconv"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// BuildMessage renders the human readable alert text for a triggered rule.
func BuildMessage(svc *entities.MonitoredService, hc *entities.HealthCheck, rule *entities.AlertRule, v Verdict) string {
	switch rule.RuleType {
	case entities.RuleTypeDowntime:
		code := "N/A"
		if hc.StatusCode != nil {
			code = strconv.Itoa(*hc.StatusCode)
		}
		reason := "No response"
		if hc.ErrorMessage != nil {
			reason = *hc.ErrorMessage
		}
		return fmt.Sprintf("Service '%s' is DOWN. Status code: %s, Error: %s", svc.Name, code, reason)
	case entities.RuleTypeSlowResponse:
		observed := v.Observed
		if hc.ResponseTimeMs != nil {
			observed = *hc.ResponseTimeMs
		}
		return fmt.Sprintf("Service '%s' is responding slowly. Response time: %dms (threshold: %dms)",
			svc.Name, observed, rule.ThresholdValue)
	case entities.RuleTypeErrorRate:
		return fmt.Sprintf("Service '%s' has high error rate exceeding %d%% (observed %d%%)",
			svc.Name, rule.ThresholdValue, v.Observed)
	default:
		return fmt.Sprintf("Service '%s' triggered alert rule '%s'", svc.Name, rule.Name)
	}
}
