package monitor

import "github.com/loghealer/healthmon/internal/datastore/entities"

// Classify maps a probe outcome to a status. A 2xx answer slower than 80% of
// the timeout is DEGRADED; the boundary itself counts as slow.
func Classify(o Outcome, timeoutMs int) entities.ServiceStatus {
	if o.StatusCode == nil {
		return entities.StatusDown
	}
	code := *o.StatusCode
	switch {
	case code >= 200 && code < 300:
		if o.ResponseTimeMs*10 >= timeoutMs*8 {
			return entities.StatusDegraded
		}
		return entities.StatusUp
	case code >= 500:
		return entities.StatusDown
	case code >= 400:
		return entities.StatusDegraded
	default:
		return entities.StatusUnknown
	}
}
