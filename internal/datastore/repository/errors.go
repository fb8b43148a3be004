package repository

import "github.com/loghealer/healthmon/internal/errors"

// Sentinel errors returned by repository lookups.
var (
	ErrServiceNotFound   = errors.NewStd("monitored service not found")
	ErrAlertRuleNotFound = errors.NewStd("alert rule not found")
)
