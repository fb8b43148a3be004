// Package alerting evaluates alert rules against fresh health checks and
// manages the alert lifecycle: trigger, cooldown and resolution.
package alerting

import "time"

// DefaultErrorRateWindow is the look-back window for error-rate rules.
const DefaultErrorRateWindow = 5 * time.Minute

// ResolutionMode selects when an open alert is resolved.
type ResolutionMode string

const (
	// ResolveOnAnyUp resolves any rule's open alert as soon as a check is UP.
	ResolveOnAnyUp ResolutionMode = "any_up"
	// ResolveStrict resolves only when the rule's own condition has cleared.
	ResolveStrict ResolutionMode = "strict"
)

// CooldownPolicy selects what happens to an open alert when the rule fires
// again after its cooldown has elapsed.
type CooldownPolicy string

const (
	// CooldownPreserve leaves the older row unresolved and adds a new one.
	CooldownPreserve CooldownPolicy = "preserve"
	// CooldownSupersede resolves the older rows and inserts the new one atomically.
	CooldownSupersede CooldownPolicy = "supersede"
)

// Alert lifecycle actions, used for metrics labels and log fields.
const (
	ActionTriggered  = "triggered"
	ActionSuppressed = "suppressed"
	ActionSuperseded = "superseded"
	ActionResolved   = "resolved"
)

// Notification kinds.
const (
	NotifyAlert      = "alert"
	NotifyResolution = "resolution"
)
