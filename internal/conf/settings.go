// Package conf loads and validates healthmon settings.
package conf

import "time"

// Resolution modes for open alerts.
const (
	// ResolutionAnyUp resolves any rule's open alert on the first UP check.
	ResolutionAnyUp = "any_up"
	// ResolutionStrict resolves only when the rule's own condition has cleared.
	ResolutionStrict = "strict"
)

// Cooldown policies for re-triggering a rule whose previous alert is still open.
const (
	// CooldownPreserve leaves the previous alert open and creates a new one.
	CooldownPreserve = "preserve"
	// CooldownSupersede resolves the previous alert and creates a new one atomically.
	CooldownSupersede = "supersede"
)

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Settings is the root configuration.
type Settings struct {
	Log          LogSettings          `mapstructure:"log" yaml:"log"`
	Monitoring   MonitoringSettings   `mapstructure:"monitoring" yaml:"monitoring"`
	Alerting     AlertingSettings     `mapstructure:"alerting" yaml:"alerting"`
	Retention    RetentionSettings    `mapstructure:"retention" yaml:"retention"`
	Database     DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Notification NotificationSettings `mapstructure:"notification" yaml:"notification"`
	API          APISettings          `mapstructure:"api" yaml:"api"`
	Metrics      MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Sentry       SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// MonitoringSettings configures the scheduler and prober.
type MonitoringSettings struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	CheckInterval  Duration `mapstructure:"check_interval" yaml:"check_interval"`
	WorkerPoolSize int      `mapstructure:"worker_pool_size" yaml:"worker_pool_size"`
	// HonorServiceInterval dispatches a service only once its own
	// check interval has elapsed since its previous dispatch.
	HonorServiceInterval bool     `mapstructure:"honor_service_interval" yaml:"honor_service_interval"`
	ShutdownGrace        Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
	UserAgent            string   `mapstructure:"user_agent" yaml:"user_agent"`
}

// AlertingSettings configures rule evaluation.
type AlertingSettings struct {
	ResolutionMode  string   `mapstructure:"resolution_mode" yaml:"resolution_mode"`
	CooldownPolicy  string   `mapstructure:"cooldown_policy" yaml:"cooldown_policy"`
	ErrorRateWindow Duration `mapstructure:"error_rate_window" yaml:"error_rate_window"`
	// RuleCacheTTL caches active rules per service; zero disables caching.
	RuleCacheTTL Duration `mapstructure:"rule_cache_ttl" yaml:"rule_cache_ttl"`
}

// RetentionSettings configures the daily sweep.
type RetentionSettings struct {
	HealthCheckDays int `mapstructure:"health_check_days" yaml:"health_check_days"`
	// AlertHistoryDays removes resolved alerts older than this; zero keeps them.
	AlertHistoryDays int      `mapstructure:"alert_history_days" yaml:"alert_history_days"`
	Schedule         string   `mapstructure:"schedule" yaml:"schedule"`
	Timeout          Duration `mapstructure:"timeout" yaml:"timeout"`
}

// HealthCheckHorizon is the age beyond which health checks are deleted.
func (r RetentionSettings) HealthCheckHorizon() time.Duration {
	return time.Duration(r.HealthCheckDays) * 24 * time.Hour
}

// AlertHistoryHorizon is the age beyond which resolved alerts are deleted, zero when disabled.
func (r RetentionSettings) AlertHistoryHorizon() time.Duration {
	return time.Duration(r.AlertHistoryDays) * 24 * time.Hour
}

type DatabaseSettings struct {
	Driver string         `mapstructure:"driver" yaml:"driver"`
	SQLite SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL  MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
	Debug  bool           `mapstructure:"debug" yaml:"debug"`
}

type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	// DSN overrides the individual fields when set.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// NotificationSettings configures alert delivery.
type NotificationSettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// URLs are shoutrrr service URLs receiving every alert.
	URLs []string `mapstructure:"urls" yaml:"urls"`
	// EmailURL is a shoutrrr smtp URL; rule recipients are added per message.
	EmailURL  string       `mapstructure:"email_url" yaml:"email_url"`
	RateLimit float64      `mapstructure:"rate_limit" yaml:"rate_limit"` // messages per second
	Burst     int          `mapstructure:"burst" yaml:"burst"`
	Timeout   Duration     `mapstructure:"timeout" yaml:"timeout"`
	MQTT      MQTTSettings `mapstructure:"mqtt" yaml:"mqtt"`
}

type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	QoS      byte   `mapstructure:"qos" yaml:"qos"`
	Retain   bool   `mapstructure:"retain" yaml:"retain"`
}

type APISettings struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	Listen         string   `mapstructure:"listen" yaml:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}
