package conf

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/loghealer/healthmon/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. HEALTHMON_MONITORING_CHECK_INTERVAL.
const EnvPrefix = "HEALTHMON"

// setDefaults registers every key so env overrides are visible to Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval", "30s")
	v.SetDefault("monitoring.worker_pool_size", 10)
	v.SetDefault("monitoring.honor_service_interval", false)
	v.SetDefault("monitoring.shutdown_grace", "10s")
	v.SetDefault("monitoring.user_agent", "healthmon/1.0")

	v.SetDefault("alerting.resolution_mode", ResolutionAnyUp)
	v.SetDefault("alerting.cooldown_policy", CooldownPreserve)
	v.SetDefault("alerting.error_rate_window", "5m")
	v.SetDefault("alerting.rule_cache_ttl", "0s")

	v.SetDefault("retention.health_check_days", 30)
	v.SetDefault("retention.alert_history_days", 0)
	v.SetDefault("retention.schedule", "0 3 * * *")
	v.SetDefault("retention.timeout", "5m")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.sqlite.path", "healthmon.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "healthmon")
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.debug", false)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.email_url", "")
	v.SetDefault("notification.rate_limit", 5.0)
	v.SetDefault("notification.burst", 10)
	v.SetDefault("notification.timeout", "15s")
	v.SetDefault("notification.mqtt.enabled", false)
	v.SetDefault("notification.mqtt.broker", "")
	v.SetDefault("notification.mqtt.topic", "healthmon/alerts")
	v.SetDefault("notification.mqtt.client_id", "healthmon")
	v.SetDefault("notification.mqtt.username", "")
	v.SetDefault("notification.mqtt.password", "")
	v.SetDefault("notification.mqtt.qos", 1)
	v.SetDefault("notification.mqtt.retain", false)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", ":8080")
	v.SetDefault("api.allowed_origins", []string{})

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.sample_rate", 1.0)
}

// Load reads settings from defaults, the optional config file at path and the
// environment, in increasing precedence, and validates the result.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New(fmt.Errorf("failed to read config file %s: %w", path, err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode settings: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Defaults returns the default settings without reading files or env.
func Defaults() *Settings {
	v := viper.New()
	setDefaults(v)
	var s Settings
	// Defaults are static and always decode.
	_ = v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook()))
	return &s
}

// Validate checks settings for values the engine cannot run with.
func (s *Settings) Validate() error {
	var errs []error
	invalid := func(key string, value any, reason string) {
		errs = append(errs, errors.Newf("invalid %s %v: %s", key, value, reason).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("key", key).
			Build())
	}

	if s.Monitoring.CheckInterval.Std() <= 0 {
		invalid("monitoring.check_interval", s.Monitoring.CheckInterval, "must be positive")
	}
	if s.Monitoring.WorkerPoolSize <= 0 {
		invalid("monitoring.worker_pool_size", s.Monitoring.WorkerPoolSize, "must be positive")
	}
	if s.Monitoring.ShutdownGrace.Std() < 0 {
		invalid("monitoring.shutdown_grace", s.Monitoring.ShutdownGrace, "must not be negative")
	}
	if !slices.Contains([]string{ResolutionAnyUp, ResolutionStrict}, s.Alerting.ResolutionMode) {
		invalid("alerting.resolution_mode", s.Alerting.ResolutionMode, "expected any_up or strict")
	}
	if !slices.Contains([]string{CooldownPreserve, CooldownSupersede}, s.Alerting.CooldownPolicy) {
		invalid("alerting.cooldown_policy", s.Alerting.CooldownPolicy, "expected preserve or supersede")
	}
	if s.Alerting.ErrorRateWindow.Std() <= 0 {
		invalid("alerting.error_rate_window", s.Alerting.ErrorRateWindow, "must be positive")
	}
	if s.Alerting.RuleCacheTTL.Std() < 0 {
		invalid("alerting.rule_cache_ttl", s.Alerting.RuleCacheTTL, "must not be negative")
	}
	if s.Retention.HealthCheckDays <= 0 {
		invalid("retention.health_check_days", s.Retention.HealthCheckDays, "must be positive")
	}
	if s.Retention.AlertHistoryDays < 0 {
		invalid("retention.alert_history_days", s.Retention.AlertHistoryDays, "must not be negative")
	}
	if _, err := cron.ParseStandard(s.Retention.Schedule); err != nil {
		invalid("retention.schedule", s.Retention.Schedule, err.Error())
	}
	if !slices.Contains([]string{DriverSQLite, DriverMySQL}, s.Database.Driver) {
		invalid("database.driver", s.Database.Driver, "expected sqlite or mysql")
	}
	if s.Notification.RateLimit < 0 {
		invalid("notification.rate_limit", s.Notification.RateLimit, "must not be negative")
	}
	if s.Notification.MQTT.Enabled && s.Notification.MQTT.Broker == "" {
		invalid("notification.mqtt.broker", `""`, "required when mqtt is enabled")
	}
	if s.Notification.MQTT.QoS > 2 {
		invalid("notification.mqtt.qos", s.Notification.MQTT.QoS, "expected 0, 1 or 2")
	}
	return errors.Join(errs...)
}
