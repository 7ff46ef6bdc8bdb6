package config

import (
	"github.com/spf13/viper"
)

// Default values applied before any config file or environment override.
const (
	DefaultServerPort        = 8001
	DefaultTimezone          = "Europe/Moscow"
	DefaultWorkers           = 1
	DefaultPollInterval      = 5
	DefaultMonthlyQueryLimit = 100
	DefaultRequestsPerMinute = 60
	DefaultFetchTimeout      = 120
)

// SetDefaults registers default configuration values on a Viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "serpmon.db")
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("scheduler.timezone", DefaultTimezone)
	v.SetDefault("scheduler.workers", DefaultWorkers)
	v.SetDefault("scheduler.poll_interval_seconds", DefaultPollInterval)
	v.SetDefault("quota.monthly_query_limit", DefaultMonthlyQueryLimit)
	v.SetDefault("fetch.endpoint", "")
	v.SetDefault("fetch.requests_per_minute", DefaultRequestsPerMinute)
	v.SetDefault("fetch.timeout_seconds", DefaultFetchTimeout)
}
