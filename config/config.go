// Package config loads serpmon configuration from TOML files and the
// environment via Viper.
package config

// Config represents the serpmon service configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API server
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SchedulerConfig configures the recurring refresh scheduler
type SchedulerConfig struct {
	// Timezone is the IANA zone all schedule times are interpreted in.
	// Every stored hour/minute pair refers to wall-clock time in this zone.
	Timezone string `mapstructure:"timezone"`

	// Workers is the number of concurrent refresh job workers (default: 1)
	Workers int `mapstructure:"workers"`

	// PollIntervalSeconds is how often workers check the queue for jobs
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

// QuotaConfig configures per-account query quotas
type QuotaConfig struct {
	// MonthlyQueryLimit is the counter value every eligible account is
	// reset to by the bulk quota reset.
	MonthlyQueryLimit int `mapstructure:"monthly_query_limit"`
}

// FetchConfig configures the outbound metrics fetcher
type FetchConfig struct {
	// Endpoint is the metrics service queried on refresh, one GET per query
	Endpoint          string `mapstructure:"endpoint"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}
