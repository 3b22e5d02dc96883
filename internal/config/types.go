// Package config loads and validates the service configuration.
package config

// Config is the root configuration carrier.
type Config struct {
	App      AppConfig      `toml:"app"`
	Database DatabaseConfig `toml:"database"`
	Trading  TradingConfig  `toml:"trading"`
	Profiles ProfilesConfig `toml:"profiles"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// TradingConfig tunes the execution pipeline: limit fill polling, the bounded
// retry policy for transient venue errors, and the per-account circuit
// breaker.
type TradingConfig struct {
	FillPollIntervalSeconds int `toml:"fill_poll_interval_seconds"`
	FillTimeoutSeconds      int `toml:"fill_timeout_seconds"`
	RetryAttempts           int `toml:"retry_attempts"`
	RetryBackoffMillis      int `toml:"retry_backoff_millis"`
	BreakerThreshold        int `toml:"breaker_threshold"`
	BreakerCooldownSeconds  int `toml:"breaker_cooldown_seconds"`
}

// ProfilesConfig points at the bots/accounts seed file.
type ProfilesConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}
