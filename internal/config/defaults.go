package config

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9980"
	defaultDatabasePath    = "data/easymarket.db"
	defaultFillPollSec     = 5
	defaultFillTimeoutSec  = 120
	defaultRetryAttempts   = 3
	defaultRetryBackoffMs  = 500
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30
	defaultProfilesPath    = "configs/profiles.yaml"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Profiles.applyDefaults(keys)
}

func (c *AppConfig) applyDefaults(keys keySet) {
	if !keys.has("app.env") || c.Env == "" {
		c.Env = defaultAppEnv
	}
	if !keys.has("app.log_level") || c.LogLevel == "" {
		c.LogLevel = defaultAppLogLevel
	}
	if !keys.has("app.http_addr") || c.HTTPAddr == "" {
		c.HTTPAddr = defaultAppHTTPAddr
	}
}

func (c *DatabaseConfig) applyDefaults(keys keySet) {
	if !keys.has("database.path") || c.Path == "" {
		c.Path = defaultDatabasePath
	}
}

func (c *TradingConfig) applyDefaults(keys keySet) {
	if !keys.has("trading.fill_poll_interval_seconds") || c.FillPollIntervalSeconds <= 0 {
		c.FillPollIntervalSeconds = defaultFillPollSec
	}
	if !keys.has("trading.fill_timeout_seconds") || c.FillTimeoutSeconds <= 0 {
		c.FillTimeoutSeconds = defaultFillTimeoutSec
	}
	if !keys.has("trading.retry_attempts") || c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if !keys.has("trading.retry_backoff_millis") || c.RetryBackoffMillis <= 0 {
		c.RetryBackoffMillis = defaultRetryBackoffMs
	}
	if !keys.has("trading.breaker_threshold") || c.BreakerThreshold <= 0 {
		c.BreakerThreshold = defaultBreakerFailures
	}
	if !keys.has("trading.breaker_cooldown_seconds") || c.BreakerCooldownSeconds <= 0 {
		c.BreakerCooldownSeconds = defaultBreakerCooldown
	}
}

func (c *ProfilesConfig) applyDefaults(keys keySet) {
	if !keys.has("profiles.path") || c.Path == "" {
		c.Path = defaultProfilesPath
	}
	if !keys.has("profiles.watch") {
		c.Watch = true
	}
}
