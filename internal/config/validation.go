package config

import (
	"fmt"
	"strings"
)

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(cfg *Config) error {
	if !logLevels[strings.ToLower(cfg.App.LogLevel)] {
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", cfg.App.LogLevel)
	}
	if strings.TrimSpace(cfg.App.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if cfg.Trading.FillPollIntervalSeconds <= 0 {
		return fmt.Errorf("trading.fill_poll_interval_seconds must be positive")
	}
	if cfg.Trading.FillTimeoutSeconds < cfg.Trading.FillPollIntervalSeconds {
		return fmt.Errorf("trading.fill_timeout_seconds must be at least the poll interval")
	}
	if cfg.Trading.RetryAttempts <= 0 {
		return fmt.Errorf("trading.retry_attempts must be positive")
	}
	if cfg.Trading.RetryBackoffMillis <= 0 {
		return fmt.Errorf("trading.retry_backoff_millis must be positive")
	}
	if cfg.Trading.BreakerThreshold <= 0 {
		return fmt.Errorf("trading.breaker_threshold must be positive")
	}
	if cfg.Trading.BreakerCooldownSeconds <= 0 {
		return fmt.Errorf("trading.breaker_cooldown_seconds must be positive")
	}
	if strings.TrimSpace(cfg.Profiles.Path) == "" {
		return fmt.Errorf("profiles.path cannot be empty")
	}
	return nil
}
