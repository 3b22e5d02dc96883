package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, defaultAppHTTPAddr, cfg.App.HTTPAddr)
	assert.Equal(t, defaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, defaultFillPollSec, cfg.Trading.FillPollIntervalSeconds)
	assert.Equal(t, defaultFillTimeoutSec, cfg.Trading.FillTimeoutSeconds)
	assert.Equal(t, defaultRetryAttempts, cfg.Trading.RetryAttempts)
	assert.Equal(t, defaultProfilesPath, cfg.Profiles.Path)
	assert.True(t, cfg.Profiles.Watch, "watch defaults to on")
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
app:
  http_addr: ":8080"
database:
  path: /tmp/market.db
trading:
  fill_poll_interval_seconds: 2
  fill_timeout_seconds: 30
profiles:
  path: /etc/easymarket/profiles.yaml
  watch: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "/tmp/market.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Trading.FillPollIntervalSeconds)
	assert.Equal(t, 30, cfg.Trading.FillTimeoutSeconds)
	assert.False(t, cfg.Profiles.Watch)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: verbose
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoadRejectsTimeoutShorterThanPoll(t *testing.T) {
	path := writeConfig(t, `
trading:
  fill_poll_interval_seconds: 60
  fill_timeout_seconds: 10
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
