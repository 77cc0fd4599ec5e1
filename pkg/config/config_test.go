package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9222, cfg.Browser.DebugPort)
	assert.Equal(t, 2*time.Second, cfg.Watchdog.PollInterval)
	assert.Equal(t, 1, cfg.Watchdog.FailureThreshold)
	assert.NotEmpty(t, cfg.Browser.UserAgent)
	assert.Equal(t, 3*time.Second, cfg.POS.SaveSettleDelay)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
browser:
  debug_port: 9333
watchdog:
  failure_threshold: 3
server:
  bind_address: "127.0.0.1:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9333, cfg.Browser.DebugPort)
	assert.Equal(t, 3, cfg.Watchdog.FailureThreshold)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.BindAddress)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Scrape.SelectorTimeout, cfg.Scrape.SelectorTimeout)
	assert.Equal(t, Default().Browser.UserAgent, cfg.Browser.UserAgent)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser: ["), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero debug port", func(c *Config) { c.Browser.DebugPort = 0 }},
		{"port too large", func(c *Config) { c.Browser.DebugPort = 70000 }},
		{"empty user agent", func(c *Config) { c.Browser.UserAgent = "" }},
		{"zero poll interval", func(c *Config) { c.Watchdog.PollInterval = 0 }},
		{"zero failure threshold", func(c *Config) { c.Watchdog.FailureThreshold = 0 }},
		{"zero redirect checks", func(c *Config) { c.Stock.RedirectMaxChecks = 0 }},
		{"zero lookup rate", func(c *Config) { c.Stock.LookupsPerSecond = 0 }},
		{"negative lookup rate", func(c *Config) { c.Stock.LookupsPerSecond = -1 }},
		{"empty bind address", func(c *Config) { c.Server.BindAddress = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBrowserConfig_Endpoints(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://127.0.0.1:9222", cfg.Browser.CDPEndpoint())
	assert.Equal(t, "http://127.0.0.1:9222/json/version", cfg.Browser.HealthEndpoint())
}
