// Package config loads and validates the pricescout configuration file.
//
// Configuration is a single YAML document, by default at
// ~/.pricescout/config.yaml. A missing file is not an error: defaults are
// used so the agent can run with zero setup against a locally running
// Chromium instance.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the automation agent.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	POS      POSConfig      `yaml:"pos"`
	Stock    StockConfig    `yaml:"stock"`
	Server   ServerConfig   `yaml:"server"`
}

// BrowserConfig controls how the shared browser session is attached or launched.
type BrowserConfig struct {
	// DebugPort is the Chromium remote-debugging port used both for
	// attaching and for health checks.
	DebugPort int `yaml:"debug_port"`

	// Executables are candidate browser binaries tried in order when no
	// running instance can be attached.
	Executables []string `yaml:"executables"`

	// UserDataDir is the persistent profile directory, so cookies and login
	// state survive agent restarts. Empty means ~/.pricescout/browser-data.
	UserDataDir string `yaml:"user_data_dir"`

	// LaunchSettleDelay is how long to wait after spawning a browser before
	// retrying the CDP attach.
	LaunchSettleDelay time.Duration `yaml:"launch_settle_delay"`

	// UserAgent is the desktop user agent applied to every automation page.
	UserAgent string `yaml:"user_agent"`
}

// WatchdogConfig controls the browser health watchdog.
type WatchdogConfig struct {
	// PollInterval is the delay between health probes of the CDP endpoint.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FailureThreshold is the number of consecutive failed probes that
	// trigger shutdown. The historical behavior is 1: a single missed poll
	// means the user closed the browser.
	FailureThreshold int `yaml:"failure_threshold"`
}

// ScrapeConfig controls competitor extraction behavior.
type ScrapeConfig struct {
	// SelectorTimeout bounds the wait for a source's price selector to
	// appear after navigation. Expiry is tolerated, not fatal.
	SelectorTimeout time.Duration `yaml:"selector_timeout"`

	// NavigationTimeout bounds page navigation for scraping pages.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

// POSConfig describes the internal point-of-sale web application.
type POSConfig struct {
	BaseURL    string `yaml:"base_url"`
	NewItemURL string `yaml:"new_item_url"`

	// StoreID is the option value selected for the branch dropdown when the
	// caller does not supply one.
	StoreID string `yaml:"store_id"`

	// SavingIndicator is the transient element observed to confirm an
	// in-flight save.
	SavingIndicator string `yaml:"saving_indicator"`

	// SaveSettleDelay is the pause between the save button appearing and
	// the forced click, giving the form's client-side handlers time to bind.
	SaveSettleDelay time.Duration `yaml:"save_settle_delay"`
}

// StockConfig describes the secondary stock system used for barcode lookup
// and the post-listing sync step.
type StockConfig struct {
	BaseURL   string `yaml:"base_url"`
	SearchURL string `yaml:"search_url"`

	// RedirectMaxChecks bounds the intermediate-redirect wait by iteration
	// count rather than wall-clock time.
	RedirectMaxChecks int `yaml:"redirect_max_checks"`

	// LookupsPerSecond paces consecutive barcode lookups.
	LookupsPerSecond float64 `yaml:"lookups_per_second"`

	// ListedCheckbox is the status flag toggled after a successful listing.
	ListedCheckbox string `yaml:"listed_checkbox"`

	// SaveButton submits the stock record after the flag is toggled.
	SaveButton string `yaml:"save_button"`
}

// ServerConfig controls the HTTP API surface.
type ServerConfig struct {
	BindAddress string `yaml:"bind_address"`

	// AllowedOrigins are the frontend origins permitted to call the API
	// cross-origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			DebugPort: 9222,
			Executables: []string{
				"chromium",
				"chromium-browser",
				"google-chrome",
				"google-chrome-stable",
			},
			LaunchSettleDelay: 3 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) " +
				"Chrome/120.0.0.0 Safari/537.36",
		},
		Watchdog: WatchdogConfig{
			PollInterval:     2 * time.Second,
			FailureThreshold: 1,
		},
		Scrape: ScrapeConfig{
			SelectorTimeout:   15 * time.Second,
			NavigationTimeout: 30 * time.Second,
		},
		POS: POSConfig{
			BaseURL:         "https://webepos.cashgenerator.co.uk",
			NewItemURL:      "https://webepos.cashgenerator.co.uk/products/new",
			StoreID:         "4157a468-0220-45a4-bd51-e3dffe2ce7f0",
			SavingIndicator: "button:has-text('Saving')",
			SaveSettleDelay: 3 * time.Second,
		},
		Stock: StockConfig{
			BaseURL:           "https://nospos.com",
			SearchURL:         "https://nospos.com/stock/search",
			RedirectMaxChecks: 60,
			LookupsPerSecond:  0.5,
			ListedCheckbox:    "#stock-listed",
			SaveButton:        "button[type='submit']",
		},
		Server: ServerConfig{
			BindAddress: "127.0.0.1:8077",
			AllowedOrigins: []string{
				"https://cashgensuite.onrender.com",
				"http://127.0.0.1:8000",
			},
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pricescout", "config.yaml"), nil
}

// Load reads the configuration at path, overlaying it onto the defaults.
// A missing file returns the defaults. The result is always validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	if c.Browser.DebugPort <= 0 || c.Browser.DebugPort > 65535 {
		return fmt.Errorf("browser.debug_port must be between 1 and 65535, got %d", c.Browser.DebugPort)
	}
	if c.Browser.UserAgent == "" {
		return fmt.Errorf("browser.user_agent must not be empty")
	}
	if c.Watchdog.PollInterval <= 0 {
		return fmt.Errorf("watchdog.poll_interval must be positive, got %s", c.Watchdog.PollInterval)
	}
	if c.Watchdog.FailureThreshold < 1 {
		return fmt.Errorf("watchdog.failure_threshold must be at least 1, got %d", c.Watchdog.FailureThreshold)
	}
	if c.Stock.RedirectMaxChecks < 1 {
		return fmt.Errorf("stock.redirect_max_checks must be at least 1, got %d", c.Stock.RedirectMaxChecks)
	}
	if c.Stock.LookupsPerSecond <= 0 {
		return fmt.Errorf("stock.lookups_per_second must be positive, got %v", c.Stock.LookupsPerSecond)
	}
	if c.Server.BindAddress == "" {
		return fmt.Errorf("server.bind_address must not be empty")
	}
	return nil
}

// CDPEndpoint returns the HTTP endpoint used to attach to the browser.
func (c *BrowserConfig) CDPEndpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.DebugPort)
}

// HealthEndpoint returns the CDP version URL polled by the watchdog.
func (c *BrowserConfig) HealthEndpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d/json/version", c.DebugPort)
}

// ResolveUserDataDir returns the configured profile directory, creating the
// default location under the home directory when unset.
func (c *BrowserConfig) ResolveUserDataDir() (string, error) {
	if c.UserDataDir != "" {
		return c.UserDataDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pricescout", "browser-data"), nil
}
