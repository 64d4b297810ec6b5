// ABOUTME: Configuration loading and parsing for the darkroom server
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a key is missing.
const (
	DefaultAPIPrefix       = "/api"
	DefaultSessionDuration = 7 * 24 * time.Hour
	DefaultMetricsPath     = "/metrics"
	DefaultSiteTitle       = "darkroom"
	DefaultCurrency        = "USD"

	// MinJWTSecretLength is the shortest accepted auth.jwt_secret, in bytes.
	MinJWTSecretLength = 32
)

// Config represents the complete darkroom configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Site      SiteConfig      `yaml:"site"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds listener and URL configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// BaseURL is the public URL; passkeys are bound to its host
	BaseURL string `yaml:"base_url"`

	// APIPrefix is where the JSON admin API is mounted
	APIPrefix string `yaml:"api_prefix"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration. An empty JWTSecret disables
// bearer tokens; cookie sessions still work.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	SessionDuration time.Duration `yaml:"-"`

	SessionDurationRaw string `yaml:"session_duration"`
}

// SiteConfig holds what the public site shows
type SiteConfig struct {
	Title    string `yaml:"title"`
	Tagline  string `yaml:"tagline"`
	Currency string `yaml:"currency"`

	// DevMode mounts the element inspector
	DevMode bool `yaml:"dev_mode"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	Funnel    bool   `yaml:"funnel"` // public Funnel, implies HTTPS
	HTTPS     bool   `yaml:"https"`  // serve TLS on :443 with a tailnet cert
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = DefaultAPIPrefix
	}
	if c.Auth.SessionDuration == 0 {
		c.Auth.SessionDuration = DefaultSessionDuration
	}
	if c.Site.Title == "" {
		c.Site.Title = DefaultSiteTitle
	}
	if c.Site.Currency == "" {
		c.Site.Currency = DefaultCurrency
	}
	c.Site.Currency = strings.ToUpper(c.Site.Currency)
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// reservedPrefixes are mounted by the server and cannot host the API.
var reservedPrefixes = []string{"/admin", "/auth", "/health", "/static", "/__inspector", "/gallery", "/pages", "/cart", "/orders"}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server.base_url must be an absolute http(s) URL, got %q", c.Server.BaseURL)
		}
	}
	if err := validatePrefix("server.api_prefix", c.Server.APIPrefix); err != nil {
		return err
	}
	for _, reserved := range reservedPrefixes {
		if c.Server.APIPrefix == reserved || strings.HasPrefix(c.Server.APIPrefix, reserved+"/") {
			return fmt.Errorf("server.api_prefix %q collides with %s", c.Server.APIPrefix, reserved)
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.SessionDuration < 0 {
		return fmt.Errorf("auth.session_duration must be positive")
	}

	if !currencyPattern.MatchString(c.Site.Currency) {
		return fmt.Errorf("site.currency must be a three letter ISO 4217 code, got %q", c.Site.Currency)
	}

	if c.Metrics.Enabled {
		if err := validatePrefix("metrics.path", c.Metrics.Path); err != nil {
			return err
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func validatePrefix(key, p string) error {
	if !strings.HasPrefix(p, "/") || p == "/" || strings.HasSuffix(p, "/") {
		return fmt.Errorf("%s must start with / and not end with /, got %q", key, p)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Auth.SessionDurationRaw != "" {
		d, err := time.ParseDuration(cfg.Auth.SessionDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing session_duration %q: %w", cfg.Auth.SessionDurationRaw, err)
		}
		cfg.Auth.SessionDuration = d
	}
	return nil
}

// Template renders a starter config file. jwtSecret may be empty.
func Template(httpAddr, dbPath, baseURL, title, jwtSecret string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# darkroom configuration\n\n")
	fmt.Fprintf(&b, "server:\n  http_addr: %q\n", httpAddr)
	if baseURL != "" {
		fmt.Fprintf(&b, "  base_url: %q\n", baseURL)
	}
	fmt.Fprintf(&b, "  api_prefix: %q\n\n", DefaultAPIPrefix)
	fmt.Fprintf(&b, "database:\n  path: %q\n\n", dbPath)
	fmt.Fprintf(&b, "auth:\n")
	if jwtSecret != "" {
		fmt.Fprintf(&b, "  jwt_secret: %q\n", jwtSecret)
	} else {
		fmt.Fprintf(&b, "  # jwt_secret: \"${DARKROOM_JWT_SECRET}\"\n")
	}
	fmt.Fprintf(&b, "  session_duration: %q\n\n", "168h")
	fmt.Fprintf(&b, "site:\n  title: %q\n  currency: %q\n  dev_mode: false\n\n", title, DefaultCurrency)
	fmt.Fprintf(&b, "metrics:\n  enabled: false\n  path: %q\n\n", DefaultMetricsPath)
	fmt.Fprintf(&b, "logging:\n  level: \"info\"\n  format: \"text\"\n")
	return b.String()
}
