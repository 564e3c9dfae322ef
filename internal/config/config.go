package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/waabox/graphctl/internal/domain"
)

// Names of the required identifiers as operators know them.
const (
	EnvClientID     = "AZURE_CLIENT_ID"
	EnvClientSecret = "AZURE_CLIENT_SECRET"
	EnvTenantID     = "AZURE_TENANT_ID"
)

// AzureConfig holds the application registration and identity platform settings.
type AzureConfig struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret,omitempty"`
	Authority    string `toml:"authority"`
	Scope        string `toml:"scope"`
	DeviceScope  string `toml:"device_scope"`
}

// GraphConfig holds the resource API settings.
type GraphConfig struct {
	URL string `toml:"url"`
}

// Config holds all graphctl configuration.
type Config struct {
	Azure          AzureConfig `toml:"azure"`
	Graph          GraphConfig `toml:"graph"`
	Flow           string      `toml:"flow"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	LogLevel       string      `toml:"log_level"`
}

// environment is decoded by envconfig. Empty values leave the file settings untouched.
type environment struct {
	TenantID     string        `envconfig:"AZURE_TENANT_ID"`
	ClientID     string        `envconfig:"AZURE_CLIENT_ID"`
	ClientSecret string        `envconfig:"AZURE_CLIENT_SECRET"`
	Authority    string        `envconfig:"AZURE_AUTHORITY_HOST"`
	GraphURL     string        `envconfig:"GRAPH_URL"`
	Flow         string        `envconfig:"GRAPHCTL_FLOW"`
	Timeout      time.Duration `envconfig:"GRAPHCTL_TIMEOUT"`
	LogLevel     string        `envconfig:"GRAPHCTL_LOG_LEVEL"`
}

const (
	defaultAuthority   = "https://login.microsoftonline.com"
	defaultGraphURL    = "https://graph.microsoft.com"
	defaultScope       = "https://graph.microsoft.com/.default"
	defaultFlow        = domain.FlowClientCredentials
	defaultTimeoutSecs = 15
)

// Defaults returns a Config with every optional setting filled in and no identifiers.
func Defaults() Config {
	return Config{
		Azure: AzureConfig{
			Authority:   defaultAuthority,
			Scope:       defaultScope,
			DeviceScope: defaultScope,
		},
		Graph:          GraphConfig{URL: defaultGraphURL},
		Flow:           string(defaultFlow),
		TimeoutSeconds: defaultTimeoutSecs,
		LogLevel:       "warn",
	}
}

// FlowOrDefault returns Flow if set, otherwise the client-credentials grant.
func (c Config) FlowOrDefault() domain.Flow {
	if c.Flow != "" {
		return domain.Flow(c.Flow)
	}
	return defaultFlow
}

// TimeoutOrDefault returns the per-request timeout.
func (c Config) TimeoutOrDefault() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultTimeoutSecs * time.Second
}

// Credentials returns the immutable identifiers handed to the grant flows.
func (c Config) Credentials() domain.Credentials {
	return domain.Credentials{
		ClientID:     c.Azure.ClientID,
		TenantID:     c.Azure.TenantID,
		ClientSecret: c.Azure.ClientSecret,
	}
}

// Validate checks that every identifier the flow needs is present.
// It returns a *domain.ConfigError naming all missing identifiers at once.
func (c Config) Validate(flow domain.Flow) error {
	if flow != domain.FlowClientCredentials && flow != domain.FlowDeviceCode {
		return fmt.Errorf("%w: unknown flow %q", domain.ErrConfiguration, flow)
	}
	var missing []string
	if c.Azure.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if flow.NeedsSecret() && c.Azure.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if c.Azure.TenantID == "" {
		missing = append(missing, EnvTenantID)
	}
	if len(missing) > 0 {
		return &domain.ConfigError{Missing: missing}
	}
	return nil
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns the defaults without error.
// Environment variables always take precedence over file values:
//   - AZURE_CLIENT_ID, AZURE_CLIENT_SECRET, AZURE_TENANT_ID override the azure identifiers
//   - AZURE_AUTHORITY_HOST overrides azure.authority
//   - GRAPH_URL            overrides graph.url
//   - GRAPHCTL_FLOW        overrides flow
//   - GRAPHCTL_TIMEOUT     overrides timeout_seconds (Go duration syntax)
//   - GRAPHCTL_LOG_LEVEL   overrides log_level
func LoadFrom(path string) (Config, error) {
	cfg := Defaults()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv exports the variables in a .env file without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// DefaultConfigPath returns the default path for the graphctl config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "graphctl", "config.toml")
}

func applyEnvOverrides(cfg *Config) error {
	var env environment
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	if env.TenantID != "" {
		cfg.Azure.TenantID = env.TenantID
	}
	if env.ClientID != "" {
		cfg.Azure.ClientID = env.ClientID
	}
	if env.ClientSecret != "" {
		cfg.Azure.ClientSecret = env.ClientSecret
	}
	if env.Authority != "" {
		cfg.Azure.Authority = env.Authority
	}
	if env.GraphURL != "" {
		cfg.Graph.URL = env.GraphURL
	}
	if env.Flow != "" {
		cfg.Flow = env.Flow
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.Timeout != 0 {
		if env.Timeout < time.Second {
			return fmt.Errorf("GRAPHCTL_TIMEOUT must be at least 1s, got %s", env.Timeout)
		}
		cfg.TimeoutSeconds = int(env.Timeout / time.Second)
	}
	return nil
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
