package surrealdesk

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/surrealdb/surrealdesk/pkg/workspace"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a surrealdesk process.
//
// Settings are layered: built-in defaults, then the YAML file passed with
// --config, then SURREALDESK_* environment variables, then command line
// flags. StoreURL and StoreKey have no default and must be set.
type Config struct {
	// StoreURL selects the remote store by scheme: ws, wss, http and https
	// reach SurrealDB, postgres and postgresql reach PostgreSQL and memory
	// keeps everything in process.
	StoreURL string `yaml:"store_url"`
	// StoreKey is the store's public API key. SurrealDB takes it as a JWT or
	// "user:pass"; the other backends use it to sign session tokens.
	StoreKey  string `yaml:"store_key"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`

	Addr       string `yaml:"addr"`
	LogLevel   string `yaml:"log_level"`
	LogConsole bool   `yaml:"log_console"`
	LogPath    string `yaml:"log_path"`

	// ReadOnly rejects every store write, for maintenance windows.
	ReadOnly bool   `yaml:"read_only"`
	RedisURL string `yaml:"redis_url"`

	LoadTimeout  time.Duration `yaml:"load_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RefreshLead  time.Duration `yaml:"refresh_lead"`
}

// DefaultConfig returns a config with every optional setting filled in.
func DefaultConfig() Config {
	return Config{
		Namespace:    "surrealdesk",
		Database:     "surrealdesk",
		Addr:         ":8080",
		LogLevel:     "info",
		LogConsole:   true,
		LoadTimeout:  workspace.DefaultLoadTimeout,
		WriteTimeout: workspace.DefaultWriteTimeout,
		RefreshLead:  time.Minute,
	}
}

// ConfigError reports a missing or malformed setting. It is fatal.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (skipped when path is empty) and the environment. It does not validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SURREALDESK_STORE_URL": &c.StoreURL,
		"SURREALDESK_STORE_KEY": &c.StoreKey,
		"SURREALDESK_NAMESPACE": &c.Namespace,
		"SURREALDESK_DATABASE":  &c.Database,
		"SURREALDESK_ADDR":      &c.Addr,
		"SURREALDESK_LOG_LEVEL": &c.LogLevel,
		"SURREALDESK_LOG_PATH":  &c.LogPath,
		"SURREALDESK_REDIS_URL": &c.RedisURL,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"SURREALDESK_READ_ONLY":   &c.ReadOnly,
		"SURREALDESK_LOG_CONSOLE": &c.LogConsole,
	}
	for name, dst := range bools {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: name, Reason: fmt.Sprintf("is not a boolean: %q", v)}
		}
		*dst = b
	}

	durations := map[string]*time.Duration{
		"SURREALDESK_LOAD_TIMEOUT":  &c.LoadTimeout,
		"SURREALDESK_WRITE_TIMEOUT": &c.WriteTimeout,
		"SURREALDESK_REFRESH_LEAD":  &c.RefreshLead,
	}
	for name, dst := range durations {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigError{Field: name, Reason: fmt.Sprintf("is not a duration: %q", v)}
		}
		*dst = d
	}
	return nil
}

// Backend is the kind of remote store a URL points at.
type Backend string

const (
	BackendSurreal  Backend = "surrealdb"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// Backend derives the store kind from the URL scheme.
func (c Config) Backend() (Backend, error) {
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return "", &ConfigError{Field: "store_url", Reason: fmt.Sprintf("is not a URL: %v", err)}
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss", "http", "https":
		return BackendSurreal, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "memory":
		return BackendMemory, nil
	default:
		return "", &ConfigError{Field: "store_url", Reason: fmt.Sprintf("has unsupported scheme %q", u.Scheme)}
	}
}

// Validate checks the required settings. Every problem is a *ConfigError.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StoreURL) == "" {
		errs = append(errs, &ConfigError{Field: "store_url", Reason: "is required (SURREALDESK_STORE_URL)"})
	} else if _, err := c.Backend(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.StoreKey) == "" {
		errs = append(errs, &ConfigError{Field: "store_key", Reason: "is required (SURREALDESK_STORE_KEY)"})
	}
	if c.Addr == "" {
		errs = append(errs, &ConfigError{Field: "addr", Reason: "must not be empty"})
	}
	if c.LoadTimeout <= 0 {
		errs = append(errs, &ConfigError{Field: "load_timeout", Reason: "must be positive"})
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, &ConfigError{Field: "write_timeout", Reason: "must be positive"})
	}
	return errors.Join(errs...)
}
