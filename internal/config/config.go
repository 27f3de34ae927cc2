// Package config provides connection and tuning configuration for the
// solarium modules.
//
// Connection parameters are resolved in priority order:
//  1. the module args (solarwinds_connection block)
//  2. environment (SOLARWINDS_HOSTNAME, SOLARWINDS_USERNAME, SOLARWINDS_PASSWORD)
//  3. config file
//
// Config file locations (priority order):
//  1. $SOLARIUM_CONFIG
//  2. ./solarium.yaml
//  3. ~/.config/solarium/config.yaml
//  4. /etc/solarium/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"solarium/internal/swis"
)

// Environment variables consulted for connection fallback.
const (
	EnvHostname = "SOLARWINDS_HOSTNAME"
	EnvUsername = "SOLARWINDS_USERNAME"
	EnvPassword = "SOLARWINDS_PASSWORD"

	envConfigPath = "SOLARIUM_CONFIG"
)

// Config is the on-disk configuration file.
type Config struct {
	Connection swis.Connection `yaml:"solarwinds_connection"`

	// RequestTimeoutSeconds bounds each SWIS request.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds,omitempty"`

	// Discovery poll tuning; zero keeps the built-in bounds.
	DiscoveryRetries         int `yaml:"discovery_retries,omitempty"`
	DiscoveryIntervalSeconds int `yaml:"discovery_interval_seconds,omitempty"`

	// Cache holds the local query result cache settings.
	Cache CacheConfig `yaml:"cache,omitempty"`
}

// CacheConfig configures the local query result cache.
type CacheConfig struct {
	Path string `yaml:"path,omitempty"`
}

// RequestTimeout returns the configured SWIS request timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return swis.DefaultTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DiscoveryInterval returns the configured discovery poll interval, zero
// when unset.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.DiscoveryIntervalSeconds) * time.Second
}

// CachePath returns the query cache location, defaulting next to the user
// config directory.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./solarium-cache.db"
	}
	return filepath.Join(home, ".config", "solarium", "cache.db")
}

// FindConfigPath returns the first existing config file location, or "".
func FindConfigPath() string {
	candidates := []string{}
	if env := os.Getenv(envConfigPath); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates, "./solarium.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "solarium", "config.yaml"))
	}
	candidates = append(candidates, "/etc/solarium/config.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load finds and loads the config file, or returns defaults if none found.
func Load() (*Config, error) {
	path := FindConfigPath()
	if path == "" {
		return &Config{}, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ResolveConnection merges the connection from args over environment over
// config file, field by field, and validates the result.
func (c *Config) ResolveConnection(args swis.Connection) (swis.Connection, error) {
	conn := args

	if conn.Hostname == "" {
		conn.Hostname = os.Getenv(EnvHostname)
	}
	if conn.Username == "" {
		conn.Username = os.Getenv(EnvUsername)
	}
	if conn.Password == "" {
		conn.Password = os.Getenv(EnvPassword)
	}

	if conn.Hostname == "" {
		conn.Hostname = c.Connection.Hostname
	}
	if conn.Username == "" {
		conn.Username = c.Connection.Username
	}
	if conn.Password == "" {
		conn.Password = c.Connection.Password
	}
	if !conn.IgnoreTLS {
		conn.IgnoreTLS = c.Connection.IgnoreTLS
	}
	if conn.Timeout == 0 {
		conn.Timeout = c.RequestTimeout()
	}

	if err := conn.Validate(); err != nil {
		return swis.Connection{}, err
	}
	return conn, nil
}
