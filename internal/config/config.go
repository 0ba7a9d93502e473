// Package config loads and represents the server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the bridge server.
type Config struct {
	// Host is the listen address. Empty binds all interfaces.
	Host string `yaml:"host"`
	// Port is the HTTP listen port.
	Port int `yaml:"port"`
	// Debug enables verbose logging and gin debug mode.
	Debug bool `yaml:"debug"`
	// APIKeys lists the bearer keys accepted on the local API. Empty
	// disables the check.
	APIKeys []string `yaml:"api-keys"`
	// Upstream configures the cloud-code endpoint.
	Upstream Upstream `yaml:"upstream"`
	// Credentials lists the upstream credentials handed to the auth manager.
	Credentials []Credential `yaml:"credentials"`
	// Logging configures file logging and rotation.
	Logging Logging `yaml:"logging"`
}

// Upstream holds the vendor endpoint settings.
type Upstream struct {
	// BaseURL overrides the default cloud-code base URL.
	BaseURL string `yaml:"base-url"`
	// UserAgent overrides the vendor User-Agent header.
	UserAgent string `yaml:"user-agent"`
}

// Credential is one upstream credential entry. An entry needs either a
// ready-to-use access token or a refresh token the auth manager can exchange.
type Credential struct {
	// Label is an optional human readable name used in logs.
	Label string `yaml:"label"`
	// AccessToken is a ready-to-use bearer token.
	AccessToken string `yaml:"access-token"`
	// RefreshToken allows the auth manager to mint fresh access tokens.
	RefreshToken string `yaml:"refresh-token"`
	// ClientID and ClientSecret override the default OAuth client.
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
}

// Logging controls log file output.
type Logging struct {
	// Dir is the directory for rotated log files. Empty logs to stdout only.
	Dir string `yaml:"dir"`
	// MaxSizeMB is the rotation threshold per file.
	MaxSizeMB int `yaml:"max-size-mb"`
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `yaml:"max-backups"`
	// Compress gzips rotated files.
	Compress bool `yaml:"compress"`
}

// Load reads and parses the YAML configuration at path, applies defaults and
// honors PORT/DEBUG environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8317
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Port = port
		}
	}
	if v := os.Getenv("DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Debug = debug
		}
	}
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
