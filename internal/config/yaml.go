package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level pakd configuration file.
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// AuthConfig controls signing key material and token issuance.
type AuthConfig struct {
	// KeyPath is the PEM file holding the RSA signing key. Empty means an
	// ephemeral per-process key (tokens will not survive a restart).
	KeyPath string `yaml:"key_path"`
	// SessionTTL bounds login session tokens, e.g. "24h".
	SessionTTL string `yaml:"session_ttl"`
	// CreateRateLimit is the number of key creations allowed per user per
	// minute.
	CreateRateLimit int `yaml:"create_rate_limit"`
}

// StoreConfig selects the key store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres, mysql
	DSN    string `yaml:"dsn"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	var cfg YAMLConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Auth: AuthConfig{
			SessionTTL:      "24h",
			CreateRateLimit: 3,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
