package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/sqlbulk/pkg/bulk"
	"github.com/ruslano69/sqlbulk/pkg/retry"
)

// Config represents the sqlbulk configuration file
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Table    string         `yaml:"table"`               // destination, [schema.]table
	Workers  int            `yaml:"workers,omitempty"`   // concurrent commits, one connection each
	LogLevel string         `yaml:"log_level,omitempty"` // zerolog level name
	Bulk     bulk.Settings  `yaml:"bulk"`
	Retry    retry.Config   `yaml:"retry"`
}

// DatabaseConfig contains SQL Server connection settings
type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port,omitempty"`
	Database    string `yaml:"database"`
	User        string `yaml:"user,omitempty"`
	Password    string `yaml:"password,omitempty"`
	WindowsAuth bool   `yaml:"windows_auth,omitempty"` // integrated security instead of user/password
	Encrypt     string `yaml:"encrypt,omitempty"`      // disable, false, true
}

// LoadConfig loads configuration from YAML file. Missing bulk settings
// keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := CreateSampleConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves configuration to YAML file
func SaveConfig(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateSampleConfig returns a configuration for a local development server
func CreateSampleConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     1433,
			Database: "DevDB",
			User:     "sa",
			Password: "DevPassword123!",
			Encrypt:  "disable",
		},
		Table:    "dbo.Products",
		Workers:  4,
		LogLevel: "info",
		Bulk:     bulk.DefaultSettings(),
		Retry:    retry.EnableRetry(3, 500*time.Millisecond),
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if c.Table == "" {
		return fmt.Errorf("table is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if err := c.Bulk.Validate(); err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}

// BuildDSN constructs the sqlserver:// connection string
func (c *DatabaseConfig) BuildDSN() string {
	host := c.Host
	if c.Port != 0 {
		host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}

	query := url.Values{}
	query.Set("database", c.Database)
	if c.Encrypt != "" {
		query.Set("encrypt", c.Encrypt)
	}

	u := &url.URL{Scheme: "sqlserver", Host: host}
	if c.WindowsAuth {
		query.Set("integrated security", "SSPI")
	} else {
		u.User = url.UserPassword(c.User, c.Password)
	}
	u.RawQuery = query.Encode()
	return u.String()
}
