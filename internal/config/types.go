// Package config loads and validates declsql configuration from YAML, with
// environment overrides and optional hot reload.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leapstack-labs/declsql/internal/access"
	"github.com/leapstack-labs/declsql/pkg/adapter"
	"github.com/leapstack-labs/declsql/pkg/core"
	"github.com/leapstack-labs/declsql/pkg/dialect"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type" validate:"required"`

	// Path is the file path for file-based databases (SQLite).
	Path string `koanf:"path"`

	// Network databases.
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=0,max=65535"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	Schema string `koanf:"schema"`

	// Options holds extra driver parameters appended to the DSN.
	Options map[string]string `koanf:"options"`
}

// AdapterConfig converts the target to the adapter contract type.
func (t *TargetConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     t.Type,
		Path:     t.Path,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
	}
}

// Validate checks the target against the adapter registry.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// ServerConfig holds the HTTP boundary configuration.
type ServerConfig struct {
	Addr      string `koanf:"addr" validate:"required"`
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`
}

// Config is the full declsql configuration.
type Config struct {
	Server ServerConfig   `koanf:"server"`
	Target TargetConfig   `koanf:"target"`
	Limits core.Limits    `koanf:"limits"`
	Grants []access.Grant `koanf:"grants"`

	// Parallel runs independent queries of one request concurrently.
	Parallel bool `koanf:"parallel"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// ApplyDefaults fills unset fields, including the dialect's default schema
// for the configured target type.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8680"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	defaults := core.DefaultLimits()
	if c.Limits.MaxQueryCount == 0 {
		c.Limits.MaxQueryCount = defaults.MaxQueryCount
	}
	if c.Limits.MaxQueryPage == 0 {
		c.Limits.MaxQueryPage = defaults.MaxQueryPage
	}
	if c.Limits.MaxQueryDepth == 0 {
		c.Limits.MaxQueryDepth = defaults.MaxQueryDepth
	}
	if c.Limits.MaxUpdateCount == 0 {
		c.Limits.MaxUpdateCount = defaults.MaxUpdateCount
	}
	if c.Limits.DefaultCount == 0 {
		c.Limits.DefaultCount = defaults.DefaultCount
	}
	if c.Limits.IDField == "" {
		c.Limits.IDField = defaults.IDField
	}
	if c.Limits.CacheTTLSeconds == 0 {
		c.Limits.CacheTTLSeconds = defaults.CacheTTLSeconds
	}

	if c.Target.Schema == "" {
		if d, ok := dialect.Get(c.Target.Type); ok {
			c.Target.Schema = d.DefaultSchema
		}
	}
	if c.Target.Type == "postgres" && c.Target.Port == 0 {
		c.Target.Port = 5432
	}
	if c.Target.Type == "mysql" && c.Target.Port == 0 {
		c.Target.Port = 3306
	}
}

// Validate checks field constraints and the adapter registry.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return c.Target.Validate()
}
