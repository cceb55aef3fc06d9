package mindata

import (
	"time"
)

// Config consolidates settings for the API server and the generator tools.
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	Schemas  SchemasConfig  `json:"schemas" mapstructure:"schemas"`
	Query    QueryConfig    `json:"query" mapstructure:"query"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"write_timeout"`
}

// DatabaseConfig locates the SQLite database file and the rendered DDL.
type DatabaseConfig struct {
	Path    string `json:"path" mapstructure:"path"`
	DDLPath string `json:"ddlPath" mapstructure:"ddl_path"`
}

// SchemasConfig locates the JSON Schema corpus.
type SchemasConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// QueryConfig contains list-endpoint pagination settings.
type QueryConfig struct {
	DefaultPageSize int `json:"defaultPageSize" mapstructure:"default_page_size"`
	MaxPageSize     int `json:"maxPageSize" mapstructure:"max_page_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":3000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:    "data/mineral-data.db",
			DDLPath: "data/schema.sql",
		},
		Schemas: SchemasConfig{
			Dir: "schemas",
		},
		Query: QueryConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return &ConfigError{Field: "database.path", Message: "must not be empty"}
	}
	if c.Schemas.Dir == "" {
		return &ConfigError{Field: "schemas.dir", Message: "must not be empty"}
	}
	if c.Query.DefaultPageSize <= 0 {
		return &ConfigError{Field: "query.default_page_size", Message: "must be greater than 0"}
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return &ConfigError{Field: "query.max_page_size", Message: "must be greater than or equal to default_page_size"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
