// Package config provides Viper-based hierarchical configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EXPENSE_DATABASE_PATH.
const EnvPrefix = "EXPENSE"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Server struct {
		Port                   int `mapstructure:"port" yaml:"port"`
		ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds    int `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
		ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	} `mapstructure:"server" yaml:"server"`

	Database struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Parser struct {
		Model          string `mapstructure:"model" yaml:"model"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		APIKey         string `mapstructure:"api_key" yaml:"-"`
	} `mapstructure:"parser" yaml:"parser"`

	Ingestion struct {
		MinMessageLength int `mapstructure:"min_message_length" yaml:"min_message_length"`
		MaxMessageLength int `mapstructure:"max_message_length" yaml:"max_message_length"`
	} `mapstructure:"ingestion" yaml:"ingestion"`

	Jobs struct {
		Workers    int `mapstructure:"workers" yaml:"workers"`
		BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
	} `mapstructure:"jobs" yaml:"jobs"`

	Storage struct {
		CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	} `mapstructure:"storage" yaml:"storage"`

	Export struct {
		BigQuery struct {
			Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
			ProjectID string `mapstructure:"project_id" yaml:"project_id"`
			Dataset   string `mapstructure:"dataset" yaml:"dataset"`
			Table     string `mapstructure:"table" yaml:"table"`
		} `mapstructure:"bigquery" yaml:"bigquery"`

		Notion struct {
			Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
			DatabaseID string `mapstructure:"database_id" yaml:"database_id"`
			Token      string `mapstructure:"token" yaml:"-"`
		} `mapstructure:"notion" yaml:"notion"`
	} `mapstructure:"export" yaml:"export"`
}

// InitializeConfig loads configuration in order of increasing precedence:
// defaults, config file, environment. An empty configFile searches
// $HOME/.expense-tracker and the working directory for config.yaml.
func InitializeConfig(configFile string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.expense-tracker")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("InitializeConfig: reading config file: %w", err)
		}
	}

	// Secrets come from their conventional unprefixed variables.
	if err := v.BindEnv("parser.api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("InitializeConfig: binding GEMINI_API_KEY: %w", err)
	}
	if err := v.BindEnv("export.notion.token", "NOTION_TOKEN"); err != nil {
		return nil, fmt.Errorf("InitializeConfig: binding NOTION_TOKEN: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("InitializeConfig: failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadDotEnv loads variables from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("LoadDotEnv: %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.shutdown_timeout_seconds", 60)

	v.SetDefault("database.path", "expense-tracker.db")

	v.SetDefault("parser.model", "gemini-2.5-flash")
	v.SetDefault("parser.timeout_seconds", 30)

	v.SetDefault("ingestion.min_message_length", 10)
	v.SetDefault("ingestion.max_message_length", 2000)

	v.SetDefault("jobs.workers", 5)
	v.SetDefault("jobs.buffer_size", 100)

	v.SetDefault("storage.credentials_file", "")

	v.SetDefault("export.bigquery.enabled", false)
	v.SetDefault("export.bigquery.project_id", "")
	v.SetDefault("export.bigquery.dataset", "expense_tracker")
	v.SetDefault("export.bigquery.table", "ledger_events")

	v.SetDefault("export.notion.enabled", false)
	v.SetDefault("export.notion.database_id", "")
}

func validateConfig(config *Config) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(config.Log.Level)); err != nil || config.Log.Level == "" {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "console" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", config.Log.Format)
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", config.Server.Port)
	}
	for name, v := range map[string]int{
		"server.read_timeout_seconds":     config.Server.ReadTimeoutSeconds,
		"server.write_timeout_seconds":    config.Server.WriteTimeoutSeconds,
		"server.shutdown_timeout_seconds": config.Server.ShutdownTimeoutSeconds,
		"parser.timeout_seconds":          config.Parser.TimeoutSeconds,
	} {
		if v < 1 || v > 300 {
			return fmt.Errorf("%s must be between 1 and 300, got: %d", name, v)
		}
	}

	if config.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if config.Ingestion.MinMessageLength < 1 {
		return fmt.Errorf("ingestion.min_message_length must be positive, got: %d", config.Ingestion.MinMessageLength)
	}
	if config.Ingestion.MaxMessageLength < config.Ingestion.MinMessageLength {
		return fmt.Errorf("ingestion.max_message_length (%d) must not be below min_message_length (%d)",
			config.Ingestion.MaxMessageLength, config.Ingestion.MinMessageLength)
	}

	if config.Jobs.Workers < 1 || config.Jobs.Workers > 100 {
		return fmt.Errorf("jobs.workers must be between 1 and 100, got: %d", config.Jobs.Workers)
	}
	if config.Jobs.BufferSize < 1 {
		return fmt.Errorf("jobs.buffer_size must be positive, got: %d", config.Jobs.BufferSize)
	}

	if bq := config.Export.BigQuery; bq.Enabled {
		if bq.ProjectID == "" || bq.Dataset == "" || bq.Table == "" {
			return fmt.Errorf("export.bigquery requires project_id, dataset and table when enabled")
		}
	}
	if n := config.Export.Notion; n.Enabled {
		if n.Token == "" {
			return fmt.Errorf("NOTION_TOKEN required when Notion export is enabled")
		}
		if n.DatabaseID == "" {
			return fmt.Errorf("export.notion.database_id required when Notion export is enabled")
		}
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// ParseTimeout is the per-message model call deadline.
func (c *Config) ParseTimeout() time.Duration {
	return time.Duration(c.Parser.TimeoutSeconds) * time.Second
}

// ReadTimeout, WriteTimeout and ShutdownTimeout configure the HTTP server.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
