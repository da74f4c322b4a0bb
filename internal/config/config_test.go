package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads. Viper treats empty
// variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY",
		"NOTION_TOKEN",
		"EXPENSE_LOG_LEVEL",
		"EXPENSE_LOG_FORMAT",
		"EXPENSE_SERVER_PORT",
		"EXPENSE_DATABASE_PATH",
		"EXPENSE_PARSER_MODEL",
		"EXPENSE_PARSER_TIMEOUT_SECONDS",
		"EXPENSE_JOBS_WORKERS",
		"EXPENSE_EXPORT_NOTION_ENABLED",
		"EXPENSE_EXPORT_NOTION_DATABASE_ID",
		"EXPENSE_EXPORT_BIGQUERY_ENABLED",
		"EXPENSE_EXPORT_BIGQUERY_PROJECT_ID",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInitializeConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := InitializeConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 15*time.Second, cfg.WriteTimeout())
	assert.Equal(t, 60*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, "expense-tracker.db", cfg.Database.Path)
	assert.Equal(t, "gemini-2.5-flash", cfg.Parser.Model)
	assert.Equal(t, 30*time.Second, cfg.ParseTimeout())
	assert.Empty(t, cfg.Parser.APIKey)
	assert.Equal(t, 10, cfg.Ingestion.MinMessageLength)
	assert.Equal(t, 2000, cfg.Ingestion.MaxMessageLength)
	assert.Equal(t, 5, cfg.Jobs.Workers)
	assert.Equal(t, 100, cfg.Jobs.BufferSize)
	assert.False(t, cfg.Export.BigQuery.Enabled)
	assert.Equal(t, "ledger_events", cfg.Export.BigQuery.Table)
	assert.False(t, cfg.Export.Notion.Enabled)
}

func TestInitializeConfig_EnvironmentVariables(t *testing.T) {
	clearEnv(t)

	t.Setenv("EXPENSE_LOG_LEVEL", "debug")
	t.Setenv("EXPENSE_LOG_FORMAT", "json")
	t.Setenv("EXPENSE_SERVER_PORT", "9090")
	t.Setenv("EXPENSE_PARSER_TIMEOUT_SECONDS", "5")
	t.Setenv("EXPENSE_JOBS_WORKERS", "2")
	t.Setenv("GEMINI_API_KEY", "test-api-key")
	t.Setenv("NOTION_TOKEN", "secret_notion")
	t.Setenv("EXPENSE_EXPORT_NOTION_ENABLED", "true")
	t.Setenv("EXPENSE_EXPORT_NOTION_DATABASE_ID", "db-123")

	cfg, err := InitializeConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, 5*time.Second, cfg.ParseTimeout())
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, "test-api-key", cfg.Parser.APIKey)
	assert.True(t, cfg.Export.Notion.Enabled)
	assert.Equal(t, "secret_notion", cfg.Export.Notion.Token)
	assert.Equal(t, "db-123", cfg.Export.Notion.DatabaseID)
}

func TestInitializeConfig_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
log:
  level: warn
database:
  path: /tmp/ledger.db
ingestion:
  min_message_length: 5
export:
  bigquery:
    enabled: true
    project_id: my-project
`)
	t.Setenv("EXPENSE_DATABASE_PATH", "/data/override.db")

	cfg, err := InitializeConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/data/override.db", cfg.Database.Path, "environment wins over file")
	assert.Equal(t, 5, cfg.Ingestion.MinMessageLength)
	assert.True(t, cfg.Export.BigQuery.Enabled)
	assert.Equal(t, "my-project", cfg.Export.BigQuery.ProjectID)
	assert.Equal(t, "expense_tracker", cfg.Export.BigQuery.Dataset)
}

func TestInitializeConfig_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := InitializeConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInitializeConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"log level", map[string]string{"EXPENSE_LOG_LEVEL": "loud"}, ""},
		{"log format", map[string]string{"EXPENSE_LOG_FORMAT": "xml"}, ""},
		{"timeout too long", map[string]string{"EXPENSE_PARSER_TIMEOUT_SECONDS": "301"}, ""},
		{"timeout zero", map[string]string{"EXPENSE_PARSER_TIMEOUT_SECONDS": "0"}, ""},
		{"workers", map[string]string{"EXPENSE_JOBS_WORKERS": "0"}, ""},
		{"port", map[string]string{"EXPENSE_SERVER_PORT": "70000"}, ""},
		{"notion without token", map[string]string{
			"EXPENSE_EXPORT_NOTION_ENABLED":     "true",
			"EXPENSE_EXPORT_NOTION_DATABASE_ID": "db",
		}, ""},
		{"bigquery without project", map[string]string{"EXPENSE_EXPORT_BIGQUERY_ENABLED": "true"}, ""},
		{"length bounds", nil, "ingestion:\n  min_message_length: 50\n  max_message_length: 20\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := InitializeConfig(writeConfig(t, tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "EXPENSE_DOTENV_TEST_MARKER"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=loaded\n"), 0o600))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv(key))
}
