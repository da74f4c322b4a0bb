package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log := New()
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestNewFromConfig_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewFromConfig("warn", FormatJSON, buf)
	require.NoError(t, err)

	log.Info().Msg("dropped")
	log.Warn().Str("user_id", "u1").Msg("kept")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "u1", line["user_id"])
}

func TestNewFromConfig_Console(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewFromConfig("DEBUG", FormatConsole, buf)
	require.NoError(t, err)

	log.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNewFromConfig_Invalid(t *testing.T) {
	_, err := NewFromConfig("loud", FormatJSON, nil)
	assert.Error(t, err)

	_, err = NewFromConfig("", FormatJSON, nil)
	assert.Error(t, err)

	_, err = NewFromConfig("info", "xml", nil)
	assert.Error(t, err)
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	assert.NotNil(t, ctx.Value(LoggerKey))
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	assert.NotZero(t, buf.Len())
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"user_id": "123",
		"action":  "test",
	})

	log.Info().Msg("test message")

	assert.Contains(t, buf.String(), `"user_id":"123"`)
	assert.Contains(t, buf.String(), `"action":"test"`)
}
