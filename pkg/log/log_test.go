package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitLevelParsing tests that every level name, including one
// converted from a plain flag string, maps to the right global level
func TestInitLevelParsing(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  zerolog.Level
	}{
		{"debug", DebugLevel, zerolog.DebugLevel},
		{"info", InfoLevel, zerolog.InfoLevel},
		{"warn", WarnLevel, zerolog.WarnLevel},
		{"error", ErrorLevel, zerolog.ErrorLevel},
		{"flag string converts", Level("warn"), zerolog.WarnLevel},
		{"unknown defaults to info", Level("bogus"), zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(Config{Level: tt.level, JSONOutput: true, Output: &bytes.Buffer{}})
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

// TestWithComponentEmitsField tests that a bound component logger
// stamps every event with the component field
func TestWithComponentEmitsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithComponent("storage")
	logger.Warn().Str("dataId", "app.yaml").Msg("something happened")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "storage", entry["component"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "app.yaml", entry["dataId"])
	assert.Equal(t, "something happened", entry["message"])
}
