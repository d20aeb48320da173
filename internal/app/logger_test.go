package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		level string
		debug bool
		want  slog.Level
	}{
		{name: "info", level: "info", want: slog.LevelInfo},
		{name: "error", level: "error", want: slog.LevelError},
		{name: "debug env lowers warn", level: "warn", debug: true, want: slog.LevelDebug},
		{name: "debug env keeps debug", level: "debug", debug: true, want: slog.LevelDebug},
		{name: "unknown falls back", level: "chatty", want: slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger := newLogger(&Config{LogLevel: tc.level, LogFormat: "text"}, tc.debug, &bytes.Buffer{})

			assert.True(t, logger.Enabled(context.Background(), tc.want))
			assert.False(t, logger.Enabled(context.Background(), tc.want-1))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(&Config{LogLevel: "info", LogFormat: "json"}, false, &buf)

	logger.Info("hello", "module", "greeter")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "greeter", record["module"])
}
