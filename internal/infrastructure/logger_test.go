package infrastructure

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanetl/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "warning alias", input: "warning", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "mixed case", input: "DEBUG", expected: slog.LevelDebug},
		{name: "unknown defaults to info", input: "trace", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestCreateLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: dir + "/run.log",
	}

	logger, err := createLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, CloseLogFile())
}

func TestNewRunID_Unique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
