package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskdump.log")

	logger, err := NewLogger(path, LevelDebug)
	require.NoError(t, err)
	logger.Info("hello", "key", "value")
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"hello"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewLoggerEmptyPathUsesStderr(t *testing.T) {
	logger, err := NewLogger("", LevelInfo)
	require.NoError(t, err)
	assert.Nil(t, logger.file)
	assert.NoError(t, logger.Close())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"level":"ERROR"`)
}

func TestChildLoggersCarryAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelInfo).WithUser("u1").WithSession("s1").With("task", 2)

	logger.Info("created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.EqualValues(t, 2, entry["task"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "debug", want: LevelDebug},
		{in: " WARN ", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "verbose", want: LevelInfo},
		{in: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}

	assert.True(t, ValidLevel("info"))
	assert.False(t, ValidLevel("verbose"))
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NopLogger()
	logger.Error("dropped")
	assert.NoError(t, logger.Close())
}
