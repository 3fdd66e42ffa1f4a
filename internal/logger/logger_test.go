package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(Config{Level: "warn", Console: &buf})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("attachment size mismatch", zap.String("attachment_id", "a1"))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "attachment size mismatch", entry["message"])
	assert.Equal(t, "a1", entry["attachment_id"])
}

func TestNewLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(Config{Level: "loud", Console: &buf})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_File(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "export.log")

	log, err := NewLogger(Config{Level: "info", File: file, Console: &buf})
	require.NoError(t, err)

	log.Info("export finished")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "export finished")
	assert.Contains(t, buf.String(), "export finished")
}

func TestNewDevelopmentLogger(t *testing.T) {
	assert.NotNil(t, NewDevelopmentLogger())
}
