package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAdapter_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()

	log, err := NewLoggerAdapter(Options{Dir: dir, Name: "tab 1/session", Level: "debug"})
	require.NoError(t, err)

	log.WithField("component", "bridge").Info("session started", "tab", "A1")
	log.Debug("details", "n", 3)
	require.NoError(t, log.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*_tab_1_session.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	require.Len(t, entries, 2)
	assert.Equal(t, "session started", entries[0]["message"])
	assert.Equal(t, "bridge", entries[0]["component"])
	assert.Equal(t, "A1", entries[0]["tab"])
	assert.Equal(t, "debug", entries[1]["level"])
}

func TestLoggerAdapter_InvalidLevel(t *testing.T) {
	_, err := NewLoggerAdapter(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "session", sanitize("///"))
	assert.Equal(t, "voice-nav_1", sanitize("voice-nav 1"))
	assert.Len(t, sanitize(strings.Repeat("a", 100)), 60)
}
