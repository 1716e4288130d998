package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	lvl, err := parseLogLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = parseLogLevel("trace")
	assert.Error(t, err)
}

func TestSetupLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(LogLevelWarn, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "code", "0x10")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "code=0x10")
}

func logNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestOpenLogFile_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	// An unrelated file is never pruned.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	for i := 0; i < 4; i++ {
		now := start.Add(time.Duration(i) * time.Minute)
		f, err := openLogFile(dir, 3, now)
		require.NoError(t, err)
		require.NotNil(t, f)
		require.NoError(t, f.Close())
		// Make modification order match creation order.
		require.NoError(t, os.Chtimes(f.Name(), now, now))
	}

	assert.Equal(t, []string{
		"notes.txt",
		"pcremote-2024-03-01_08-01-00.log",
		"pcremote-2024-03-01_08-02-00.log",
		"pcremote-2024-03-01_08-03-00.log",
	}, logNames(t, dir))
}

func TestOpenLogFile_KeepZeroDisablesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	f, err := openLogFile(dir, 0, time.Now())
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
