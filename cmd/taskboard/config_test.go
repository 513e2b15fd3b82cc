package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadState_MissingFileIsEmpty(t *testing.T) {
	s, err := LoadState(filepath.Join(t.TempDir(), "session.yaml"))

	require.NoError(t, err)
	assert.Equal(t, &State{}, s)
}

func TestSaveState_RoundTripsOwnerOnly(t *testing.T) {
	path := statePath(filepath.Join(t.TempDir(), "nested"))
	in := &State{URL: "http://gw:8080", Token: "tok", Email: "ann@example.com", Project: "p-1"}

	require.NoError(t, SaveState(path, in))
	out, err := LoadState(path)

	require.NoError(t, err)
	assert.Equal(t, in, out)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: [unclosed"), 0o600))

	_, err := LoadState(path)

	assert.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TASKBOARD_URL", "")
	os.Unsetenv("TASKBOARD_URL")

	cfg, err := LoadConfig(nil, t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, defaultURL, cfg.URL)
	assert.Equal(t, "ERROR", cfg.LogLevel)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("url: http://from-file:1\nlog_level: INFO\n"), 0o600))
	t.Setenv("TASKBOARD_URL", "http://from-env:2/")

	root := rootCmd()
	require.NoError(t, root.PersistentFlags().Set("log-level", "DEBUG"))

	cfg, err := LoadConfig(root, dir)

	require.NoError(t, err)
	assert.Equal(t, "http://from-env:2", cfg.URL, "env beats the file and the trailing slash is dropped")
	assert.Equal(t, "DEBUG", cfg.LogLevel, "flag beats the file")
}

func TestLoadConfig_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("url: [x"), 0o600))

	_, err := LoadConfig(nil, dir)

	assert.Error(t, err)
}
