package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvArenaBytes, "")
	t.Setenv(EnvMaxBlobs, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Debug())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(EnvArenaBytes, "65536")
	t.Setenv(EnvMaxBlobs, "12")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 65536, cfg.ArenaBytes)
	assert.Equal(t, 12, cfg.MaxBlobs)
	assert.True(t, cfg.Debug())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"non-numeric arena", EnvArenaBytes, "lots"},
		{"zero arena", EnvArenaBytes, "0"},
		{"negative blob cap", EnvMaxBlobs, "-1"},
		{"unknown log level", EnvLogLevel, "verbose"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvArenaBytes, "")
			t.Setenv(EnvMaxBlobs, "")
			t.Setenv(EnvLogLevel, "")
			t.Setenv(tt.key, tt.value)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.env")
	content := "# scratch sizing\n" + EnvArenaBytes + "=4096\n" + EnvMaxBlobs + "=3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.ArenaBytes)
	assert.Equal(t, 3, cfg.MaxBlobs)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = FromFile(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoadSkipsMissingFiles(t *testing.T) {
	t.Setenv(EnvArenaBytes, "")
	t.Setenv(EnvLogLevel, "")
	// Load never overrides a variable that is already set, even to "".
	t.Setenv(EnvMaxBlobs, "")
	require.NoError(t, os.Unsetenv(EnvMaxBlobs))

	dir := t.TempDir()
	present := filepath.Join(dir, "present.env")
	require.NoError(t, os.WriteFile(present, []byte(EnvMaxBlobs+"=7\n"), 0o600))

	cfg, err := Load(filepath.Join(dir, "missing.env"), present)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxBlobs)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.env")
	require.NoError(t, os.WriteFile(path, []byte("BAD-KEY=1\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.env")
}
