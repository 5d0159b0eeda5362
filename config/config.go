// Package config reads engine settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvArenaBytes = "VISIONENGINE_ARENA_BYTES"
	EnvMaxBlobs   = "VISIONENGINE_MAX_BLOBS"
	EnvLogLevel   = "VISIONENGINE_LOG_LEVEL"
)

// DefaultArenaBytes sizes the scratch arena when EnvArenaBytes is unset.
const DefaultArenaBytes = 256 << 10

// Config holds the engine settings.
type Config struct {
	// ArenaBytes is the scratch arena capacity.
	ArenaBytes int

	// MaxBlobs caps blob results for calls that set no cap of their own.
	// Zero means no cap.
	MaxBlobs int

	// LogLevel is "info" or "debug".
	LogLevel string
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{ArenaBytes: DefaultArenaBytes, LogLevel: "info"}
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "debug")
}

// Load reads the settings from the process environment. Variables in the
// given .env files (or ./.env when none are named) are added first without
// overriding ones already set. Missing files are skipped; a file that exists
// but does not parse is an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return parse(os.LookupEnv)
}

// FromFile reads the settings from a single .env file without touching the
// process environment.
func FromFile(path string) (*Config, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

func parse(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvArenaBytes); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive integer", EnvArenaBytes, v)
		}
		cfg.ArenaBytes = n
	}

	if v, ok := lookup(EnvMaxBlobs); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a non-negative integer", EnvMaxBlobs, v)
		}
		cfg.MaxBlobs = n
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		switch level := strings.ToLower(strings.TrimSpace(v)); level {
		case "info", "debug":
			cfg.LogLevel = level
		default:
			return nil, fmt.Errorf("invalid %s %q: want info or debug", EnvLogLevel, v)
		}
	}

	return cfg, nil
}
