package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 64, cfg.Actor.Throughput)
	assert.Equal(t, time.Duration(0), cfg.Actor.DefaultTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadReader(t *testing.T) {
	t.Parallel()

	doc := `
log:
  level: debug
  json: true
actor:
  throughput: 8
  default_timeout: 250ms
wire:
  compression: zstd
timer:
  location: UTC
`

	cfg, err := LoadReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 8, cfg.Actor.Throughput)
	assert.Equal(t, 250*time.Millisecond, cfg.Actor.DefaultTimeout)
	assert.Equal(t, "zstd", cfg.Wire.Compression)
	assert.Equal(t, 32, cfg.Actor.Shards, "untouched fields keep defaults")

	loc, err := cfg.Timer.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadReader_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := LoadReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default().Wire, cfg.Wire)
}

func TestLoadReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadReader(strings.NewReader("actor:\n  bogus: 1\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"negative pool", func(c *Config) { c.Actor.PoolSize = -1 }},
		{"zero throughput", func(c *Config) { c.Actor.Throughput = 0 }},
		{"negative timeout", func(c *Config) { c.Actor.DefaultTimeout = -time.Second }},
		{"zero shards", func(c *Config) { c.Actor.Shards = 0 }},
		{"tiny frames", func(c *Config) { c.Wire.MaxFrameSize = 4 }},
		{"unknown compression", func(c *Config) { c.Wire.Compression = "rar" }},
		{"unknown zone", func(c *Config) { c.Timer.Location = "Mars/Olympus_Mons" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

//nolint:paralleltest // mutates process environment
func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamecore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actor:\n  throughput: 8\n"), 0o600))

	t.Setenv("GAMECORE_ACTOR_THROUGHPUT", "16")
	t.Setenv("GAMECORE_WIRE_MAX_FRAME_SIZE", "4096")
	t.Setenv("GAMECORE_LOG_LEVEL", " warn ")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Actor.Throughput)
	assert.Equal(t, 4096, cfg.Wire.MaxFrameSize)
	assert.Equal(t, slog.LevelWarn, cfg.Log.SlogLevel())
}

//nolint:paralleltest // mutates process environment
func TestLoad_TelemetryEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_SERVICE_NAME", "zone-7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http://collector:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "zone-7", cfg.Telemetry.ServiceName)
	assert.Equal(t, "1.0.0", cfg.Telemetry.ServiceVersion)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.Timeout)
}

//nolint:paralleltest // mutates process environment
func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("GAMECORE_ACTOR_SHARDS", "many")

	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

//nolint:paralleltest // mutates process environment
func TestReader(t *testing.T) {
	t.Setenv("GAMECORE_TEST_DURATION", "3s")
	t.Setenv("GAMECORE_TEST_BOOL", "nope")

	dur := Duration("GAMECORE_TEST_DURATION")
	require.True(t, dur.HasValue())

	val, err := dur.Value()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, val)

	bad := Bool("GAMECORE_TEST_BOOL")
	assert.True(t, bad.HasError())
	assert.False(t, bad.ValueOrElse(false))

	_, err = bad.Value()
	require.ErrorIs(t, err, ErrBadEnvVar)

	missing := Int("GAMECORE_TEST_MISSING")
	_, err = missing.Value()
	require.ErrorIs(t, err, ErrEnvVarMissing)

	assert.Equal(t, 7, Int("GAMECORE_TEST_MISSING", DefaultValue(7)).ValueOrElse(0))
	assert.Equal(t, "GAMECORE_TEST_MISSING=<not set>", missing.String())
}
