// Package config loads the runtime settings for the actor system, the timer
// engine and the wire codec.
//
// Settings come from three layers, later ones winning: built-in defaults, an
// optional YAML file, and GAMECORE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "GAMECORE_"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full runtime configuration.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	Actor ActorConfig `yaml:"actor"`
	Wire  WireConfig  `yaml:"wire"`
	Timer TimerConfig `yaml:"timer"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	OTel  bool   `yaml:"otel"`
}

type ActorConfig struct {
	// PoolSize bounds the goroutines draining lanes. Zero means unbounded.
	PoolSize int `yaml:"pool_size"`
	// Throughput is how many items a lane runs before yielding its worker.
	Throughput int `yaml:"throughput"`
	// DefaultTimeout applies to items that set no timeout. Zero means none.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	Shards         int           `yaml:"shards"`
}

type WireConfig struct {
	MaxFrameSize int    `yaml:"max_frame_size"`
	Compression  string `yaml:"compression"`
}

// TelemetryConfig controls OTLP export of spans and log records.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP/HTTP collector base URL, e.g. http://collector:4318.
	Endpoint       string        `yaml:"endpoint"`
	ServiceName    string        `yaml:"service_name"`
	ServiceVersion string        `yaml:"service_version"`
	Environment    string        `yaml:"environment"`
	Timeout        time.Duration `yaml:"timeout"`
}

type TimerConfig struct {
	// Location is an IANA zone name used by calendar and cron rules.
	Location string `yaml:"location"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Actor: ActorConfig{
			Throughput:    64,
			SweepInterval: time.Minute,
			Shards:        32,
		},
		Wire: WireConfig{
			MaxFrameSize: 1 << 20,
			Compression:  "none",
		},
		Timer: TimerConfig{
			Location: "Local",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "gamecore",
			ServiceVersion: "1.0.0",
			Timeout:        5 * time.Second,
		},
	}
}

// Load reads path on top of the defaults and then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadReader is Load for an already opened YAML document.
func LoadReader(r io.Reader) (*Config, error) {
	cfg := Default()

	if err := decode(r, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

// ApplyEnv overrides fields from GAMECORE_* variables. The first variable that
// is set but unparseable aborts with its error.
func (c *Config) ApplyEnv() error {
	level := String(EnvPrefix + "LOG_LEVEL")
	logJSON := Bool(EnvPrefix + "LOG_JSON")
	logOTel := Bool(EnvPrefix + "LOG_OTEL")
	poolSize := Int(EnvPrefix + "ACTOR_POOL_SIZE")
	throughput := Int(EnvPrefix + "ACTOR_THROUGHPUT")
	timeout := Duration(EnvPrefix + "ACTOR_DEFAULT_TIMEOUT")
	sweep := Duration(EnvPrefix + "ACTOR_SWEEP_INTERVAL")
	shards := Int(EnvPrefix + "ACTOR_SHARDS")
	maxFrame := Int(EnvPrefix + "WIRE_MAX_FRAME_SIZE")
	compression := String(EnvPrefix + "WIRE_COMPRESSION")
	location := String(EnvPrefix + "TIMER_LOCATION")
	otelEnabled := Bool("OTEL_ENABLED")
	otelEndpoint := String("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelService := String("OTEL_SERVICE_NAME")
	otelVersion := String("OTEL_SERVICE_VERSION")
	otelTimeout := Duration("OTEL_EXPORTER_OTLP_TIMEOUT")

	for _, rdr := range []interface{ HasError() bool }{
		level, logJSON, logOTel, poolSize, throughput, timeout, sweep, shards, maxFrame, compression, location,
		otelEnabled, otelEndpoint, otelService, otelVersion, otelTimeout,
	} {
		if rdr.HasError() {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, rdr)
		}
	}

	level.DoWithValue(func(v string) { c.Log.Level = v })
	logJSON.DoWithValue(func(v bool) { c.Log.JSON = v })
	logOTel.DoWithValue(func(v bool) { c.Log.OTel = v })
	poolSize.DoWithValue(func(v int) { c.Actor.PoolSize = v })
	throughput.DoWithValue(func(v int) { c.Actor.Throughput = v })
	timeout.DoWithValue(func(v time.Duration) { c.Actor.DefaultTimeout = v })
	sweep.DoWithValue(func(v time.Duration) { c.Actor.SweepInterval = v })
	shards.DoWithValue(func(v int) { c.Actor.Shards = v })
	maxFrame.DoWithValue(func(v int) { c.Wire.MaxFrameSize = v })
	compression.DoWithValue(func(v string) { c.Wire.Compression = v })
	location.DoWithValue(func(v string) { c.Timer.Location = v })
	otelEnabled.DoWithValue(func(v bool) { c.Telemetry.Enabled = v })
	otelEndpoint.DoWithValue(func(v string) { c.Telemetry.Endpoint = v })
	otelService.DoWithValue(func(v string) { c.Telemetry.ServiceName = v })
	otelVersion.DoWithValue(func(v string) { c.Telemetry.ServiceVersion = v })
	otelTimeout.DoWithValue(func(v time.Duration) { c.Telemetry.Timeout = v })

	return nil
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}

	if c.Actor.PoolSize < 0 {
		return fmt.Errorf("%w: actor.pool_size must not be negative", ErrInvalidConfig)
	}

	if c.Actor.Throughput <= 0 {
		return fmt.Errorf("%w: actor.throughput must be positive", ErrInvalidConfig)
	}

	if c.Actor.DefaultTimeout < 0 {
		return fmt.Errorf("%w: actor.default_timeout must not be negative", ErrInvalidConfig)
	}

	if c.Actor.Shards <= 0 {
		return fmt.Errorf("%w: actor.shards must be positive", ErrInvalidConfig)
	}

	if c.Wire.MaxFrameSize < 20 {
		return fmt.Errorf("%w: wire.max_frame_size must hold at least a header", ErrInvalidConfig)
	}

	switch c.Wire.Compression {
	case "", "none", "zstd", "lz4", "brotli":
	default:
		return fmt.Errorf("%w: unknown wire.compression %q", ErrInvalidConfig, c.Wire.Compression)
	}

	if c.Telemetry.Timeout < 0 {
		return fmt.Errorf("%w: telemetry.timeout must not be negative", ErrInvalidConfig)
	}

	if _, err := c.Timer.TimeLocation(); err != nil {
		return fmt.Errorf("%w: timer.location: %w", ErrInvalidConfig, err)
	}

	return nil
}

// SlogLevel returns the configured level. Validate guarantees it parses.
func (l LogConfig) SlogLevel() slog.Level {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// TimeLocation resolves Location. "Local" and "" map to time.Local.
func (t TimerConfig) TimeLocation() (*time.Location, error) {
	switch t.Location {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(t.Location)
	}
}
