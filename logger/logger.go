// Package logger configures log/slog for the runtime and carries log fields
// on the context, so code running on an actor lane logs with the actor's id
// and kind without threading a logger through every call.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/amp-labs/amp-gamecore/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Default subsystem name, set by ConfigureLogging.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes ConfigureLoggingWithOptions, which swaps global state.
var configMutex sync.Mutex //nolint:gochecknoglobals

type contextKey string

// Options is used to configure logging.
type Options struct {
	Subsystem   string
	JSON        bool
	MinLevel    slog.Level
	LegacyLevel slog.Level
	Output      io.Writer

	// OTel additionally sends every record to the global OpenTelemetry
	// logger provider through the otelslog bridge.
	OTel bool
}

// ConfigureLoggingWithOptions configures logging for the process and returns
// the default logger. Concurrent calls are serialized.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var handler slog.Handler

	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	} else {
		handler = slog.NewTextHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	}

	if opts.OTel {
		handler = &teeHandler{handlers: []slog.Handler{handler, otelslog.NewHandler(opts.Subsystem)}}
	}

	handler = &annotatedErrorHandler{inner: handler}

	logger := slog.New(handler)

	slog.SetDefault(logger)

	// Third-party code on the old log package is redirected into slog.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

// Option is a functional option for ConfigureLogging.
type Option func(*Options)

// WithOTel turns on the OpenTelemetry bridge.
func WithOTel() Option {
	return func(o *Options) {
		o.OTel = true
	}
}

// WithOutput overrides the output writer.
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		o.Output = w
	}
}

// ErrInvalidLogOutput is returned when an invalid log output destination is specified.
var ErrInvalidLogOutput = errors.New("invalid log output")

// ConfigureLogging configures logging from LOG_JSON, LOG_LEVEL,
// LEGACY_LOG_LEVEL and LOG_OUTPUT, then applies opts.
func ConfigureLogging(app string, opts ...Option) (*slog.Logger, error) {
	logJSON, err := config.Bool("LOG_JSON", config.DefaultValue(false)).Value()
	if err != nil {
		return nil, err
	}

	minLevel, err := config.SlogLevel("LOG_LEVEL", config.DefaultValue(slog.LevelInfo)).Value()
	if err != nil {
		return nil, err
	}

	legacyLevel, err := config.SlogLevel("LEGACY_LOG_LEVEL", config.DefaultValue(slog.LevelInfo)).Value()
	if err != nil {
		return nil, err
	}

	output, err := config.Map(config.String("LOG_OUTPUT"), func(outName string) (io.Writer, error) {
		switch outName {
		case "stdout":
			return os.Stdout, nil
		case "stderr":
			return os.Stderr, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidLogOutput, outName)
		}
	}).WithDefault(os.Stdout).Value()
	if err != nil {
		return nil, err
	}

	options := Options{
		Subsystem:   app,
		JSON:        logJSON,
		MinLevel:    minLevel,
		LegacyLevel: legacyLevel,
		Output:      output,
	}

	for _, o := range opts {
		o(&options)
	}

	return ConfigureLoggingWithOptions(options), nil
}

// ConfigureFromConfig configures logging from the log section of a loaded
// configuration.
func ConfigureFromConfig(app string, cfg config.LogConfig, opts ...Option) *slog.Logger {
	options := Options{
		Subsystem:   app,
		JSON:        cfg.JSON,
		MinLevel:    cfg.SlogLevel(),
		LegacyLevel: slog.LevelInfo,
		OTel:        cfg.OTel,
	}

	for _, o := range opts {
		o(&options)
	}

	return ConfigureLoggingWithOptions(options)
}

// WithMuted suppresses all logging for loggers obtained from the returned
// context.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// WithSubsystem overrides the subsystem for loggers obtained from the
// returned context.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the subsystem from the context, or the default one.
func GetSubsystem(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	if val, ok := ctx.Value(contextKey("subsystem")).(string); ok {
		return val
	}

	if val, ok := subsystem.Load().(string); ok {
		return val
	}

	return ""
}

// WithActor tags the context with the actor an item is running for.
func WithActor(ctx context.Context, id int64, kind string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("actor"), actorFields{id: id, kind: kind})
}

type actorFields struct {
	id   int64
	kind string
}

// GetActor returns the actor id and kind set by WithActor.
func GetActor(ctx context.Context) (int64, string, bool) { //nolint:contextcheck
	if ctx == nil {
		return 0, "", false
	}

	fields, ok := ctx.Value(contextKey("actor")).(actorFields)

	return fields.id, fields.kind, ok
}

//nolint:gochecknoglobals
var hostname = sync.OnceValue(func() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return h
})

// GetPodName returns the pod name (or hostname if not running in k8s).
func GetPodName() string {
	return hostname()
}

func getRealContext(ctx ...context.Context) context.Context {
	for _, c := range ctx {
		if c != nil {
			return c
		}
	}

	return context.Background()
}

var nullLogger = slog.New(slog.DiscardHandler) //nolint:gochecknoglobals

// Get returns the default logger enriched with the subsystem, the pod name
// and whatever the context carries (actor fields and values added by With).
//
//nolint:contextcheck
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := getRealContext(ctx...)

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default().With(
		"subsystem", GetSubsystem(realCtx),
		"pod", hostname())

	if id, kind, ok := GetActor(realCtx); ok {
		logger = logger.With("actor_id", id, "actor_kind", kind)
	}

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}

// With returns a new context with the given key/value pairs added to every
// logger obtained from it.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	existing := getValues(ctx)
	vals := make([]any, 0, len(existing)+len(values))
	vals = append(vals, existing...)
	vals = append(vals, values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	vals, _ := ctx.Value(contextKey("loggerValues")).([]any)

	return vals
}
