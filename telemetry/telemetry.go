// Package telemetry exports lane spans and log records over OTLP/HTTP.
//
// Lanes always start spans through the global tracer provider, and the
// logger's OTel option always writes through the global logger provider.
// Until Initialize installs real providers both are no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/amp-labs/amp-gamecore/config"
	"github.com/amp-labs/amp-gamecore/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// clusterCollector is used when no endpoint is configured but the process
// runs inside Kubernetes.
const clusterCollector = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"

// Providers holds the installed SDK providers. The zero value is a valid
// no-op whose Shutdown does nothing.
type Providers struct {
	tracer *sdktrace.TracerProvider
	logs   *sdklog.LoggerProvider
}

// Enabled reports whether Initialize installed real providers.
func (p *Providers) Enabled() bool {
	return p != nil && p.tracer != nil
}

// Endpoint returns the collector base URL for cfg, falling back to the
// in-cluster collector when running in Kubernetes.
func Endpoint(cfg config.TelemetryConfig) string {
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/")
	}

	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return clusterCollector
	}

	return ""
}

// Initialize installs global trace and log providers that batch to the OTLP
// collector named by cfg. Disabled or endpoint-less configurations return
// no-op Providers.
func Initialize(ctx context.Context, cfg config.TelemetryConfig) (*Providers, error) {
	log := logger.Get(ctx)

	if !cfg.Enabled {
		log.Info("OpenTelemetry export is disabled")

		return &Providers{}, nil
	}

	endpoint := Endpoint(cfg)
	if endpoint == "" {
		log.Warn("OpenTelemetry endpoint not configured, export will be disabled")

		return &Providers{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint+"/v1/traces"),
		otlptracehttp.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(endpoint+"/v1/logs"),
		otlploghttp.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)

		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	providers := &Providers{
		tracer: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		),
		logs: sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		),
	}

	otel.SetTracerProvider(providers.tracer)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	global.SetLoggerProvider(providers.logs)

	log.Info("OpenTelemetry export initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"endpoint", endpoint,
	)

	return providers, nil
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	return errors.Join(p.tracer.Shutdown(ctx), p.logs.Shutdown(ctx))
}
