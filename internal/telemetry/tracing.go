package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "repolens"

// TracingConfig selects the OTLP endpoint spans are exported to. An empty
// Endpoint disables tracing.
type TracingConfig struct {
	Endpoint         string
	LangSmithAPIKey  string
	LangSmithProject string
	SampleRate       float64 // 0 means 1
}

// Providers holds the SDK tracer provider. When tracing is disabled tp is nil
// and Shutdown is a no-op.
type Providers struct {
	tp *sdktrace.TracerProvider
}

// InitTracing installs a global tracer provider exporting over OTLP/gRPC.
// Spans created through otel.Tracer before this call stay noop.
func InitTracing(ctx context.Context, cfg TracingConfig, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, using noop provider")
		return &Providers{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(buildVersion()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if headers := exportHeaders(cfg); len(headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(headers))
	} else {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.Bool("langsmith", cfg.LangSmithAPIKey != ""),
		zap.Float64("sample_rate", rate),
	)
	return &Providers{tp: tp}, nil
}

// exportHeaders authenticates against a LangSmith OTLP collector. Requests
// carrying an API key always go over TLS.
func exportHeaders(cfg TracingConfig) map[string]string {
	if cfg.LangSmithAPIKey == "" {
		return nil
	}
	h := map[string]string{"x-api-key": cfg.LangSmithAPIKey}
	if cfg.LangSmithProject != "" {
		h["Langsmith-Project"] = cfg.LangSmithProject
	}
	return h
}

// Shutdown flushes pending spans and closes the exporter.
// Safe to call on a nil or noop Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	var errs []error
	if err := p.tp.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush tracer provider: %w", err))
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	return errors.Join(errs...)
}

// buildVersion extracts the module version from Go build info.
// Falls back to "dev" if unavailable.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
