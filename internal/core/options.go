package core

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures a Node or a Flow.
type Option func(*options)

type options struct {
	name   string
	logger *zap.Logger
	tracer trace.Tracer
}

func newOptions(defaultName string, opts []Option) options {
	o := options{
		name:   defaultName,
		logger: zap.NewNop(),
		tracer: otel.Tracer("repolens/core"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithName names the node or flow in logs and span names.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for per-run spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
