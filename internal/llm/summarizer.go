package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultSummaryTimeout bounds a single summarization call.
const DefaultSummaryTimeout = 60 * time.Second

const summaryInstruction = `Compress the following analysis conversation into a concise summary.
Keep key facts, file names, findings, decisions and open questions. Drop pleasantries and repeated tool output.
If an earlier summary is present, merge it with the new conversation into a single summary.
Reply with the summary only.

`

// Summarizer implements compact.Summarizer on top of an LLMProvider.
type Summarizer struct {
	provider LLMProvider
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithSummaryTimeout overrides DefaultSummaryTimeout. Zero disables the inner timeout.
func WithSummaryTimeout(d time.Duration) SummarizerOption {
	return func(s *Summarizer) { s.timeout = d }
}

// WithSummaryLogger sets the logger.
func WithSummaryLogger(l *zap.Logger) SummarizerOption {
	return func(s *Summarizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSummaryTracer sets the tracer. The default is the global tracer provider.
func WithSummaryTracer(t trace.Tracer) SummarizerOption {
	return func(s *Summarizer) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewSummarizer wraps provider.
func NewSummarizer(provider LLMProvider, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		provider: provider,
		timeout:  DefaultSummaryTimeout,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("repolens/llm"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize asks the model for a summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "llm.summarize",
		trace.WithAttributes(attribute.Int("input.bytes", len(text))))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.provider.CallLLM(ctx, []Message{
		{Role: RoleUser, Content: summaryInstruction + text},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", fmt.Errorf("summary generation failed: %w", ErrEmptyResponse)
	}
	span.SetAttributes(attribute.Int("output.bytes", len(out)))
	s.logger.Debug("summary generated",
		zap.Int("input_bytes", len(text)),
		zap.Int("output_bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
