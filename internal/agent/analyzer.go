package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pocketomega/repolens/internal/analysis"
	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/core"
	"github.com/pocketomega/repolens/internal/llm"
	"github.com/pocketomega/repolens/internal/repo"
	"github.com/pocketomega/repolens/internal/session"
)

// Source reads repositories. mcp.GitHub is the production implementation.
type Source interface {
	Repository(ctx context.Context, ref repo.Ref) (repo.Info, error)
	List(ctx context.Context, ref repo.Ref, dir string) ([]repo.File, error)
	File(ctx context.Context, ref repo.Ref, path string) (string, error)
}

// Recorder receives one call per finished analysis.
type Recorder interface {
	RecordAnalysis(kind, status string, d time.Duration)
}

// Config bounds a single analysis.
type Config struct {
	MaxFiles    int
	MaxFileSize int           // bytes per file
	Timeout     time.Duration // per repository; 0 = none
	MaxParallel int           // AnalyzeAll concurrency
	Model       string        // used to check the budget against the context window
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the tracer for analysis and node spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithRecorder reports finished analyses, typically to telemetry.Metrics.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// Analyzer runs repository analyses, one session per repository.
type Analyzer struct {
	source   Source
	provider llm.LLMProvider
	sessions *session.Store
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder

	flow       core.Workflow[AnalysisState]
	windowOnce sync.Once
}

// NewAnalyzer creates an Analyzer. Sessions are created in store, whose
// factory decides the budget and summarizer of every transcript.
func NewAnalyzer(source Source, provider llm.LLMProvider, store *session.Store, cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:   source,
		provider: provider,
		sessions: store,
		cfg:      cfg,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("repolens/agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "analyzer"))
	a.flow = BuildAnalysisFlow(source, provider, cfg, a.logger, a.tracer)
	return a
}

// Analyze runs one analysis to completion. Failures are reported in the
// result, never as a separate error.
func (a *Analyzer) Analyze(ctx context.Context, ref repo.Ref, t analysis.Type) Result {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "analyzer.analyze", trace.WithAttributes(
		attribute.String("repo", ref.FullName()),
		attribute.String("analysis.type", string(t.Kind())),
	))
	defer span.End()

	sess, err := a.sessions.Create()
	if err != nil {
		st := NewAnalysisState("", ref, t, nil)
		st.fail(err)
		return a.finish(span, st, start)
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	a.checkWindow(sess.Compactor.Config().MaxTokens)

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	st := NewAnalysisState(sess.ID, ref, t, sess.Compactor)
	a.logger.Info("analysis started",
		zap.String("repo", ref.FullName()),
		zap.String("type", string(t.Kind())),
		zap.String("session_id", sess.ID),
	)
	a.flow.Run(ctx, st)

	if st.Status != StatusCompleted {
		cause := st.Err
		if cause == nil {
			cause = ctx.Err()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cause = fmt.Errorf("analysis timed out after %s: %w", a.cfg.Timeout, context.DeadlineExceeded)
		}
		if cause == nil {
			cause = errUnknownFailure
		}
		st.Err = cause
		st.Status = StatusFailed
	}
	return a.finish(span, st, start)
}

func (a *Analyzer) finish(span trace.Span, st *AnalysisState, start time.Time) Result {
	elapsed := time.Since(start)
	res := newResult(st, elapsed)

	span.SetAttributes(
		attribute.String("analysis.status", string(res.Status)),
		attribute.Int("context.tokens", res.Context.CurrentTokens),
		attribute.Int("context.summaries", res.Context.SummaryCount),
	)
	if st.Err != nil {
		span.RecordError(st.Err)
		span.SetStatus(codes.Error, "analysis failed")
	}
	if a.recorder != nil {
		a.recorder.RecordAnalysis(string(res.Type), string(res.Status), elapsed)
	}
	a.logger.Info("analysis finished",
		zap.String("repo", st.Ref.FullName()),
		zap.String("status", string(res.Status)),
		zap.Duration("elapsed", elapsed),
		zap.Int("files", len(res.Repository.FilesAnalyzed)),
		zap.Int("compactions", st.Compactions),
	)
	return res
}

// AnalyzeAll analyzes refs concurrently, at most MaxParallel at a time.
// Results are in the order of refs.
func (a *Analyzer) AnalyzeAll(ctx context.Context, refs []repo.Ref, t analysis.Type) []Result {
	results := make([]Result, len(refs))
	var g errgroup.Group
	g.SetLimit(max(1, a.cfg.MaxParallel))
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = a.Analyze(ctx, ref, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Release returns the final context usage of a session and forgets it.
func (a *Analyzer) Release(sessionID string) (compact.Stats, error) {
	stats, err := a.sessions.Stats(sessionID)
	if err != nil {
		return compact.Stats{}, err
	}
	a.sessions.Delete(sessionID)
	return stats, nil
}

// checkWindow warns once when the budget is larger than the model can take.
func (a *Analyzer) checkWindow(maxTokens int) {
	a.windowOnce.Do(func() {
		if window, exceeds := llm.ExceedsContextWindow(a.cfg.Model, maxTokens); exceeds {
			a.logger.Warn("context budget exceeds the model context window",
				zap.String("model", a.cfg.Model),
				zap.Int("max_tokens", maxTokens),
				zap.Int("context_window", window),
			)
		}
	})
}

// NewCompactorFactory returns the session.Factory used in production: every
// session gets its own compactor over the shared estimator and summarizer.
func NewCompactorFactory(budget compact.Config, est compact.Estimator, sum compact.Summarizer, observer compact.Observer, logger *zap.Logger) session.Factory {
	return func(id string) (*compact.Compactor, error) {
		opts := []compact.Option{compact.WithLogger(logger), compact.WithSessionID(id)}
		if observer != nil {
			opts = append(opts, compact.WithObserver(observer))
		}
		return compact.New(budget, est, sum, opts...)
	}
}
