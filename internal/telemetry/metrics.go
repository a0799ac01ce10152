// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// setup shared by the analyzer and the CLI.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/compact"
)

// Namespace prefixes every repolens metric.
const Namespace = "repolens"

// Metrics records compaction and analysis metrics. It implements
// compact.Observer.
type Metrics struct {
	compactions      *prometheus.CounterVec
	tokensSaved      prometheus.Histogram
	overBudget       *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec

	logger *zap.Logger
}

var _ compact.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	return &Metrics{
		compactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compactions_total",
				Help:      "Compaction attempts by outcome",
			},
			[]string{"outcome"},
		),
		tokensSaved: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compaction_tokens_saved",
				Help:      "Estimated tokens removed by a successful compaction",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
			},
		),
		overBudget: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compaction_over_budget_total",
				Help:      "Compactions that left the transcript over its trigger or ceiling",
			},
			[]string{"limit"},
		),
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Repository analyses by type and final status",
			},
			[]string{"type", "status"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Wall time of one repository analysis",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"type"},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// ObserveCompaction implements compact.Observer.
func (m *Metrics) ObserveCompaction(sessionID string, r compact.Result) {
	m.compactions.WithLabelValues(r.Outcome.String()).Inc()
	if r.Outcome == compact.OutcomeCompacted {
		m.tokensSaved.Observe(float64(r.Saved()))
	}
	if r.StillOverBudget {
		m.overBudget.WithLabelValues("trigger").Inc()
	}
	if r.OverCeiling {
		m.overBudget.WithLabelValues("ceiling").Inc()
	}
	m.logger.Debug("compaction observed",
		zap.String("session_id", sessionID),
		zap.Stringer("outcome", r.Outcome),
		zap.Int("saved", r.Saved()),
	)
}

// RecordAnalysis records one finished analysis.
func (m *Metrics) RecordAnalysis(kind, status string, d time.Duration) {
	m.analyses.WithLabelValues(kind, status).Inc()
	m.analysisDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ServeMetrics exposes g on addr under /metrics until ctx is done.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("metrics server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
