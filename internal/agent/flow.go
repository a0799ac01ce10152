package agent

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/core"
	"github.com/pocketomega/repolens/internal/llm"
)

// Per-item retries. Analyze relies on the provider's own retry policy.
const (
	inspectRetries = 1
	fetchRetries   = 1
)

// BuildAnalysisFlow assembles the analysis pipeline:
//
//	InspectNode ── ActionFetch → FetchNode ──┬── ActionCompact → CompactNode ──┐
//	                                         └── ActionAnalyze ────────────────┴→ AnalyzeNode → End
//
// Every ActionFailure routes to FailedNode, which ends the flow.
func BuildAnalysisFlow(source Source, provider llm.LLMProvider, cfg Config, logger *zap.Logger, tracer trace.Tracer) core.Workflow[AnalysisState] {
	logger = nopIfNil(logger)
	opts := func(name string) []core.Option {
		return []core.Option{core.WithName(name), core.WithLogger(logger), core.WithTracer(tracer)}
	}

	inspectNode := core.NewNode[AnalysisState, InspectPrep, InspectResult](
		NewInspectNode(source, cfg.MaxFiles, logger), inspectRetries, opts("inspect")...,
	)
	fetchNode := core.NewNode[AnalysisState, FetchPrep, FetchResult](
		NewFetchNode(source, cfg.MaxFileSize, logger), fetchRetries, opts("fetch")...,
	)
	compactNode := core.NewNode[AnalysisState, *compact.Compactor, compact.Result](
		NewCompactNode(logger), 0, opts("compact")...,
	)
	analyzeNode := core.NewNode[AnalysisState, AnalyzePrep, AnalyzeResult](
		NewAnalyzeNode(provider, logger), 0, opts("analyze")...,
	)
	failedNode := core.NewNode[AnalysisState, error, struct{}](
		NewFailedNode(logger), 0, opts("failed")...,
	)

	inspectNode.AddSuccessor(fetchNode, core.ActionFetch)
	fetchNode.AddSuccessor(compactNode, core.ActionCompact)
	fetchNode.AddSuccessor(analyzeNode, core.ActionAnalyze)
	compactNode.AddSuccessor(analyzeNode, core.ActionAnalyze)

	inspectNode.AddSuccessor(failedNode, core.ActionFailure)
	fetchNode.AddSuccessor(failedNode, core.ActionFailure)
	analyzeNode.AddSuccessor(failedNode, core.ActionFailure)

	return core.NewFlow[AnalysisState](inspectNode, opts("analysis")...)
}
