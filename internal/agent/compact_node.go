package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/core"
	"github.com/pocketomega/repolens/internal/util"
)

// summaryPreviewRunes bounds the summary text echoed into debug logs.
const summaryPreviewRunes = 120

// CompactNode implements BaseNode[AnalysisState, *compact.Compactor, compact.Result].
// Compaction is best effort: every outcome routes on to analyze.
type CompactNode struct {
	logger *zap.Logger
}

func NewCompactNode(logger *zap.Logger) *CompactNode {
	return &CompactNode{logger: nopIfNil(logger)}
}

func (n *CompactNode) Prep(state *AnalysisState) []*compact.Compactor {
	return []*compact.Compactor{state.Compactor}
}

func (n *CompactNode) Exec(ctx context.Context, c *compact.Compactor) (compact.Result, error) {
	return c.Compact(ctx), nil
}

func (n *CompactNode) ExecFallback(err error) compact.Result {
	return compact.Result{Outcome: compact.OutcomeFailed, Err: err}
}

func (n *CompactNode) Post(state *AnalysisState, _ []*compact.Compactor, results ...compact.Result) core.Action {
	if len(results) == 0 {
		return core.ActionAnalyze
	}
	r := results[0]
	countCompaction(state, r)

	fields := []zap.Field{
		zap.String("repo", state.Ref.FullName()),
		zap.Stringer("outcome", r.Outcome),
		zap.Int("tokens_before", r.TokensBefore),
		zap.Int("tokens_after", r.Tokens),
	}
	switch {
	case r.Err != nil:
		n.logger.Warn("compaction did not run, analyzing the full transcript", append(fields, zap.Error(r.Err))...)
	case r.StillOverBudget:
		n.logger.Warn("transcript still over budget", append(fields, zap.Bool("over_ceiling", r.OverCeiling))...)
	case r.Outcome == compact.OutcomeCompacted && len(r.Entries) > 0:
		n.logger.Debug("compaction finished", append(fields,
			zap.Int("replaced", r.Replaced),
			zap.String("summary", util.TruncateRunes(r.Entries[0].Content, summaryPreviewRunes)))...)
	default:
		n.logger.Debug("compaction finished", fields...)
	}
	return core.ActionAnalyze
}
