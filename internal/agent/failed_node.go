package agent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/core"
)

// errUnknownFailure is recorded when a node failed without saying why.
var errUnknownFailure = errors.New("analysis failed")

// FailedNode implements BaseNode[AnalysisState, error, struct{}].
// Every failure route ends here.
type FailedNode struct {
	logger *zap.Logger
}

func NewFailedNode(logger *zap.Logger) *FailedNode {
	return &FailedNode{logger: nopIfNil(logger)}
}

func (n *FailedNode) Prep(state *AnalysisState) []error {
	if state.Err == nil {
		state.Err = errUnknownFailure
	}
	state.Status = StatusFailed
	return nil
}

func (n *FailedNode) Exec(context.Context, error) (struct{}, error) { return struct{}{}, nil }

func (n *FailedNode) ExecFallback(error) struct{} { return struct{}{} }

func (n *FailedNode) Post(state *AnalysisState, _ []error, _ ...struct{}) core.Action {
	n.logger.Error("analysis failed",
		zap.String("repo", state.Ref.FullName()),
		zap.Error(state.Err),
	)
	return core.ActionEnd
}
