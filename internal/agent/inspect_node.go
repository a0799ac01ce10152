package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/core"
	"github.com/pocketomega/repolens/internal/repo"
)

// InspectPrep is the single work item of InspectNode.
type InspectPrep struct {
	Ref       repo.Ref
	Compactor *compact.Compactor
}

// InspectResult carries repository metadata and the root listing.
type InspectResult struct {
	Info     repo.Info
	Listing  []repo.File
	Appended compact.Result
	Err      error
}

// InspectNode implements BaseNode[AnalysisState, InspectPrep, InspectResult].
// It records repository metadata in the transcript and picks the files to fetch.
type InspectNode struct {
	source   Source
	maxFiles int
	logger   *zap.Logger
}

func NewInspectNode(source Source, maxFiles int, logger *zap.Logger) *InspectNode {
	return &InspectNode{source: source, maxFiles: maxFiles, logger: nopIfNil(logger)}
}

// Prep moves the analysis into the fetching stage.
func (n *InspectNode) Prep(state *AnalysisState) []InspectPrep {
	state.Status = StatusFetching
	return []InspectPrep{{Ref: state.Ref, Compactor: state.Compactor}}
}

// Exec loads metadata and the root listing, then appends them as one tool entry.
func (n *InspectNode) Exec(ctx context.Context, prep InspectPrep) (InspectResult, error) {
	info, err := n.source.Repository(ctx, prep.Ref)
	if err != nil {
		return InspectResult{}, fmt.Errorf("fetch repository %s: %w", prep.Ref.FullName(), err)
	}
	listing, err := n.source.List(ctx, prep.Ref, "")
	if err != nil {
		return InspectResult{}, fmt.Errorf("list repository %s: %w", prep.Ref.FullName(), err)
	}
	appended, err := prep.Compactor.Append(ctx, compact.NewEntry(compact.RoleTool, formatOverview(info, listing)))
	if err != nil {
		return InspectResult{}, fmt.Errorf("record repository overview: %w", err)
	}
	return InspectResult{Info: info, Listing: listing, Appended: appended}, nil
}

// ExecFallback carries the error to Post.
func (n *InspectNode) ExecFallback(err error) InspectResult {
	return InspectResult{Err: err}
}

// Post stores the metadata and the file selection, then routes to fetch.
func (n *InspectNode) Post(state *AnalysisState, _ []InspectPrep, results ...InspectResult) core.Action {
	if len(results) == 0 {
		state.fail(errors.New("inspect produced no result"))
		return core.ActionFailure
	}
	r := results[0]
	if r.Err != nil {
		state.fail(r.Err)
		return core.ActionFailure
	}
	countCompaction(state, r.Appended)

	info := r.Info
	info.Ref = state.Ref
	state.Info = info

	primary, secondary := state.Type.Patterns()
	state.Selected = repo.Select(r.Listing, n.maxFiles, primary, secondary)

	n.logger.Info("repository inspected",
		zap.String("repo", state.Ref.FullName()),
		zap.Int("listing", len(r.Listing)),
		zap.Int("selected", len(state.Selected)),
	)
	return core.ActionFetch
}

// formatOverview renders metadata and the root listing for the model.
func formatOverview(info repo.Info, listing []repo.File) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository: %s\n", info.FullName())
	if info.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", info.Description)
	}
	if info.Language != "" {
		fmt.Fprintf(&sb, "Primary language: %s\n", info.Language)
	}
	fmt.Fprintf(&sb, "Stars: %d, forks: %d, size: %d KB\n", info.Stars, info.Forks, info.Size)
	fmt.Fprintf(&sb, "Default branch: %s\n", info.DefaultBranch)

	sb.WriteString("\nRoot directory:\n")
	if len(listing) == 0 {
		sb.WriteString("(empty)\n")
	}
	for _, f := range listing {
		if f.IsFile() {
			fmt.Fprintf(&sb, "- %s (%d bytes)\n", f.Path, f.Size)
		} else {
			fmt.Fprintf(&sb, "- %s/\n", f.Path)
		}
	}
	return sb.String()
}

// countCompaction records an automatic compaction triggered by Append.
func countCompaction(state *AnalysisState, r compact.Result) {
	if r.Outcome != compact.OutcomeSkipped {
		state.Compactions++
	}
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
