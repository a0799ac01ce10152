package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/core"
	"github.com/pocketomega/repolens/internal/repo"
	"github.com/pocketomega/repolens/internal/util"
)

// FetchPrep is one file to fetch.
type FetchPrep struct {
	Ref         repo.Ref
	File        repo.File
	Compactor   *compact.Compactor
	MaxFileSize int
}

// FetchResult is the outcome of fetching one file.
type FetchResult struct {
	Content   string // cleaned and truncated
	Truncated bool
	Appended  compact.Result
	Err       error
}

// FetchNode implements BaseNode[AnalysisState, FetchPrep, FetchResult].
// Each selected file becomes one tool entry in the transcript.
type FetchNode struct {
	source      Source
	maxFileSize int
	logger      *zap.Logger
}

func NewFetchNode(source Source, maxFileSize int, logger *zap.Logger) *FetchNode {
	return &FetchNode{source: source, maxFileSize: maxFileSize, logger: nopIfNil(logger)}
}

// Prep returns one work item per selected file.
func (n *FetchNode) Prep(state *AnalysisState) []FetchPrep {
	preps := make([]FetchPrep, 0, len(state.Selected))
	for _, f := range state.Selected {
		preps = append(preps, FetchPrep{
			Ref:         state.Ref,
			File:        f,
			Compactor:   state.Compactor,
			MaxFileSize: n.maxFileSize,
		})
	}
	return preps
}

// Exec fetches, cleans and truncates one file and appends it to the transcript.
func (n *FetchNode) Exec(ctx context.Context, prep FetchPrep) (FetchResult, error) {
	content, err := n.source.File(ctx, prep.Ref, prep.File.Path)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", prep.File.Path, err)
	}
	if repo.IsReadme(prep.File.Path) {
		content = repo.StripMarkup(content)
	}
	content, truncated := util.TruncateBytes(content, prep.MaxFileSize)

	entry := compact.NewEntry(compact.RoleTool, fmt.Sprintf("File: %s\n\n%s", prep.File.Path, content))
	appended, err := prep.Compactor.Append(ctx, entry)
	if err != nil {
		return FetchResult{}, fmt.Errorf("record %s: %w", prep.File.Path, err)
	}
	return FetchResult{Content: content, Truncated: truncated, Appended: appended}, nil
}

// ExecFallback carries the error to Post; one missing file does not fail the analysis.
func (n *FetchNode) ExecFallback(err error) FetchResult {
	return FetchResult{Err: err}
}

// Post records which files made it into the transcript and decides whether
// the transcript must be compacted before the final call.
func (n *FetchNode) Post(state *AnalysisState, preps []FetchPrep, results ...FetchResult) core.Action {
	var firstErr error
	failed := 0
	for i, r := range results {
		path := preps[i].File.Path
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			n.logger.Warn("file skipped", zap.String("path", path), zap.Error(r.Err))
			continue
		}
		countCompaction(state, r.Appended)
		state.Info.FilesAnalyzed = append(state.Info.FilesAnalyzed, path)
		if repo.MatchAny(repo.SecurityPatterns, path) {
			state.Info.SecurityFiles = append(state.Info.SecurityFiles, path)
		}
		if repo.IsReadme(path) && state.Info.ReadmeContent == "" {
			state.Info.ReadmeContent = r.Content
		}
		if r.Truncated {
			n.logger.Debug("file truncated", zap.String("path", path), zap.Int("max_bytes", preps[i].MaxFileSize))
		}
	}
	if len(preps) > 0 && failed == len(preps) {
		state.fail(fmt.Errorf("none of the %d selected files could be fetched: %w", len(preps), firstErr))
		return core.ActionFailure
	}

	snap := state.Compactor.Snapshot()
	guard := NewContextGuard(state.Compactor.Config())
	fields := []zap.Field{
		zap.String("repo", state.Ref.FullName()),
		zap.Int("fetched", len(results)-failed),
		zap.Int("tokens", snap.Tokens),
	}
	switch guard.CheckTokens(snap.Tokens) {
	case ContextWarning:
		n.logger.Warn("transcript approaching its budget", fields...)
	default:
		n.logger.Info("files fetched", fields...)
	}

	if state.Compactor.NeedsCompaction() {
		return core.ActionCompact
	}
	return core.ActionAnalyze
}
