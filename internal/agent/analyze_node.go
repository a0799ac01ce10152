package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/analysis"
	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/core"
	"github.com/pocketomega/repolens/internal/llm"
	"github.com/pocketomega/repolens/internal/repo"
)

// AnalyzePrep is the single work item of AnalyzeNode.
type AnalyzePrep struct {
	Ref       repo.Ref
	Type      analysis.Type
	Compactor *compact.Compactor
}

// AnalyzeResult holds the model answer.
type AnalyzeResult struct {
	Answer   string
	Appended compact.Result
	Err      error
}

// AnalyzeNode implements BaseNode[AnalysisState, AnalyzePrep, AnalyzeResult].
// It sends the analysis instructions and the transcript to the model.
type AnalyzeNode struct {
	provider llm.LLMProvider
	logger   *zap.Logger
}

func NewAnalyzeNode(provider llm.LLMProvider, logger *zap.Logger) *AnalyzeNode {
	return &AnalyzeNode{provider: provider, logger: nopIfNil(logger)}
}

// Prep moves the analysis into the analyzing stage.
func (n *AnalyzeNode) Prep(state *AnalysisState) []AnalyzePrep {
	state.Status = StatusAnalyzing
	return []AnalyzePrep{{Ref: state.Ref, Type: state.Type, Compactor: state.Compactor}}
}

// Exec calls the model and appends its answer to the transcript.
func (n *AnalyzeNode) Exec(ctx context.Context, prep AnalyzePrep) (AnalyzeResult, error) {
	msgs := buildAnalysisMessages(prep.Ref, prep.Type, prep.Compactor.Transcript())
	resp, err := n.provider.CallLLM(ctx, msgs)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("analysis LLM call failed: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return AnalyzeResult{}, fmt.Errorf("analysis LLM call failed: %w", llm.ErrEmptyResponse)
	}
	appended, err := prep.Compactor.Append(ctx, compact.NewEntry(compact.RoleAssistant, answer))
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("record answer: %w", err)
	}
	return AnalyzeResult{Answer: answer, Appended: appended}, nil
}

func (n *AnalyzeNode) ExecFallback(err error) AnalyzeResult {
	return AnalyzeResult{Err: err}
}

// Post parses the answer into a report and ends the flow.
func (n *AnalyzeNode) Post(state *AnalysisState, _ []AnalyzePrep, results ...AnalyzeResult) core.Action {
	if len(results) == 0 {
		state.fail(errors.New("analyze produced no result"))
		return core.ActionFailure
	}
	r := results[0]
	if r.Err != nil {
		state.fail(r.Err)
		return core.ActionFailure
	}
	countCompaction(state, r.Appended)

	state.Answer = r.Answer
	state.Report = analysis.ParseReport(r.Answer)
	state.Status = StatusCompleted

	n.logger.Info("analysis completed",
		zap.String("repo", state.Ref.FullName()),
		zap.Int("findings", len(state.Report.Findings)),
		zap.Int("recommendations", len(state.Report.Recommendations)),
	)
	return core.ActionEnd
}

// buildAnalysisMessages puts the instructions first, the gathered transcript
// next and a closing request last.
func buildAnalysisMessages(ref repo.Ref, t analysis.Type, entries []compact.Entry) []llm.Message {
	msgs := make([]llm.Message, 0, len(entries)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: t.Instructions()})
	msgs = append(msgs, llm.FromEntries(entries)...)
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Write the %s analysis of %s now, using only the material above.", strings.ReplaceAll(string(t.Kind()), "_", " "), ref.FullName()),
	})
	return msgs
}
