// Package agent analyzes one GitHub repository per session: it gathers
// repository content through MCP into a compacted transcript and asks the
// model for a report.
package agent

import (
	"time"

	"github.com/pocketomega/repolens/internal/analysis"
	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/repo"
)

// Status is the lifecycle stage of an analysis.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFetching  Status = "fetching"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AnalysisState is the shared state of one analysis flow.
// NOT goroutine-safe: the flow runs its nodes on a single goroutine.
type AnalysisState struct {
	SessionID string
	Ref       repo.Ref
	Type      analysis.Type
	Compactor *compact.Compactor

	Status   Status
	Info     repo.Info
	Selected []repo.File // files chosen by inspect, fetched by fetch

	Answer      string
	Report      analysis.Report
	Compactions int   // compactions that replaced entries or failed
	Err         error // first failure; set before routing to the failed node
}

// NewAnalysisState returns a pending state for ref.
func NewAnalysisState(sessionID string, ref repo.Ref, t analysis.Type, c *compact.Compactor) *AnalysisState {
	return &AnalysisState{
		SessionID: sessionID,
		Ref:       ref,
		Type:      t,
		Compactor: c,
		Status:    StatusPending,
		Info:      repo.Info{Ref: ref},
	}
}

// fail records err (keeping the first one) and marks the state failed.
func (s *AnalysisState) fail(err error) {
	if s.Err == nil {
		s.Err = err
	}
	s.Status = StatusFailed
}

// Result is the outcome of one repository analysis.
type Result struct {
	SessionID       string        `json:"session_id" yaml:"session_id"`
	Repository      repo.Info     `json:"repository" yaml:"repository"`
	Type            analysis.Kind `json:"analysis_type" yaml:"analysis_type"`
	Status          Status        `json:"status" yaml:"status"`
	Summary         string        `json:"summary" yaml:"summary"`
	Findings        []string      `json:"findings" yaml:"findings"`
	Recommendations []string      `json:"recommendations" yaml:"recommendations"`
	ProcessingTime  float64       `json:"processing_time" yaml:"processing_time"` // seconds
	Error           string        `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Context         compact.Stats `json:"context_stats" yaml:"context_stats"`
}

// Failed reports whether the analysis did not complete.
func (r Result) Failed() bool { return r.Status != StatusCompleted }

func newResult(st *AnalysisState, elapsed time.Duration) Result {
	r := Result{
		SessionID:       st.SessionID,
		Repository:      st.Info,
		Status:          st.Status,
		Summary:         st.Report.Summary,
		Findings:        st.Report.Findings,
		Recommendations: st.Report.Recommendations,
		ProcessingTime:  elapsed.Seconds(),
	}
	if st.Type != nil {
		r.Type = st.Type.Kind()
	}
	if st.Err != nil {
		r.Error = st.Err.Error()
	}
	if st.Compactor != nil {
		r.Context = st.Compactor.Stats()
	}
	return r
}
