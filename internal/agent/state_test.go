package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketomega/repolens/internal/analysis"
	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/repo"
)

func TestNewAnalysisState(t *testing.T) {
	ref := repo.Ref{Owner: "acme", Name: "demo"}
	st := NewAnalysisState("s1", ref, analysis.Security{}, nil)
	assert.Equal(t, StatusPending, st.Status)
	assert.Equal(t, ref, st.Info.Ref)
}

func TestAnalysisState_FailKeepsFirstError(t *testing.T) {
	st := NewAnalysisState("s1", repo.Ref{}, analysis.Summary{}, nil)
	first := errors.New("first")
	st.fail(first)
	st.fail(errors.New("second"))
	assert.Equal(t, StatusFailed, st.Status)
	assert.Same(t, first, st.Err)
}

func TestNewResult(t *testing.T) {
	c, err := compact.New(compact.Config{MaxTokens: 100, TriggerRatio: 0.9}, lengthEstimator, noSummary)
	require.NoError(t, err)
	st := NewAnalysisState("s1", repo.Ref{Owner: "acme", Name: "demo"}, analysis.CodeReview{}, c)
	st.Status = StatusCompleted
	st.Report = analysis.Report{Summary: "ok", Findings: []string{"f"}, Recommendations: []string{"r"}}

	res := newResult(st, 1500*time.Millisecond)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, analysis.KindCodeReview, res.Type)
	assert.Equal(t, 1.5, res.ProcessingTime)
	assert.Equal(t, "ok", res.Summary)
	assert.Empty(t, res.Error)
	assert.Equal(t, 100, res.Context.MaxTokens)
	assert.False(t, res.Failed())

	st.fail(errors.New("boom"))
	res = newResult(st, 0)
	assert.Equal(t, "boom", res.Error)
	assert.True(t, res.Failed())
}
