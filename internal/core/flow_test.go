package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/pocketomega/repolens/internal/core"
)

// ── stub node for testing ──

type stubState struct {
	visited []string
}

type stubBaseNode struct {
	name    string
	execErr error
	action  core.Action
}

func (s *stubBaseNode) Prep(state *stubState) []string {
	state.visited = append(state.visited, s.name+":prep")
	return []string{"item"}
}

func (s *stubBaseNode) Exec(_ context.Context, _ string) (string, error) {
	return "result", s.execErr
}

func (s *stubBaseNode) Post(state *stubState, _ []string, _ ...string) core.Action {
	state.visited = append(state.visited, s.name+":post")
	return s.action
}

func (s *stubBaseNode) ExecFallback(_ error) string {
	return "fallback"
}

func newStubNode(name string, action core.Action, opts ...core.Option) *core.Node[stubState, string, string] {
	opts = append([]core.Option{core.WithName(name)}, opts...)
	return core.NewNode[stubState, string, string](&stubBaseNode{name: name, action: action}, 0, opts...)
}

// loopNode routes back to itself until the flow's safety cap stops it.
type loopNode struct{ runs int }

func (l *loopNode) Prep(_ *stubState) []string { return nil }
func (l *loopNode) Exec(_ context.Context, _ string) (string, error) {
	return "", nil
}
func (l *loopNode) Post(_ *stubState, _ []string, _ ...string) core.Action {
	l.runs++
	return core.ActionContinue
}
func (l *loopNode) ExecFallback(_ error) string { return "" }

// ── Flow tests ──

func TestFlow_RunSingleNode(t *testing.T) {
	state := &stubState{}
	flow := core.NewFlow[stubState](newStubNode("A", core.ActionEnd), core.WithLogger(zaptest.NewLogger(t)))

	action := flow.Run(context.Background(), state)

	assert.Equal(t, core.ActionEnd, action)
	assert.Equal(t, []string{"A:prep", "A:post"}, state.visited)
}

func TestFlow_RunChainTwoNodes(t *testing.T) {
	state := &stubState{}
	a := newStubNode("A", core.ActionContinue)
	b := newStubNode("B", core.ActionEnd)
	a.AddSuccessor(b, core.ActionContinue)

	action := core.NewFlow[stubState](a).Run(context.Background(), state)

	assert.Equal(t, core.ActionEnd, action)
	assert.Equal(t, []string{"A:prep", "A:post", "B:prep", "B:post"}, state.visited)
}

func TestFlow_NilStartNode(t *testing.T) {
	flow := core.NewFlow[stubState](nil)
	assert.Equal(t, core.ActionFailure, flow.Run(context.Background(), &stubState{}))
}

func TestFlow_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before Run

	state := &stubState{}
	flow := core.NewFlow[stubState](newStubNode("A", core.ActionContinue))

	assert.Equal(t, core.ActionFailure, flow.Run(ctx, state))
	assert.Empty(t, state.visited)
}

func TestFlow_FlowLevelSuccessor(t *testing.T) {
	state := &stubState{}
	a := newStubNode("A", core.ActionContinue)
	b := newStubNode("B", core.ActionEnd)

	flow := core.NewFlow[stubState](a)
	flow.AddSuccessor(b, core.ActionContinue)

	assert.Equal(t, core.ActionEnd, flow.Run(context.Background(), state))
}

func TestFlow_NoSuccessor_StopsAfterFirstNode(t *testing.T) {
	a := newStubNode("A", core.ActionContinue) // no successor registered
	action := core.NewFlow[stubState](a).Run(context.Background(), &stubState{})

	// No successor → loop ends after A; last action is ActionContinue
	assert.Equal(t, core.ActionContinue, action)
}

func TestFlow_DefaultSuccessor(t *testing.T) {
	a := newStubNode("A", core.ActionSuccess)
	b := newStubNode("B", core.ActionEnd)
	a.AddSuccessor(b) // no action arg → ActionDefault

	action := core.NewFlow[stubState](a).Run(context.Background(), &stubState{})

	// ActionDefault is only matched by ActionDefault, so the flow stops after A.
	assert.Equal(t, core.ActionSuccess, action)
}

func TestFlow_IterationCap(t *testing.T) {
	impl := &loopNode{}
	n := core.NewNode[stubState, string, string](impl, 0)
	n.AddSuccessor(n, core.ActionContinue)

	action := core.NewFlow[stubState](n).Run(context.Background(), &stubState{})

	assert.Equal(t, core.ActionFailure, action)
	assert.Equal(t, 200, impl.runs)
}

func TestFlow_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer("test")

	a := newStubNode("inspect", core.ActionAnalyze, core.WithTracer(tracer))
	b := newStubNode("analyze", core.ActionSuccess, core.WithTracer(tracer))
	a.AddSuccessor(b, core.ActionAnalyze)
	flow := core.NewFlow[stubState](a, core.WithName("analyzer"), core.WithTracer(tracer))

	require.Equal(t, core.ActionSuccess, flow.Run(context.Background(), &stubState{}))

	spans := rec.Ended()
	require.Len(t, spans, 3)
	names := []string{spans[0].Name(), spans[1].Name(), spans[2].Name()}
	assert.Equal(t, []string{"node.inspect", "node.analyze", "flow.analyzer"}, names)
	// Node spans are children of the flow span.
	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[0].Parent().SpanID())
}
