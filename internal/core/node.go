package core

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Node wraps a BaseNode implementation with retry logic and successor routing.
// It implements the Workflow interface.
type Node[State any, PrepResult any, ExecResults any] struct {
	node       BaseNode[State, PrepResult, ExecResults]
	maxRetries int
	successors map[Action]Workflow[State]
	opts       options
}

// NewNode creates a new Node wrapping the given BaseNode implementation.
func NewNode[State any, PrepResult any, ExecResults any](
	basenode BaseNode[State, PrepResult, ExecResults],
	maxRetries int,
	opts ...Option,
) *Node[State, PrepResult, ExecResults] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	o := newOptions("node", opts)
	o.logger = o.logger.With(zap.String("node", o.name))
	return &Node[State, PrepResult, ExecResults]{
		node:       basenode,
		maxRetries: maxRetries,
		successors: make(map[Action]Workflow[State]),
		opts:       o,
	}
}

// Name returns the node name given with WithName.
func (n *Node[State, PrepResult, ExecResults]) Name() string { return n.opts.name }

// executeWithRetry runs Exec with retry logic.
func (n *Node[State, PrepResult, ExecResults]) executeWithRetry(ctx context.Context, input PrepResult) (ExecResults, error) {
	var result ExecResults
	var err error

	for i := 0; i <= n.maxRetries; i++ {
		// Check context cancellation before each attempt
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result, err = n.node.Exec(ctx, input)
		if err == nil {
			return result, nil
		}
		if i < n.maxRetries {
			n.opts.logger.Warn("exec retry",
				zap.Int("attempt", i+1), zap.Int("max_retries", n.maxRetries), zap.Error(err))
		}
	}
	return result, err
}

// Run implements Workflow.Run: it executes the full Prep → Exec → Post lifecycle.
// Each run is recorded as one span named "node.<name>".
func (n *Node[State, PrepResult, ExecResults]) Run(ctx context.Context, state *State) Action {
	ctx, span := n.opts.tracer.Start(ctx, "node."+n.opts.name)
	defer span.End()

	prepRes := n.node.Prep(state)
	span.SetAttributes(attribute.Int("node.items", len(prepRes)))
	if len(prepRes) == 0 {
		return n.finish(span, n.node.Post(state, prepRes))
	}

	failed := 0
	execResults := make([]ExecResults, len(prepRes))
	for i, item := range prepRes {
		result, err := n.executeWithRetry(ctx, item)
		if err != nil {
			failed++
			span.RecordError(err)
			n.opts.logger.Warn("exec failed, using fallback", zap.Int("item", i), zap.Error(err))
			execResults[i] = n.node.ExecFallback(err)
		} else {
			execResults[i] = result
		}
	}
	span.SetAttributes(attribute.Int("node.failed_items", failed))

	return n.finish(span, n.node.Post(state, prepRes, execResults...))
}

func (n *Node[State, PrepResult, ExecResults]) finish(span trace.Span, action Action) Action {
	span.SetAttributes(attribute.String("node.action", string(action)))
	if action == ActionFailure {
		span.SetStatus(codes.Error, "node failed")
	}
	n.opts.logger.Debug("node finished", zap.String("action", string(action)))
	return action
}

// AddSuccessor connects a successor workflow for a given action.
func (n *Node[State, PrepResult, ExecResults]) AddSuccessor(
	workflow Workflow[State], action ...Action,
) Workflow[State] {
	if workflow == nil {
		return workflow
	}
	if len(action) == 0 {
		n.successors[ActionDefault] = workflow
	} else {
		n.successors[action[0]] = workflow
	}
	return workflow
}

// GetSuccessor returns the successor for the given action.
func (n *Node[State, PrepResult, ExecResults]) GetSuccessor(action Action) Workflow[State] {
	return n.successors[action]
}
