package agent

import "github.com/pocketomega/repolens/internal/compact"

// ContextStatus indicates how close a transcript is to its budget.
type ContextStatus int

const (
	ContextOK       ContextStatus = iota
	ContextWarning                // ≥ warnRatio of MaxTokens: log warning
	ContextCritical               // at or over the compaction trigger
)

// defaultWarnRatio is the usage at which the guard starts warning.
const defaultWarnRatio = 0.70

func (s ContextStatus) String() string {
	switch s {
	case ContextWarning:
		return "warning"
	case ContextCritical:
		return "critical"
	default:
		return "ok"
	}
}

// ContextGuard classifies transcript usage against a compaction budget.
type ContextGuard struct {
	budget    compact.Config
	warnRatio float64
}

// NewContextGuard creates a guard for budget. A budget with MaxTokens <= 0
// disables the guard (CheckTokens always returns ContextOK).
func NewContextGuard(budget compact.Config) *ContextGuard {
	warn := defaultWarnRatio
	if budget.TriggerRatio > 0 && warn > budget.TriggerRatio {
		warn = budget.TriggerRatio
	}
	return &ContextGuard{budget: budget, warnRatio: warn}
}

// CheckTokens returns the status for a pre-computed token total.
func (g *ContextGuard) CheckTokens(tokens int) ContextStatus {
	if g.budget.MaxTokens <= 0 {
		return ContextOK
	}
	limit := float64(g.budget.MaxTokens)
	switch {
	case float64(tokens) >= g.budget.Threshold():
		return ContextCritical
	case float64(tokens) >= g.warnRatio*limit:
		return ContextWarning
	default:
		return ContextOK
	}
}
