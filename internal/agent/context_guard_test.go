package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pocketomega/repolens/internal/compact"
)

func TestContextGuard(t *testing.T) {
	g := NewContextGuard(compact.Config{MaxTokens: 100, TriggerRatio: 0.85})
	tests := []struct {
		tokens int
		want   ContextStatus
	}{
		{0, ContextOK},
		{69, ContextOK},
		{70, ContextWarning},
		{84, ContextWarning},
		{85, ContextCritical},
		{500, ContextCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.CheckTokens(tt.tokens), "tokens=%d", tt.tokens)
	}
}

func TestContextGuard_LowTrigger(t *testing.T) {
	// The warning level never sits above the trigger.
	g := NewContextGuard(compact.Config{MaxTokens: 100, TriggerRatio: 0.5})
	assert.Equal(t, ContextOK, g.CheckTokens(49))
	assert.Equal(t, ContextCritical, g.CheckTokens(50))
}

func TestContextGuard_Disabled(t *testing.T) {
	g := NewContextGuard(compact.Config{})
	assert.Equal(t, ContextOK, g.CheckTokens(1_000_000))
}

func TestContextStatus_String(t *testing.T) {
	assert.Equal(t, "ok", ContextOK.String())
	assert.Equal(t, "warning", ContextWarning.String())
	assert.Equal(t, "critical", ContextCritical.String())
}
