package compact

import "fmt"

// Defaults mirror the budget the analyzer was designed around: a 200k-token
// window, compaction at 85% of it, and the last five entries always kept.
const (
	DefaultMaxTokens    = 200000
	DefaultTriggerRatio = 0.85
	DefaultKeepRecent   = 5
)

// Config is the token budget of one transcript.
type Config struct {
	// MaxTokens is the hard ceiling of the transcript.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// TriggerRatio is the fraction of MaxTokens at which compaction is needed.
	// Must be in (0, 1].
	TriggerRatio float64 `yaml:"trigger_ratio" json:"trigger_ratio"`

	// KeepRecent is the number of newest entries that compaction never touches.
	KeepRecent int `yaml:"keep_recent" json:"keep_recent"`

	// AutoCompact makes Append compact eagerly once the trigger is crossed.
	// When false, callers check NeedsCompaction and call Compact themselves.
	AutoCompact bool `yaml:"auto_compact" json:"auto_compact"`
}

// DefaultConfig returns the default budget.
func DefaultConfig() Config {
	return Config{
		MaxTokens:    DefaultMaxTokens,
		TriggerRatio: DefaultTriggerRatio,
		KeepRecent:   DefaultKeepRecent,
	}
}

// Validate checks that the budget is usable.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	if c.TriggerRatio <= 0 || c.TriggerRatio > 1 {
		return fmt.Errorf("%w: trigger_ratio must be in (0, 1], got %v", ErrInvalidConfig, c.TriggerRatio)
	}
	if c.KeepRecent < 0 {
		return fmt.Errorf("%w: keep_recent must be non-negative, got %d", ErrInvalidConfig, c.KeepRecent)
	}
	return nil
}

// Threshold returns the token total at which compaction becomes necessary.
func (c Config) Threshold() float64 {
	return c.TriggerRatio * float64(c.MaxTokens)
}

// over reports whether total has reached the trigger threshold.
func (c Config) over(total int) bool {
	return float64(total) >= c.Threshold()
}
