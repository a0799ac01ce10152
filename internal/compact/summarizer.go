package compact

import "context"

// Summarizer condenses transcript text. It is the only call a Compactor makes
// that may block; implementations should honor ctx and report timeouts as errors.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummarizerFunc adapts a plain function to Summarizer.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Observer is notified after every compaction attempt that reached the
// summarizer. Used for metrics; implementations must not block.
type Observer interface {
	ObserveCompaction(sessionID string, r Result)
}
