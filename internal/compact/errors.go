package compact

import "errors"

var (
	// ErrInvalidConfig is returned by Config.Validate and New.
	ErrInvalidConfig = errors.New("compact: invalid configuration")

	// ErrInvalidEntry is returned by Append for entries with an unknown role.
	ErrInvalidEntry = errors.New("compact: invalid entry")

	// ErrEstimation wraps any failure of the Estimator. Append leaves the
	// transcript untouched when it sees one.
	ErrEstimation = errors.New("compact: token estimation failed")

	// ErrSummarization wraps any failure of the Summarizer, including timeouts,
	// cancellation and empty output. It is reported in Result.Err and never
	// returned from Append.
	ErrSummarization = errors.New("compact: summarization failed")

	// ErrEmptySummary is joined with ErrSummarization when the summarizer
	// returned only whitespace.
	ErrEmptySummary = errors.New("empty summary")

	// ErrCompactionInProgress is returned when the transcript is mutated while
	// a summarization call is still pending.
	ErrCompactionInProgress = errors.New("compact: compaction already in progress")
)
