package compact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// State is the compaction state of a transcript.
type State int

const (
	StateNormal   State = iota // below the trigger, or last compaction failed and nothing changed
	StatePending               // a summarization call is in flight
	StateDegraded              // compacted, but still at or over the trigger
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StatePending:
		return "pending"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome says what a Compact call did.
type Outcome int

const (
	OutcomeSkipped   Outcome = iota // nothing needed, nothing eligible, or the summary saved nothing
	OutcomeCompacted                // a prefix was replaced by a summary entry
	OutcomeFailed                   // the summarizer failed; transcript unchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCompacted:
		return "compacted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Snapshot is a copy of the transcript at one point in time.
type Snapshot struct {
	Entries []Entry
	Tokens  int
	State   State
}

// Result reports the transcript after an Append or Compact call.
type Result struct {
	Snapshot

	Outcome      Outcome
	Replaced     int // entries folded into the summary
	TokensBefore int

	// StillOverBudget is the advisory raised when the transcript is still at or
	// over the trigger after everything eligible was compacted. The caller
	// decides whether to truncate, abort or carry on.
	StillOverBudget bool

	// OverCeiling reports that the total is at or over MaxTokens.
	OverCeiling bool

	// Err is set when Outcome is OutcomeFailed (wrapping ErrSummarization), or
	// when the call was rejected with ErrCompactionInProgress.
	Err error
}

// Saved returns the number of tokens the call removed.
func (r Result) Saved() int {
	return r.TokensBefore - r.Tokens
}

// Stats summarizes context usage of one transcript.
type Stats struct {
	CurrentTokens    int     `json:"current_tokens" yaml:"current_tokens"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens"`
	Entries          int     `json:"entries" yaml:"entries"`
	SummaryCount     int     `json:"summary_count" yaml:"summary_count"`
	LastSummary      string  `json:"last_summary,omitempty" yaml:"last_summary,omitempty"`
	PreservedEntries int     `json:"preserved_entries" yaml:"preserved_entries"`
	Usage            float64 `json:"usage" yaml:"usage"`
	State            string  `json:"state" yaml:"state"`
}

// Option configures a Compactor.
type Option func(*Compactor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compactor) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers an observer for compaction attempts.
func WithObserver(o Observer) Option {
	return func(c *Compactor) { c.observer = o }
}

// WithSessionID tags logs and observations with the owning session.
func WithSessionID(id string) Option {
	return func(c *Compactor) { c.sessionID = id }
}

// Compactor owns one transcript and keeps it under its token budget.
type Compactor struct {
	cfg       Config
	est       Estimator
	sum       Summarizer
	logger    *zap.Logger
	observer  Observer
	sessionID string

	mu          sync.Mutex
	entries     []Entry
	total       int
	state       State
	busy        bool // advisory lock held while the summarizer runs
	summaries   int
	lastSummary string
}

// New creates a Compactor with an empty transcript.
func New(cfg Config, est Estimator, sum Summarizer, opts ...Option) (*Compactor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if est == nil {
		return nil, fmt.Errorf("%w: estimator is required", ErrInvalidConfig)
	}
	if sum == nil {
		return nil, fmt.Errorf("%w: summarizer is required", ErrInvalidConfig)
	}
	c := &Compactor{
		cfg:    cfg,
		est:    est,
		sum:    sum,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "compactor"))
	if c.sessionID != "" {
		c.logger = c.logger.With(zap.String("session", c.sessionID))
	}
	return c, nil
}

// Config returns the budget the Compactor was built with.
func (c *Compactor) Config() Config { return c.cfg }

// Append adds e to the end of the transcript. The entry is priced before the
// transcript is touched, so an estimation failure leaves it unmodified.
// With AutoCompact set, Append compacts as soon as the trigger is crossed and
// returns the outcome of that compaction.
func (c *Compactor) Append(ctx context.Context, e Entry) (Result, error) {
	if !e.Role.Valid() {
		return Result{}, fmt.Errorf("%w: unknown role %q", ErrInvalidEntry, e.Role)
	}
	n, err := estimate(c.est, e.Content)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return Result{}, ErrCompactionInProgress
	}
	e.Tokens = n
	e.Summary = false
	c.entries = append(c.entries, e)
	c.total += n
	auto := c.cfg.AutoCompact && c.cfg.over(c.total)
	res := c.resultLocked(OutcomeSkipped, c.total)
	c.mu.Unlock()

	if auto {
		return c.Compact(ctx), nil
	}
	return res, nil
}

// NeedsCompaction reports whether the total has reached TriggerRatio*MaxTokens.
func (c *Compactor) NeedsCompaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.over(c.total)
}

// Compact replaces every entry except the newest KeepRecent with one summary
// entry. It is a no-op when compaction is not needed or when nothing but an
// earlier summary is eligible, which makes repeated calls idempotent.
//
// Summarizer failures (including ctx cancellation) are logged and reported in
// Result.Err; the transcript is then exactly what it was before the call.
// A summary that would not shrink the replaced entries is dropped: the call
// is skipped and the over-budget advisory is raised instead.
func (c *Compactor) Compact(ctx context.Context) Result {
	c.mu.Lock()
	if c.busy {
		res := c.resultLocked(OutcomeSkipped, c.total)
		c.mu.Unlock()
		res.Err = ErrCompactionInProgress
		return res
	}
	before := c.total
	if !c.cfg.over(before) {
		res := c.resultLocked(OutcomeSkipped, before)
		c.mu.Unlock()
		return res
	}

	cut := len(c.entries) - c.cfg.KeepRecent
	if cut < 0 {
		cut = 0
	}
	prefix := c.entries[:cut]
	if !hasOrdinary(prefix) {
		c.state = StateDegraded
		res := c.resultLocked(OutcomeSkipped, before)
		c.mu.Unlock()
		c.logger.Debug("nothing eligible for compaction",
			zap.Int("tokens", before), zap.Int("keep_recent", c.cfg.KeepRecent))
		return res
	}
	removed := 0
	for _, e := range prefix {
		removed += e.Tokens
	}
	text := render(prefix)
	prev := c.state
	c.busy = true
	c.state = StatePending
	c.mu.Unlock()

	summary, tokens, err := c.summarize(ctx, text, removed)

	c.mu.Lock()
	c.busy = false
	if errors.Is(err, errNoGain) {
		c.state = prev
		if c.cfg.over(c.total) {
			c.state = StateDegraded
		}
		res := c.resultLocked(OutcomeSkipped, before)
		c.mu.Unlock()
		c.logger.Warn("summary does not shrink transcript, kept as is",
			zap.Int("entries", cut), zap.Int("replaced_tokens", removed), zap.Int("summary_tokens", tokens),
			zap.Bool("over_ceiling", res.OverCeiling))
		c.observe(res)
		return res
	}
	if err != nil {
		c.state = prev
		res := c.resultLocked(OutcomeFailed, before)
		c.mu.Unlock()
		res.Err = err
		c.logger.Warn("compaction skipped, transcript kept",
			zap.Error(err), zap.Int("entries", cut), zap.Int("tokens", before))
		c.observe(res)
		return res
	}

	// busy blocked every mutation, so prefix still covers entries[:cut].
	next := make([]Entry, 0, len(c.entries)-cut+1)
	next = append(next, Entry{Role: RoleSystem, Content: summary, Tokens: tokens, Summary: true})
	next = append(next, c.entries[cut:]...)
	c.entries = next
	c.total = c.total - removed + tokens
	c.summaries++
	c.lastSummary = summary
	if c.cfg.over(c.total) {
		c.state = StateDegraded
	} else {
		c.state = StateNormal
	}
	res := c.resultLocked(OutcomeCompacted, before)
	res.Replaced = cut
	c.mu.Unlock()

	fields := []zap.Field{
		zap.Int("replaced", cut),
		zap.Int("tokens_before", before),
		zap.Int("tokens_after", res.Tokens),
	}
	if res.StillOverBudget {
		c.logger.Warn("transcript still over budget after compaction", append(fields,
			zap.Bool("over_ceiling", res.OverCeiling))...)
	} else {
		c.logger.Info("transcript compacted", fields...)
	}
	c.observe(res)
	return res
}

// errNoGain marks a valid summary that is not smaller than what it replaces.
var errNoGain = errors.New("summary does not shrink transcript")

// summarize calls the port and validates its answer. Every failure of the
// port is wrapped in ErrSummarization; a summary that saves nothing returns
// errNoGain along with its token count.
func (c *Compactor) summarize(ctx context.Context, text string, replaced int) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrSummarization, err)
	}
	out, err := c.sum.Summarize(ctx, text)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrSummarization, err)
	}
	// A late success after cancellation is discarded.
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrSummarization, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", 0, fmt.Errorf("%w: %w", ErrSummarization, ErrEmptySummary)
	}
	n, err := estimate(c.est, out)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrSummarization, err)
	}
	if n >= replaced {
		return "", n, errNoGain
	}
	return out, n, nil
}

// Snapshot returns a copy of the current transcript.
func (c *Compactor) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Transcript returns a copy of the current entries.
func (c *Compactor) Transcript() []Entry {
	return c.Snapshot().Entries
}

// State returns the current compaction state.
func (c *Compactor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns context usage figures for reporting.
func (c *Compactor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		CurrentTokens:    c.total,
		MaxTokens:        c.cfg.MaxTokens,
		Entries:          len(c.entries),
		SummaryCount:     c.summaries,
		LastSummary:      c.lastSummary,
		PreservedEntries: c.cfg.KeepRecent,
		Usage:            float64(c.total) / float64(c.cfg.MaxTokens),
		State:            c.state.String(),
	}
}

func (c *Compactor) snapshotLocked() Snapshot {
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	return Snapshot{Entries: entries, Tokens: c.total, State: c.state}
}

func (c *Compactor) resultLocked(o Outcome, before int) Result {
	return Result{
		Snapshot:        c.snapshotLocked(),
		Outcome:         o,
		TokensBefore:    before,
		StillOverBudget: c.state == StateDegraded && c.cfg.over(c.total),
		OverCeiling:     c.total >= c.cfg.MaxTokens,
	}
}

func (c *Compactor) observe(r Result) {
	if c.observer != nil {
		c.observer.ObserveCompaction(c.sessionID, r)
	}
}

func hasOrdinary(entries []Entry) bool {
	for _, e := range entries {
		if !e.Summary {
			return true
		}
	}
	return false
}

// render concatenates the entries handed to the summarizer. An earlier
// summary goes in its own section so it is merged rather than summarized
// as conversation content.
func render(entries []Entry) string {
	var prior, convo strings.Builder
	for _, e := range entries {
		if e.Summary {
			prior.WriteString(e.Content)
			prior.WriteString("\n")
			continue
		}
		convo.WriteString(string(e.Role))
		convo.WriteString(": ")
		convo.WriteString(e.Content)
		convo.WriteString("\n\n")
	}
	var sb strings.Builder
	if prior.Len() > 0 {
		sb.WriteString("## Earlier summary\n")
		sb.WriteString(prior.String())
		sb.WriteString("\n## New conversation\n\n")
	}
	sb.WriteString(convo.String())
	return sb.String()
}
