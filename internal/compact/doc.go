// Package compact keeps a session transcript under a token budget.
//
// A Compactor owns one transcript. Entries are priced by an Estimator when
// they are appended; once the running total reaches TriggerRatio*MaxTokens the
// oldest entries (all but the last KeepRecent) can be replaced by a single
// summary entry produced by a Summarizer. Compaction is best effort: when the
// summarizer fails the transcript is left exactly as it was.
//
// A Compactor serializes its own mutations, but it is meant to be driven by
// one session at a time. Independent sessions use independent Compactors.
package compact
