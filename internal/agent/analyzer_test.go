package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/pocketomega/repolens/internal/analysis"
	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/llm"
	"github.com/pocketomega/repolens/internal/repo"
	"github.com/pocketomega/repolens/internal/session"
)

const sampleAnswer = `The project is a small CLI.

## Findings
- Uses Go modules
- README is short

## Recommendations
1. Add tests
`

type fakeSource struct {
	info    repo.Info
	infoErr error
	listing []repo.File
	files   map[string]string
	fileErr map[string]error
}

func (s *fakeSource) Repository(_ context.Context, ref repo.Ref) (repo.Info, error) {
	if s.infoErr != nil {
		return repo.Info{}, s.infoErr
	}
	info := s.info
	info.Ref = ref
	return info, nil
}

func (s *fakeSource) List(context.Context, repo.Ref, string) ([]repo.File, error) {
	return s.listing, nil
}

func (s *fakeSource) File(_ context.Context, _ repo.Ref, path string) (string, error) {
	if err := s.fileErr[path]; err != nil {
		return "", err
	}
	content, ok := s.files[path]
	if !ok {
		return "", errors.New("not found")
	}
	return content, nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		info: repo.Info{Description: "demo project", Language: "Go", Stars: 3, DefaultBranch: "main"},
		listing: []repo.File{
			{Path: "main.go", Name: "main.go", Type: "file", Size: 40},
			{Path: "README.md", Name: "README.md", Type: "file", Size: 80},
			{Path: "go.mod", Name: "go.mod", Type: "file", Size: 30},
			{Path: "notes.txt", Name: "notes.txt", Type: "file", Size: 10},
			{Path: "docs", Name: "docs", Type: "dir"},
		},
		files: map[string]string{
			"README.md": "<h1>Demo</h1><p>Hello <b>world</b></p><script>track()</script>",
			"main.go":   "package main\n\nfunc main() {}\n",
			"go.mod":    "module example.com/demo\n\ngo 1.24\n",
		},
	}
}

func answering(answer string) llm.ProviderFunc {
	return func(context.Context, []llm.Message) (llm.Message, error) {
		return llm.Message{Role: llm.RoleAssistant, Content: answer}, nil
	}
}

var lengthEstimator = compact.EstimatorFunc(func(s string) (int, error) { return len(s), nil })

type recorded struct {
	kind, status string
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *fakeRecorder) RecordAnalysis(kind, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recorded{kind, status})
}

type harness struct {
	analyzer *Analyzer
	store    *session.Store
	recorder *fakeRecorder
}

func newHarness(t *testing.T, src Source, provider llm.LLMProvider, budget compact.Config, sum compact.Summarizer, cfg Config, opts ...Option) harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := session.NewStore(time.Minute, NewCompactorFactory(budget, lengthEstimator, sum, nil, logger), logger)
	t.Cleanup(store.Close)
	rec := &fakeRecorder{}
	opts = append([]Option{WithLogger(logger), WithRecorder(rec)}, opts...)
	return harness{
		analyzer: NewAnalyzer(src, provider, store, cfg, opts...),
		store:    store,
		recorder: rec,
	}
}

func mustRef(t *testing.T, raw string) repo.Ref {
	t.Helper()
	ref, err := repo.ParseURL(raw)
	require.NoError(t, err)
	return ref
}

var noSummary = compact.SummarizerFunc(func(context.Context, string) (string, error) {
	return "", errors.New("unused")
})

func TestAnalyze_Completed(t *testing.T) {
	var sent []llm.Message
	provider := llm.ProviderFunc(func(_ context.Context, msgs []llm.Message) (llm.Message, error) {
		sent = msgs
		return llm.Message{Role: llm.RoleAssistant, Content: sampleAnswer}, nil
	})
	h := newHarness(t, newFakeSource(), provider, compact.DefaultConfig(), noSummary,
		Config{MaxFiles: 10, MaxFileSize: 1000, Timeout: time.Minute, Model: "gpt-4o-mini"})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})

	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.False(t, res.Failed())
	assert.Empty(t, res.Error)
	assert.Equal(t, analysis.KindSummary, res.Type)
	assert.Equal(t, "The project is a small CLI.", res.Summary)
	assert.Equal(t, []string{"Uses Go modules", "README is short"}, res.Findings)
	assert.Equal(t, []string{"Add tests"}, res.Recommendations)

	assert.Equal(t, "acme/demo", res.Repository.FullName())
	assert.Equal(t, "demo project", res.Repository.Description)
	assert.Equal(t, []string{"README.md", "main.go", "go.mod"}, res.Repository.FilesAnalyzed)
	assert.Equal(t, []string{"go.mod"}, res.Repository.SecurityFiles)
	assert.Contains(t, res.Repository.ReadmeContent, "Hello world")
	assert.NotContains(t, res.Repository.ReadmeContent, "track()")

	// overview + three files + answer
	assert.Equal(t, 5, res.Context.Entries)
	assert.Zero(t, res.Context.SummaryCount)
	assert.NotEmpty(t, res.SessionID)

	require.GreaterOrEqual(t, len(sent), 3)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Equal(t, analysis.Summary{}.Instructions(), sent[0].Content)
	assert.Contains(t, sent[1].Content, "Repository: acme/demo")
	last := sent[len(sent)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Contains(t, last.Content, "acme/demo")

	assert.Equal(t, []recorded{{"summary", "completed"}}, h.recorder.seen)
}

func TestAnalyze_CompactsWhenOverBudget(t *testing.T) {
	src := newFakeSource()
	for path := range src.files {
		src.files[path] = strings.Repeat("x", 300)
	}
	var summarized string
	sum := compact.SummarizerFunc(func(_ context.Context, text string) (string, error) {
		summarized = text
		return "short", nil
	})
	budget := compact.Config{MaxTokens: 200, TriggerRatio: 0.5, KeepRecent: 1}
	h := newHarness(t, src, answering(sampleAnswer), budget, sum, Config{MaxFiles: 10, MaxFileSize: 1000})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})

	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.Equal(t, 1, res.Context.SummaryCount)
	assert.Equal(t, "short", res.Context.LastSummary)
	assert.Contains(t, summarized, "File: README.md")
	assert.Contains(t, summarized, "Repository: acme/demo")
	// summary + the kept go.mod entry + answer
	assert.Equal(t, 3, res.Context.Entries)
}

func TestAnalyze_TruncatesLargeFiles(t *testing.T) {
	src := newFakeSource()
	src.files["main.go"] = strings.Repeat("y", 5000)
	var sent []llm.Message
	provider := llm.ProviderFunc(func(_ context.Context, msgs []llm.Message) (llm.Message, error) {
		sent = msgs
		return llm.Message{Content: sampleAnswer}, nil
	})
	h := newHarness(t, src, provider, compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 100})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})
	require.Equal(t, StatusCompleted, res.Status, res.Error)

	var mainMsg string
	for _, m := range sent {
		if strings.Contains(m.Content, "File: main.go") {
			mainMsg = m.Content
		}
	}
	require.NotEmpty(t, mainMsg)
	assert.Contains(t, mainMsg, "[truncated]")
	assert.Less(t, len(mainMsg), 300)
}

func TestAnalyze_RespectsMaxFiles(t *testing.T) {
	h := newHarness(t, newFakeSource(), answering(sampleAnswer), compact.DefaultConfig(), noSummary,
		Config{MaxFiles: 1, MaxFileSize: 1000})
	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})
	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.Equal(t, []string{"README.md"}, res.Repository.FilesAnalyzed)
}

func TestAnalyze_RepositoryNotFound(t *testing.T) {
	src := newFakeSource()
	src.infoErr = errors.New("repository not found")
	h := newHarness(t, src, answering(sampleAnswer), compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/missing"), analysis.Security{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "repository not found")
	assert.Contains(t, res.Error, "acme/missing")
	assert.Empty(t, res.Repository.FilesAnalyzed)
	assert.Equal(t, []recorded{{"security", "failed"}}, h.recorder.seen)
}

func TestAnalyze_SkipsUnreadableFile(t *testing.T) {
	src := newFakeSource()
	src.fileErr = map[string]error{"main.go": errors.New("boom")}
	h := newHarness(t, src, answering(sampleAnswer), compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})

	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.Equal(t, []string{"README.md", "go.mod"}, res.Repository.FilesAnalyzed)
}

func TestAnalyze_AllFilesUnreadable(t *testing.T) {
	src := newFakeSource()
	src.files = map[string]string{}
	h := newHarness(t, src, answering(sampleAnswer), compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "none of the 3 selected files")
}

func TestAnalyze_NoMatchingFilesStillAnalyzes(t *testing.T) {
	src := newFakeSource()
	src.listing = []repo.File{{Path: "notes.txt", Type: "file"}}
	h := newHarness(t, src, answering(sampleAnswer), compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})

	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.Empty(t, res.Repository.FilesAnalyzed)
	assert.Equal(t, 2, res.Context.Entries)
}

func TestAnalyze_LLMFailure(t *testing.T) {
	provider := llm.ProviderFunc(func(context.Context, []llm.Message) (llm.Message, error) {
		return llm.Message{}, errors.New("rate limited")
	})
	h := newHarness(t, newFakeSource(), provider, compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "analysis LLM call failed")
	assert.Contains(t, res.Error, "rate limited")
	// The gathered files stay visible even though the analysis failed.
	assert.Len(t, res.Repository.FilesAnalyzed, 3)
}

func TestAnalyze_EmptyAnswer(t *testing.T) {
	h := newHarness(t, newFakeSource(), answering("   "), compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})
	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, llm.ErrEmptyResponse.Error())
}

func TestAnalyze_Timeout(t *testing.T) {
	provider := llm.ProviderFunc(func(ctx context.Context, _ []llm.Message) (llm.Message, error) {
		<-ctx.Done()
		return llm.Message{}, ctx.Err()
	})
	h := newHarness(t, newFakeSource(), provider, compact.DefaultConfig(), noSummary,
		Config{MaxFiles: 10, MaxFileSize: 1000, Timeout: 50 * time.Millisecond})

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "timed out")
}

func TestAnalyze_CustomPrompt(t *testing.T) {
	var system string
	provider := llm.ProviderFunc(func(_ context.Context, msgs []llm.Message) (llm.Message, error) {
		system = msgs[0].Content
		return llm.Message{Content: sampleAnswer}, nil
	})
	h := newHarness(t, newFakeSource(), provider, compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})
	typ, err := analysis.Parse("custom", "List every HTTP handler")
	require.NoError(t, err)

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), typ)

	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.Equal(t, analysis.KindCustom, res.Type)
	assert.Contains(t, system, "List every HTTP handler")
}

func TestAnalyzeAll_BoundedAndOrdered(t *testing.T) {
	var inFlight, peak atomic.Int32
	provider := llm.ProviderFunc(func(_ context.Context, msgs []llm.Message) (llm.Message, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return llm.Message{Content: sampleAnswer}, nil
	})
	h := newHarness(t, newFakeSource(), provider, compact.DefaultConfig(), noSummary,
		Config{MaxFiles: 10, MaxFileSize: 1000, MaxParallel: 2})

	refs := []repo.Ref{
		mustRef(t, "https://github.com/acme/one"),
		mustRef(t, "https://github.com/acme/two"),
		mustRef(t, "https://github.com/acme/three"),
		mustRef(t, "https://github.com/acme/four"),
	}
	results := h.analyzer.AnalyzeAll(context.Background(), refs, analysis.Summary{})

	require.Len(t, results, len(refs))
	ids := map[string]bool{}
	for i, res := range results {
		assert.Equal(t, StatusCompleted, res.Status, res.Error)
		assert.Equal(t, refs[i].FullName(), res.Repository.FullName())
		ids[res.SessionID] = true
	}
	assert.Len(t, ids, len(refs), "every repository gets its own session")
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, len(refs), h.store.Count())
}

func TestRelease(t *testing.T) {
	h := newHarness(t, newFakeSource(), answering(sampleAnswer), compact.DefaultConfig(), noSummary, Config{MaxFiles: 10, MaxFileSize: 1000})
	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})
	require.Equal(t, 1, h.store.Count())

	stats, err := h.analyzer.Release(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.Context, stats)
	assert.Equal(t, compact.DefaultMaxTokens, stats.MaxTokens)
	assert.Zero(t, h.store.Count())

	_, err = h.analyzer.Release(res.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAnalyze_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	h := newHarness(t, newFakeSource(), answering(sampleAnswer), compact.DefaultConfig(), noSummary,
		Config{MaxFiles: 10, MaxFileSize: 1000}, WithTracer(tp.Tracer("test")))

	res := h.analyzer.Analyze(context.Background(), mustRef(t, "https://github.com/acme/demo"), analysis.Summary{})
	require.Equal(t, StatusCompleted, res.Status, res.Error)

	names := map[string]bool{}
	for _, s := range sr.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"analyzer.analyze", "flow.analysis", "node.inspect", "node.fetch", "node.analyze"} {
		assert.True(t, names[want], "missing span %s", want)
	}
	assert.False(t, names["node.compact"], "compaction was not needed")
}
