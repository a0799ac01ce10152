package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pocketomega/repolens/internal/agent"
	"github.com/pocketomega/repolens/internal/analysis"
	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/repo"
)

// settingsEnv lists the variables that would change the outcome of these tests.
var settingsEnv = []string{
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
	"LLM_MAX_RETRIES", "LLM_REQUESTS_PER_SECOND", "GITHUB_PERSONAL_ACCESS_TOKEN",
	"GITHUB_MCP_COMMAND", "GITHUB_MCP_ARGS", "GITHUB_MCP_URL", "MCP_CONFIG",
	"CONTEXT_MAX_TOKENS", "CONTEXT_TRIGGER_RATIO", "CONTEXT_KEEP_RECENT", "CONTEXT_AUTO_COMPACT",
	"TOKEN_ESTIMATOR", "ANALYSIS_TIMEOUT_SECONDS", "MAX_FILE_SIZE", "MAX_FILES_TO_ANALYZE",
	"MAX_PARALLEL_ANALYSES", "SESSION_TTL_MINUTES", "LOG_LEVEL", "LOG_FORMAT",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "LANGSMITH_API_KEY", "LANGSMITH_PROJECT", "METRICS_ADDR",
}

func clearSettingsEnv(t *testing.T) {
	t.Helper()
	for _, k := range settingsEnv {
		t.Setenv(k, "")
	}
}

// run executes the command tree with an env file that does not exist, so no
// developer .env leaks into the test.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseTargets(t *testing.T) {
	refs, err := parseTargets([]string{"https://github.com/acme/demo", "https://github.com/acme/tool.git"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "acme/demo", refs[0].FullName())
	assert.Equal(t, "acme/tool", refs[1].FullName())

	_, err = parseTargets([]string{"https://github.com/acme/demo", "https://gitlab.com/a/b", "not a url"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrInvalidURL)
	assert.Contains(t, err.Error(), "gitlab.com")
	assert.Contains(t, err.Error(), "not a url")
}

func TestAnalyze_RejectsBadInputBeforeConnecting(t *testing.T) {
	clearSettingsEnv(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no url", []string{"analyze"}, "requires at least 1 arg"},
		{"bad type", []string{"analyze", "--type", "bogus", "https://github.com/a/b"}, "bogus"},
		{"custom without prompt", []string{"analyze", "--type", "custom", "https://github.com/a/b"}, "prompt"},
		{"bad format", []string{"analyze", "--format", "xml", "https://github.com/a/b"}, "xml"},
		{"bad url", []string{"analyze", "https://example.com/a/b"}, "example.com"},
		{"missing credentials", []string{"analyze", "https://github.com/a/b"}, "OPENAI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-verysecretvalue")
	t.Setenv("GITHUB_PERSONAL_ACCESS_TOKEN", "ghp_verysecretvalue")
	t.Setenv("CONTEXT_MAX_TOKENS", "1234")

	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "verysecretvalue")
	assert.Contains(t, out, "sk-v****")

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	ctx, ok := doc["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1234, ctx["max_tokens"])
}

func TestConfigShow_ReportsEnvFileAndEffectiveBudget(t *testing.T) {
	clearSettingsEnv(t)
	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# env file: (not found: ")
	assert.Contains(t, out, "# effective context max_tokens: 128000 (model context window)")

	t.Setenv("CONTEXT_MAX_TOKENS", "1000")
	out, err = run(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "# effective context max_tokens")
}

func TestConfigShow_JSON(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("LLM_MODEL", "gpt-4.1")

	out, err := run(t, "config", "show", "--json")
	require.NoError(t, err)

	var doc struct {
		LLM struct {
			Model string `json:"model"`
		} `json:"llm"`
		Context struct {
			MaxTokens int `json:"max_tokens"`
		} `json:"context"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "gpt-4.1", doc.LLM.Model)
	assert.Equal(t, compact.DefaultMaxTokens, doc.Context.MaxTokens)
}

func TestConfigShow_FlagOverrides(t *testing.T) {
	clearSettingsEnv(t)
	out, err := run(t, "config", "show", "--log-level", "debug", "--metrics-addr", ":9100")
	require.NoError(t, err)

	var doc struct {
		Log struct {
			Level string `yaml:"level"`
		} `yaml:"log"`
		Telemetry struct {
			MetricsAddr string `yaml:"metrics_addr"`
		} `yaml:"telemetry"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "debug", doc.Log.Level)
	assert.Equal(t, ":9100", doc.Telemetry.MetricsAddr)
}

func TestConfigValidate(t *testing.T) {
	clearSettingsEnv(t)
	_, err := run(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "GITHUB_PERSONAL_ACCESS_TOKEN")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GITHUB_PERSONAL_ACCESS_TOKEN", "ghp-test")
	out, err := run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}

func sampleResults() []agent.Result {
	return []agent.Result{
		{
			SessionID: "s1",
			Repository: repo.Info{
				Ref:           repo.Ref{URL: "https://github.com/acme/demo", Owner: "acme", Name: "demo"},
				Description:   "demo project",
				Language:      "Go",
				Stars:         7,
				FilesAnalyzed: []string{"README.md", "go.mod"},
				SecurityFiles: []string{"go.mod"},
			},
			Type:            analysis.KindSummary,
			Status:          agent.StatusCompleted,
			Summary:         "A small CLI.",
			Findings:        []string{"Uses Go modules"},
			Recommendations: []string{"Add tests"},
			ProcessingTime:  1.5,
			Context:         compact.Stats{CurrentTokens: 100, MaxTokens: 1000, Usage: 0.1, State: "normal"},
		},
		{
			Repository: repo.Info{Ref: repo.Ref{Owner: "acme", Name: "gone"}},
			Type:       analysis.KindSummary,
			Status:     agent.StatusFailed,
			Error:      "repository not found",
		},
	}
}

func TestWriteResults_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, formatText, sampleResults()))
	out := buf.String()

	assert.Contains(t, out, "📦 acme/demo (summary) ✅ completed in 1.5s")
	assert.Contains(t, out, "Files analyzed: 2 (security-relevant: 1)")
	assert.Contains(t, out, "Context: 100/1000 tokens (10.0%)")
	assert.Contains(t, out, "[Findings]\n  - Uses Go modules")
	assert.Contains(t, out, "[Recommendations]\n  - Add tests")
	assert.Contains(t, out, "📦 acme/gone (summary) ❌ failed")
	assert.Contains(t, out, "[Error] repository not found")
}

func TestWriteResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, formatJSON, sampleResults()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "completed", got[0]["status"])
	assert.Equal(t, "summary", got[0]["analysis_type"])
	assert.Equal(t, "repository not found", got[1]["error_message"])
	repoDoc := got[0]["repository"].(map[string]any)
	assert.Equal(t, "acme", repoDoc["owner"])
	assert.NotContains(t, repoDoc, "ReadmeContent")
}

func TestWriteResults_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, formatYAML, sampleResults()[:1]))

	var got []agent.Result
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, agent.StatusCompleted, got[0].Status)
	assert.Equal(t, []string{"Add tests"}, got[0].Recommendations)
	assert.Equal(t, "acme", got[0].Repository.Owner)
}
