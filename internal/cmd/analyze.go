package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/agent"
	"github.com/pocketomega/repolens/internal/analysis"
	"github.com/pocketomega/repolens/internal/config"
	"github.com/pocketomega/repolens/internal/llm"
	"github.com/pocketomega/repolens/internal/llm/openai"
	"github.com/pocketomega/repolens/internal/logging"
	"github.com/pocketomega/repolens/internal/mcp"
	"github.com/pocketomega/repolens/internal/repo"
	"github.com/pocketomega/repolens/internal/session"
	"github.com/pocketomega/repolens/internal/telemetry"
	"github.com/pocketomega/repolens/internal/tokens"
)

// shutdownTimeout bounds flushing spans and closing the MCP server on exit.
const shutdownTimeout = 5 * time.Second

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <github-url>...",
		Short: "Analyze one or more GitHub repositories",
		Long: fmt.Sprintf(`Fetch repository metadata and the most relevant files through the GitHub MCP
server and ask the model for an analysis. Several repositories are analyzed in
parallel, each in its own session.

Analysis types: %s.`, joinKinds()),
		Example: `
# Summarize a repository
repolens analyze https://github.com/spf13/cobra

# Security review of two repositories, as JSON
repolens analyze --type security --format json https://github.com/a/b https://github.com/c/d

# Ask a custom question
repolens analyze --type custom --prompt "How are plugins loaded?" https://github.com/hashicorp/go-plugin
`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}
	cmd.Flags().StringP("type", "t", string(analysis.KindSummary), "analysis type: "+joinKinds())
	cmd.Flags().StringP("prompt", "p", "", "request for the custom analysis type")
	cmd.Flags().StringP("format", "f", formatText, "output format: text, json or yaml")
	return cmd
}

func joinKinds() string {
	kinds := analysis.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// parseTargets validates every URL before anything is fetched and reports all
// invalid ones together.
func parseTargets(args []string) ([]repo.Ref, error) {
	refs := make([]repo.Ref, 0, len(args))
	var errs []error
	for _, raw := range args {
		ref, err := repo.ParseURL(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		refs = append(refs, ref)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return refs, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("type")
	prompt, _ := cmd.Flags().GetString("prompt")
	format, _ := cmd.Flags().GetString("format")

	if !validFormat(format) {
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
	typ, err := analysis.Parse(kind, prompt)
	if err != nil {
		return err
	}
	refs, err := parseTargets(args)
	if err != nil {
		return err
	}

	s, envPath, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger, err := logging.New(s.Log.Level, s.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if envPath != "" {
		logger.Debug("loaded env file", zap.String("path", envPath))
	}
	for _, ref := range refs {
		if ref.Insecure {
			logger.Warn("repository URL does not use HTTPS", zap.String("url", ref.URL))
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newApp(ctx, s, logger)
	if err != nil {
		return err
	}
	defer rt.close(logger)

	results := rt.analyzer.AnalyzeAll(ctx, refs, typ)
	rt.release(results, logger)
	if err := writeResults(cmd.OutOrStdout(), format, results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(results))
	}
	return nil
}

// app holds everything an analyze run wires together.
type app struct {
	analyzer *agent.Analyzer
	closers  []func(context.Context) error
}

// release drops the finished sessions; their stats are already in the results.
func (r *app) release(results []agent.Result, logger *zap.Logger) {
	for _, res := range results {
		if res.SessionID == "" {
			continue
		}
		stats, err := r.analyzer.Release(res.SessionID)
		if err != nil {
			logger.Debug("release session", zap.String("session_id", res.SessionID), zap.Error(err))
			continue
		}
		logger.Debug("session released",
			zap.String("session_id", res.SessionID),
			zap.Int("tokens", stats.CurrentTokens),
			zap.Int("summaries", stats.SummaryCount))
	}
}

func (r *app) close(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}
}

func newApp(ctx context.Context, s config.Settings, logger *zap.Logger) (_ *app, err error) {
	rt := &app{}
	defer func() {
		if err != nil {
			rt.close(logger)
		}
	}()

	if s.TracingEnabled() {
		providers, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			Endpoint:         s.Telemetry.OTLPEndpoint,
			LangSmithAPIKey:  s.Telemetry.LangSmithAPIKey,
			LangSmithProject: s.Telemetry.LangSmithProject,
		}, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, providers.Shutdown)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(telemetry.Namespace, reg, logger)
	if addr := s.Telemetry.MetricsAddr; addr != "" {
		metricsCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := telemetry.ServeMetrics(metricsCtx, addr, reg, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		rt.closers = append(rt.closers, func(context.Context) error {
			stop()
			<-done
			return nil
		})
	}

	client, err := openai.NewClient(&s.LLM, logger)
	if err != nil {
		return nil, err
	}

	serverCfg, err := mcp.GitHubServer(s.GitHub.MCPConfig, s.GitHub.MCPCommand, s.GitHub.MCPArgs, s.GitHub.MCPURL, s.GitHub.Token)
	if err != nil {
		return nil, err
	}
	mcpClient := mcp.NewClient(serverCfg, logger)
	if err := mcpClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to GitHub MCP server: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return mcpClient.Close() })
	if err := mcp.CheckTools(ctx, mcpClient); err != nil {
		return nil, fmt.Errorf("GitHub MCP server: %w", err)
	}

	est, err := tokens.New(s.Context.Estimator, s.LLM.Model)
	if err != nil {
		return nil, err
	}
	summarizer := llm.NewSummarizer(client, llm.WithSummaryLogger(logger))
	budget := s.Budget()
	if budget.MaxTokens < s.Context.MaxTokens {
		logger.Warn("context budget capped to the model context window",
			zap.String("model", s.LLM.Model),
			zap.Int("configured", s.Context.MaxTokens),
			zap.Int("max_tokens", budget.MaxTokens))
	}
	factory := agent.NewCompactorFactory(budget, est, summarizer, metrics, logger)
	store := session.NewStore(s.Analysis.SessionTTL(), factory, logger)
	rt.closers = append(rt.closers, func(context.Context) error { store.Close(); return nil })

	rt.analyzer = agent.NewAnalyzer(mcp.NewGitHub(mcpClient, nil), client, store, agent.Config{
		MaxFiles:    s.Analysis.MaxFiles,
		MaxFileSize: s.Analysis.MaxFileSize,
		Timeout:     s.Analysis.Timeout(),
		MaxParallel: s.Analysis.MaxParallel,
		Model:       s.LLM.Model,
	}, agent.WithLogger(logger), agent.WithRecorder(metrics))

	logger.Info("repolens ready",
		zap.String("llm", client.GetName()),
		zap.String("mcp_transport", serverCfg.Transport),
		zap.Int("max_tokens", budget.MaxTokens),
		zap.Float64("trigger_ratio", budget.TriggerRatio),
	)
	return rt, nil
}
