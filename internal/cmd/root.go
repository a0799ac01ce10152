// Package cmd implements the repolens command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pocketomega/repolens/internal/config"
)

// Version is stamped at build time with -ldflags "-X .../internal/cmd.Version=...".
var Version = "dev"

// NewRootCmd builds the command tree. Each call returns a fresh tree, so tests
// can run commands in isolation.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "repolens",
		Short: "Analyze GitHub repositories with an LLM",
		Long: `repolens reads GitHub repositories through a GitHub MCP server and asks an
OpenAI-compatible model for a summary, a security review, a code review, a
dependency report or an answer to a custom prompt. The conversation is kept
under a token budget by compacting older context into summaries.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "YAML settings file (environment variables override it)")
	pf.String("env-file", "", "load this .env file instead of searching for one")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or console")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")

	root.AddCommand(newAnalyzeCmd(), newConfigCmd())
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "❌ %v\n", err)
		return 1
	}
	return 0
}

// loadSettings loads .env, the settings file and the environment, then
// applies command-line overrides. It does not validate.
func loadSettings(cmd *cobra.Command) (config.Settings, string, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	var (
		envPath string
		err     error
	)
	if envFile != "" {
		envPath, err = config.LoadEnv(envFile)
	} else {
		envPath, err = config.LoadEnv()
	}
	if err != nil {
		return config.Settings{}, "", err
	}

	path, _ := cmd.Flags().GetString("config")
	s, err := config.Load(path)
	if err != nil {
		return config.Settings{}, "", err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		s.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		s.Log.Format = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		s.Telemetry.MetricsAddr = v
	}
	return s, envPath, nil
}
