package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pocketomega/repolens/internal/compact"
	"github.com/pocketomega/repolens/internal/llm"
	"github.com/pocketomega/repolens/internal/llm/openai"
	"github.com/pocketomega/repolens/internal/logging"
	"github.com/pocketomega/repolens/internal/tokens"
)

// Analysis defaults.
const (
	DefaultAnalysisTimeoutSeconds = 300
	DefaultMaxFileSize            = 100_000
	DefaultMaxFiles               = 50
	DefaultMaxParallel            = 4
	DefaultSessionTTLMinutes      = 30
	DefaultMCPCommand             = "github-mcp-server"
)

// Settings is the complete runtime configuration.
type Settings struct {
	LLM       openai.Config     `yaml:"llm" json:"llm"`
	GitHub    GitHubSettings    `yaml:"github" json:"github"`
	Context   ContextSettings   `yaml:"context" json:"context"`
	Analysis  AnalysisSettings  `yaml:"analysis" json:"analysis"`
	Log       LogSettings       `yaml:"log" json:"log"`
	Telemetry TelemetrySettings `yaml:"telemetry" json:"telemetry"`
}

// GitHubSettings selects and authenticates the GitHub MCP server.
type GitHubSettings struct {
	Token      string   `yaml:"token,omitempty" json:"token,omitempty"`
	MCPCommand string   `yaml:"mcp_command" json:"mcp_command"`
	MCPArgs    []string `yaml:"mcp_args" json:"mcp_args"`
	MCPURL     string   `yaml:"mcp_url,omitempty" json:"mcp_url,omitempty"`
	MCPConfig  string   `yaml:"mcp_config,omitempty" json:"mcp_config,omitempty"`
}

// ContextSettings is the token budget plus the estimator to price it with.
type ContextSettings struct {
	compact.Config `yaml:",inline" json:",inline"`
	Estimator      string `yaml:"estimator" json:"estimator"`
}

// AnalysisSettings bounds a single repository analysis.
type AnalysisSettings struct {
	TimeoutSeconds    int `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxFileSize       int `yaml:"max_file_size" json:"max_file_size"`
	MaxFiles          int `yaml:"max_files" json:"max_files"`
	MaxParallel       int `yaml:"max_parallel" json:"max_parallel"`
	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`
}

// Timeout returns TimeoutSeconds as a duration.
func (a AnalysisSettings) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// SessionTTL returns SessionTTLMinutes as a duration.
func (a AnalysisSettings) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// TelemetrySettings configures tracing and the metrics endpoint. Tracing is
// off unless an OTLP endpoint is set; the LangSmith key and project are sent
// as headers to that endpoint.
type TelemetrySettings struct {
	OTLPEndpoint     string `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
	LangSmithAPIKey  string `yaml:"langsmith_api_key,omitempty" json:"langsmith_api_key,omitempty"`
	LangSmithProject string `yaml:"langsmith_project,omitempty" json:"langsmith_project,omitempty"`
	MetricsAddr      string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
}

// Defaults returns Settings with every optional value filled in.
func Defaults() Settings {
	return Settings{
		LLM: openai.DefaultConfig(),
		GitHub: GitHubSettings{
			MCPCommand: DefaultMCPCommand,
			MCPArgs:    []string{"stdio"},
		},
		Context: ContextSettings{
			Config:    compact.DefaultConfig(),
			Estimator: tokens.KindHeuristic,
		},
		Analysis: AnalysisSettings{
			TimeoutSeconds:    DefaultAnalysisTimeoutSeconds,
			MaxFileSize:       DefaultMaxFileSize,
			MaxFiles:          DefaultMaxFiles,
			MaxParallel:       DefaultMaxParallel,
			SessionTTLMinutes: DefaultSessionTTLMinutes,
		},
		Log: LogSettings{Level: "info", Format: logging.FormatJSON},
	}
}

// Load builds Settings from defaults, then the YAML file at path (if not
// empty), then environment variables. Later sources win. Load does not
// validate; call Validate once flags have been applied.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a number", key, v))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}

	str("OPENAI_API_KEY", &s.LLM.APIKey)
	str("OPENAI_BASE_URL", &s.LLM.BaseURL)
	str("LLM_MODEL", &s.LLM.Model)
	if v, ok := os.LookupEnv("LLM_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_TEMPERATURE: %q is not a number", v))
		} else {
			t := float32(f)
			s.LLM.Temperature = &t
		}
	}
	num("LLM_MAX_TOKENS", &s.LLM.MaxTokens)
	num("LLM_MAX_RETRIES", &s.LLM.MaxRetries)
	float("LLM_REQUESTS_PER_SECOND", &s.LLM.RequestsPerSecond)

	str("GITHUB_PERSONAL_ACCESS_TOKEN", &s.GitHub.Token)
	str("GITHUB_MCP_COMMAND", &s.GitHub.MCPCommand)
	if v, ok := os.LookupEnv("GITHUB_MCP_ARGS"); ok && v != "" {
		s.GitHub.MCPArgs = strings.Fields(v)
	}
	str("GITHUB_MCP_URL", &s.GitHub.MCPURL)
	str("MCP_CONFIG", &s.GitHub.MCPConfig)

	num("CONTEXT_MAX_TOKENS", &s.Context.MaxTokens)
	float("CONTEXT_TRIGGER_RATIO", &s.Context.TriggerRatio)
	num("CONTEXT_KEEP_RECENT", &s.Context.KeepRecent)
	boolean("CONTEXT_AUTO_COMPACT", &s.Context.AutoCompact)
	str("TOKEN_ESTIMATOR", &s.Context.Estimator)

	num("ANALYSIS_TIMEOUT_SECONDS", &s.Analysis.TimeoutSeconds)
	num("MAX_FILE_SIZE", &s.Analysis.MaxFileSize)
	num("MAX_FILES_TO_ANALYZE", &s.Analysis.MaxFiles)
	num("MAX_PARALLEL_ANALYSES", &s.Analysis.MaxParallel)
	num("SESSION_TTL_MINUTES", &s.Analysis.SessionTTLMinutes)

	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FORMAT", &s.Log.Format)

	str("OTEL_EXPORTER_OTLP_ENDPOINT", &s.Telemetry.OTLPEndpoint)
	str("LANGSMITH_API_KEY", &s.Telemetry.LangSmithAPIKey)
	str("LANGSMITH_PROJECT", &s.Telemetry.LangSmithProject)
	str("METRICS_ADDR", &s.Telemetry.MetricsAddr)

	return errors.Join(errs...)
}

// Validate reports every problem at once, missing required variables first.
func (s Settings) Validate() error {
	var errs []error
	if s.GitHub.Token == "" {
		errs = append(errs, errors.New("GITHUB_PERSONAL_ACCESS_TOKEN is required. Set it in .env or environment"))
	}
	if err := s.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.GitHub.MCPConfig == "" && s.GitHub.MCPURL == "" && s.GitHub.MCPCommand == "" {
		errs = append(errs, errors.New("one of GITHUB_MCP_COMMAND, GITHUB_MCP_URL or MCP_CONFIG must be set"))
	}
	if err := s.Context.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := tokens.New(s.Context.Estimator, s.LLM.Model); err != nil {
		errs = append(errs, err)
	}
	if s.Analysis.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("ANALYSIS_TIMEOUT_SECONDS must be positive, got %d", s.Analysis.TimeoutSeconds))
	}
	if s.Analysis.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", s.Analysis.MaxFileSize))
	}
	if s.Analysis.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FILES_TO_ANALYZE must be positive, got %d", s.Analysis.MaxFiles))
	}
	if s.Analysis.MaxParallel <= 0 {
		errs = append(errs, fmt.Errorf("MAX_PARALLEL_ANALYSES must be positive, got %d", s.Analysis.MaxParallel))
	}
	if s.Analysis.SessionTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", s.Analysis.SessionTTLMinutes))
	}
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !logging.ValidFormat(s.Log.Format) {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be %s or %s, got %q", logging.FormatJSON, logging.FormatConsole, s.Log.Format))
	}
	return errors.Join(errs...)
}

// Budget returns the compaction budget. For a model with a known context
// window, MaxTokens is capped so the transcript plus the completion fits.
func (s Settings) Budget() compact.Config {
	cfg := s.Context.Config
	if window := llm.GetContextWindow(s.LLM.Model); window > 0 {
		limit := window - s.LLM.MaxTokens
		if limit > 0 && cfg.MaxTokens > limit {
			cfg.MaxTokens = limit
		}
	}
	return cfg
}

// TracingEnabled reports whether spans should be exported.
func (s Settings) TracingEnabled() bool {
	return s.Telemetry.OTLPEndpoint != ""
}

// Masked returns a copy safe to print: secrets keep at most their first four
// characters.
func (s Settings) Masked() Settings {
	out := s
	out.LLM.APIKey = mask(s.LLM.APIKey)
	out.GitHub.Token = mask(s.GitHub.Token)
	out.Telemetry.LangSmithAPIKey = mask(s.Telemetry.LangSmithAPIKey)
	out.GitHub.MCPArgs = append([]string(nil), s.GitHub.MCPArgs...)
	if s.LLM.Temperature != nil {
		t := *s.LLM.Temperature
		out.LLM.Temperature = &t
	}
	return out
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}
