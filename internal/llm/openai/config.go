package openai

import (
	"errors"
	"fmt"
)

// Defaults for an unset environment.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "gpt-4o-mini"
	DefaultMaxRetries = 1
)

// Config holds OpenAI-compatible LLM configuration.
type Config struct {
	APIKey            string   `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL           string   `yaml:"base_url" json:"base_url"`
	Model             string   `yaml:"model" json:"model"`
	Temperature       *float32 `yaml:"temperature,omitempty" json:"temperature,omitempty"` // nil = API default
	MaxTokens         int      `yaml:"max_tokens" json:"max_tokens"`                       // 0 = no limit
	MaxRetries        int      `yaml:"max_retries" json:"max_retries"`                     // transient errors only
	RequestsPerSecond float64  `yaml:"requests_per_second" json:"requests_per_second"`     // 0 = unlimited
}

// DefaultConfig returns a Config with everything but the API key filled in.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks if the configuration is valid. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required. Set it in .env or environment"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("LLM_MODEL cannot be empty"))
	}
	if c.Temperature != nil && (*c.Temperature < 0.0 || *c.Temperature > 2.0) {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be between 0.0 and 2.0, got %f", *c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS cannot be negative, got %d", c.MaxTokens))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_RETRIES cannot be negative, got %d", c.MaxRetries))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("LLM_REQUESTS_PER_SECOND cannot be negative, got %g", c.RequestsPerSecond))
	}
	return errors.Join(errs...)
}
