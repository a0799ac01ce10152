package llm

import "strings"

// GetContextWindow returns the approximate context window in tokens for a known model.
// Returns 0 for unrecognised models; callers should apply their own safe default.
// Ordered from most to least specific prefix to avoid short-prefix false matches.
func GetContextWindow(modelName string) int {
	baseName := baseModelName(modelName)

	knownWindows := []struct {
		prefix string
		tokens int
	}{
		// OpenAI
		{"gpt-4.1", 1_000_000},
		{"gpt-4o", 128_000},
		{"gpt-4-turbo", 128_000},
		{"gpt-4", 8_192},
		{"gpt-3.5-turbo", 16_385},
		{"o1-mini", 128_000},
		{"o1", 200_000},
		{"o3-mini", 200_000},
		{"o3", 200_000},
		{"o4-mini", 200_000},
		// Anthropic
		{"claude-3-5", 200_000},
		{"claude-3-7", 200_000},
		{"claude-sonnet", 200_000},
		{"claude-opus", 200_000},
		{"claude-haiku", 200_000},
		// DeepSeek
		{"deepseek-v2", 128_000},
		{"deepseek", 64_000},
		// Google Gemini
		{"gemini-2.5", 1_000_000},
		{"gemini-2.0", 1_000_000},
		{"gemini-1.5-pro", 2_000_000},
		// Alibaba Qwen
		{"qwen2.5", 128_000},
		{"qwen3", 32_000},
	}

	for _, kw := range knownWindows {
		if strings.HasPrefix(baseName, kw.prefix) {
			return kw.tokens
		}
	}
	return 0
}

// ExceedsContextWindow reports whether a budget of maxTokens is larger than
// the model's known window. Unknown models never exceed.
func ExceedsContextWindow(modelName string, maxTokens int) (window int, exceeds bool) {
	window = GetContextWindow(modelName)
	return window, window > 0 && maxTokens > window
}

// baseModelName strips provider prefixes such as "openrouter/openai/gpt-4o".
func baseModelName(modelName string) string {
	parts := strings.Split(strings.ToLower(modelName), "/")
	return parts[len(parts)-1]
}
