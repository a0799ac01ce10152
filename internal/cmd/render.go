package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pocketomega/repolens/internal/agent"
)

// Output formats of analyze.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(f string) bool {
	switch f {
	case formatText, formatJSON, formatYAML:
		return true
	}
	return false
}

func writeResults(w io.Writer, format string, results []agent.Result) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(results); err != nil {
			return err
		}
		return encoder.Close()
	default:
		var sb strings.Builder
		for i, r := range results {
			if i > 0 {
				sb.WriteString("\n")
			}
			writeText(&sb, r)
		}
		_, err := io.WriteString(w, sb.String())
		return err
	}
}

func writeText(sb *strings.Builder, r agent.Result) {
	info := r.Repository
	mark := "✅"
	if r.Failed() {
		mark = "❌"
	}
	fmt.Fprintf(sb, "📦 %s (%s) %s %s in %.1fs\n", info.FullName(), r.Type, mark, r.Status, r.ProcessingTime)
	if info.Description != "" {
		fmt.Fprintf(sb, "   %s\n", info.Description)
	}
	if info.Language != "" {
		fmt.Fprintf(sb, "   Language: %s · ⭐ %d · Forks: %d\n", info.Language, info.Stars, info.Forks)
	}
	fmt.Fprintf(sb, "   Files analyzed: %d (security-relevant: %d)\n", len(info.FilesAnalyzed), len(info.SecurityFiles))
	c := r.Context
	fmt.Fprintf(sb, "   Context: %d/%d tokens (%.1f%%), %d summaries, state %s\n",
		c.CurrentTokens, c.MaxTokens, c.Usage*100, c.SummaryCount, c.State)

	if r.Error != "" {
		fmt.Fprintf(sb, "\n[Error] %s\n", r.Error)
		return
	}
	if r.Summary != "" {
		sb.WriteString("\n[Summary]\n")
		for _, line := range strings.Split(r.Summary, "\n") {
			fmt.Fprintf(sb, "  %s\n", line)
		}
	}
	writeList(sb, "Findings", r.Findings)
	writeList(sb, "Recommendations", r.Recommendations)
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n[%s]\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "  - %s\n", item)
	}
}
