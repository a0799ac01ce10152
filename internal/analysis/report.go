package analysis

import "strings"

// Report is the structured form of a model answer.
type Report struct {
	Summary         string
	Findings        []string
	Recommendations []string
}

// ParseReport splits a Markdown answer into its sections. Text outside the
// known headings is treated as summary, so free-form answers are never lost.
// Any other heading ends the current section and is kept in the summary.
func ParseReport(answer string) Report {
	var (
		r       Report
		summary []string
		section = HeadingSummary
	)
	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		if h, ok := heading(trimmed); ok {
			section = h
			if h != otherHeading {
				continue
			}
		}
		switch section {
		case HeadingFindings:
			if item, ok := bullet(trimmed); ok {
				r.Findings = append(r.Findings, item)
			}
		case HeadingRecommendations:
			if item, ok := bullet(trimmed); ok {
				r.Recommendations = append(r.Recommendations, item)
			}
		default:
			summary = append(summary, line)
		}
	}
	r.Summary = strings.TrimSpace(strings.Join(summary, "\n"))
	return r
}

// otherHeading is any Markdown heading that names no known section.
const otherHeading = ""

// heading recognizes "#" headings and lines that are bold as a whole, such
// as "**Findings:**". Bold lines only count when they name a known section.
func heading(line string) (string, bool) {
	var title string
	switch {
	case strings.HasPrefix(line, "#"):
		title = strings.TrimLeft(line, "#")
	case len(line) > 4 && strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**"):
		title = line[2 : len(line)-2]
	default:
		return "", false
	}
	title = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), ":")))
	switch {
	case strings.Contains(title, "finding"):
		return HeadingFindings, true
	case strings.Contains(title, "recommendation"):
		return HeadingRecommendations, true
	case strings.HasPrefix(title, "summary"):
		return HeadingSummary, true
	case strings.HasPrefix(line, "#"):
		return otherHeading, true
	}
	return "", false
}

func bullet(line string) (string, bool) {
	for _, p := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, p) {
			item := strings.TrimSpace(line[len(p):])
			return item, item != ""
		}
	}
	// Numbered items: "1. text" or "1) text".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		item := strings.TrimSpace(line[i+2:])
		return item, item != ""
	}
	return "", false
}
