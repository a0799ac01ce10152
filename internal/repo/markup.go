package repo

import (
	"strings"

	"golang.org/x/net/html"
)

// skipTags hold no readable content.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"iframe": true, "svg": true, "object": true,
}

// StripMarkup removes embedded HTML from Markdown such as README files.
// Text is kept as written (Markdown syntax included), tags and comments are
// dropped, entities are decoded and runs of blank lines are collapsed.
func StripMarkup(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))

	var sb strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF: a strings.Reader cannot fail otherwise.
			return collapseBlankLines(strings.TrimSpace(sb.String()))

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tagName := string(tn)
			if skipTags[tagName] && tt == html.StartTagToken {
				skipDepth++
			}
			if isBlockElement(tagName) && sb.Len() > 0 {
				ensureNewline(&sb)
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tagName := string(tn)
			if skipTags[tagName] && skipDepth > 0 {
				skipDepth--
			}
			if isBlockElement(tagName) && sb.Len() > 0 {
				ensureNewline(&sb)
			}

		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}
}

func ensureNewline(sb *strings.Builder) {
	s := sb.String()
	if s[len(s)-1] != '\n' {
		sb.WriteString("\n")
	}
}

// collapseBlankLines reduces 3+ consecutive newlines down to 2 (one blank line)
// and drops trailing whitespace left behind by removed tags.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var result []string
	blankCount := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blankCount++
			if blankCount <= 1 {
				result = append(result, line)
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// isBlockElement returns true for HTML block-level elements
// that should have line breaks between them.
func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "tr", "br", "hr", "blockquote", "pre",
		"details", "summary", "picture",
		"table", "thead", "tbody", "tfoot":
		return true
	}
	return false
}
