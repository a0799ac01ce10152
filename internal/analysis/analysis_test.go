package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketomega/repolens/internal/repo"
)

func TestParse_ValidTypes(t *testing.T) {
	for _, k := range []Kind{KindSummary, KindSecurity, KindCodeReview, KindDependencies} {
		typ, err := Parse(string(k), "")
		require.NoError(t, err)
		assert.Equal(t, k, typ.Kind())

		typ, err = Parse(strings.ToUpper(string(k)), "")
		require.NoError(t, err)
		assert.Equal(t, k, typ.Kind())
	}

	typ, err := Parse("custom", "Which HTTP framework is used?")
	require.NoError(t, err)
	assert.Equal(t, Custom{Prompt: "Which HTTP framework is used?"}, typ)
}

func TestParse_Invalid(t *testing.T) {
	for _, k := range []string{"", "invalid", "test"} {
		_, err := Parse(k, "")
		assert.ErrorIs(t, err, ErrInvalidType, k)
	}
	_, err := Parse("custom", "   ")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestParse_ErrorListsValidTypes(t *testing.T) {
	_, err := Parse("bogus", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code_review, custom, dependencies, security, summary")
}

func TestInstructions(t *testing.T) {
	types := []Type{Summary{}, Security{}, CodeReview{}, Dependencies{}, Custom{Prompt: "List the CLI commands"}}
	for _, typ := range types {
		ins := typ.Instructions()
		assert.Contains(t, ins, HeadingFindings, typ.Kind())
		assert.Contains(t, ins, HeadingRecommendations, typ.Kind())
	}
	assert.Contains(t, Custom{Prompt: "List the CLI commands"}.Instructions(), "List the CLI commands")
	assert.Contains(t, Security{}.Instructions(), "vulnerabilities")
}

func TestPatterns(t *testing.T) {
	primary, _ := Security{}.Patterns()
	assert.Equal(t, repo.SecurityPatterns, primary)
	primary, _ = Dependencies{}.Patterns()
	assert.Equal(t, repo.DependencyPatterns, primary)
	primary, secondary := Summary{}.Patterns()
	assert.Equal(t, repo.ImportantPatterns, primary)
	assert.Equal(t, repo.SecurityPatterns, secondary)
}

func TestParseReport(t *testing.T) {
	answer := `## Summary
A small CLI written in Go.

It talks to GitHub.

## Findings
- No tests for the parser
* Secrets read from .env
1. go.mod pins an old x/net

## Recommendations
- Add parser tests
2) Upgrade x/net
`
	r := ParseReport(answer)
	assert.Equal(t, "A small CLI written in Go.\n\nIt talks to GitHub.", r.Summary)
	assert.Equal(t, []string{"No tests for the parser", "Secrets read from .env", "go.mod pins an old x/net"}, r.Findings)
	assert.Equal(t, []string{"Add parser tests", "Upgrade x/net"}, r.Recommendations)
}

func TestParseReport_FreeForm(t *testing.T) {
	r := ParseReport("Just a paragraph.\n- with a dash")
	assert.Equal(t, "Just a paragraph.\n- with a dash", r.Summary)
	assert.Empty(t, r.Findings)
	assert.Empty(t, r.Recommendations)
}

func TestParseReport_HeadingVariants(t *testing.T) {
	r := ParseReport("### Key Findings\n- a\n# recommendations\n- b\n## Overview\nkept")
	assert.Equal(t, "## Overview\nkept", r.Summary)
	assert.Equal(t, []string{"a"}, r.Findings)
	assert.Equal(t, []string{"b"}, r.Recommendations)
}

func TestParseReport_UnknownHeadingEndsSection(t *testing.T) {
	r := ParseReport("## Findings\n- real finding\n## Architecture\n- layered packages\n- cobra CLI")
	assert.Equal(t, []string{"real finding"}, r.Findings)
	assert.Equal(t, "## Architecture\n- layered packages\n- cobra CLI", r.Summary)
}

func TestParseReport_BoldHeadings(t *testing.T) {
	r := ParseReport("Overall fine.\n\n**Findings:**\n- weak token handling\n\n**Recommendations**\n- rotate keys")
	assert.Equal(t, []string{"weak token handling"}, r.Findings)
	assert.Equal(t, []string{"rotate keys"}, r.Recommendations)
	assert.Equal(t, "Overall fine.", r.Summary)
}
