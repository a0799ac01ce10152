// Package analysis defines the kinds of repository analysis and the
// instructions each one gives the model.
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pocketomega/repolens/internal/repo"
)

// Kind names an analysis type.
type Kind string

const (
	KindSummary      Kind = "summary"
	KindSecurity     Kind = "security"
	KindCustom       Kind = "custom"
	KindCodeReview   Kind = "code_review"
	KindDependencies Kind = "dependencies"
)

// ErrInvalidType is returned by Parse for unknown kinds and for a custom
// analysis without a prompt.
var ErrInvalidType = errors.New("invalid analysis type")

// Type is one analysis variant. The set is closed: Summary, Security,
// CodeReview, Dependencies and Custom.
type Type interface {
	Kind() Kind
	// Instructions is the system prompt for the final analysis call.
	Instructions() string
	// Patterns lists file patterns in priority order: primary, then secondary.
	Patterns() (primary, secondary []string)

	sealed()
}

type Summary struct{}
type Security struct{}
type CodeReview struct{}
type Dependencies struct{}

// Custom carries a user-written analysis request.
type Custom struct {
	Prompt string
}

func (Summary) Kind() Kind      { return KindSummary }
func (Security) Kind() Kind     { return KindSecurity }
func (CodeReview) Kind() Kind   { return KindCodeReview }
func (Dependencies) Kind() Kind { return KindDependencies }
func (Custom) Kind() Kind       { return KindCustom }

func (Summary) sealed()      {}
func (Security) sealed()     {}
func (CodeReview) sealed()   {}
func (Dependencies) sealed() {}
func (Custom) sealed()       {}

func (Summary) Instructions() string      { return instructions(summaryTasks) }
func (Security) Instructions() string     { return instructions(securityTasks) }
func (CodeReview) Instructions() string   { return instructions(codeReviewTasks) }
func (Dependencies) Instructions() string { return instructions(dependencyTasks) }

func (c Custom) Instructions() string {
	return instructions("Answer the following request about the repository:\n" + strings.TrimSpace(c.Prompt))
}

func (Summary) Patterns() ([]string, []string) {
	return repo.ImportantPatterns, repo.SecurityPatterns
}

func (Security) Patterns() ([]string, []string) {
	return repo.SecurityPatterns, repo.ImportantPatterns
}

func (CodeReview) Patterns() ([]string, []string) {
	return repo.ImportantPatterns, repo.SecurityPatterns
}

func (Dependencies) Patterns() ([]string, []string) {
	return repo.DependencyPatterns, repo.SecurityPatterns
}

func (Custom) Patterns() ([]string, []string) {
	return repo.ImportantPatterns, repo.SecurityPatterns
}

// Kinds returns every known kind in sorted order.
func Kinds() []Kind {
	kinds := []Kind{KindSummary, KindSecurity, KindCustom, KindCodeReview, KindDependencies}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Parse resolves a kind name (case-insensitive) into a Type. prompt is
// required for custom analyses and ignored otherwise.
func Parse(kind, prompt string) (Type, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindSummary:
		return Summary{}, nil
	case KindSecurity:
		return Security{}, nil
	case KindCodeReview:
		return CodeReview{}, nil
	case KindDependencies:
		return Dependencies{}, nil
	case KindCustom:
		if strings.TrimSpace(prompt) == "" {
			return nil, fmt.Errorf("%w: custom analysis requires a prompt", ErrInvalidType)
		}
		return Custom{Prompt: prompt}, nil
	}
	names := make([]string, 0, 5)
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return nil, fmt.Errorf("%w %q, valid types: %s", ErrInvalidType, kind, strings.Join(names, ", "))
}
