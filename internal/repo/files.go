package repo

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ImportantPatterns select files that describe a project.
var ImportantPatterns = []string{
	"README*",
	"CHANGELOG*",
	"LICENSE*",
	"CONTRIBUTING*",
	"SECURITY*",
	"setup.py",
	"main.*",
	"index.*",
	"app.*",
	"server.*",
	"client.*",
}

// SecurityPatterns select manifests, lock files and files likely to carry
// credentials or security-relevant configuration.
var SecurityPatterns = []string{
	"requirements.txt",
	"package.json",
	"package-lock.json",
	"Pipfile",
	"Pipfile.lock",
	"composer.json",
	"pom.xml",
	"go.mod",
	"go.sum",
	"Cargo.toml",
	"yarn.lock",
	".*secret*",
	"*secrets*",
	".*config*",
	".env*",
	".docker*",
	"Dockerfile*",
	"*.key",
	"*.pem",
	"*.cert",
	"auth*",
	"login*",
}

// DependencyPatterns select dependency manifests.
var DependencyPatterns = []string{
	"requirements*.txt",
	"package.json",
	"Pipfile",
	"pyproject.toml",
	"composer.json",
	"pom.xml",
	"build.gradle*",
	"go.mod",
	"Cargo.toml",
	"Gemfile",
}

// File is one entry of a repository listing.
type File struct {
	Path string `json:"path" yaml:"path"`
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"` // "file" or "dir"
	Size int    `json:"size" yaml:"size"`
}

// IsFile reports whether f is a regular file.
func (f File) IsFile() bool { return f.Type == "" || f.Type == "file" }

// MatchAny reports whether the base name of p matches one of patterns.
// Matching is case-insensitive; malformed patterns never match.
func MatchAny(patterns []string, p string) bool {
	name := strings.ToLower(path.Base(p))
	for _, pat := range patterns {
		ok, err := doublestar.Match(strings.ToLower(pat), name)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Select picks up to limit files from listing. Files matching primary come
// first, then files matching secondary, each group in path order. A limit of
// zero or less means no limit.
func Select(listing []File, limit int, primary, secondary []string) []File {
	var first, second []File
	for _, f := range listing {
		if !f.IsFile() {
			continue
		}
		switch {
		case MatchAny(primary, f.Path):
			first = append(first, f)
		case MatchAny(secondary, f.Path):
			second = append(second, f)
		}
	}
	byPath := func(s []File) {
		sort.Slice(s, func(i, j int) bool { return s[i].Path < s[j].Path })
	}
	byPath(first)
	byPath(second)

	out := append(first, second...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// IsReadme reports whether p names a README file.
func IsReadme(p string) bool {
	return MatchAny([]string{"readme*"}, p)
}
