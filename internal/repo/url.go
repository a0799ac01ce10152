// Package repo holds GitHub repository references, file selection rules and
// content cleanup used before files enter a transcript.
package repo

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned by ParseURL for anything that is not a GitHub repository URL.
var ErrInvalidURL = errors.New("invalid GitHub URL")

// maxNameLen is GitHub's limit for user and repository names.
const maxNameLen = 39

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// Ref identifies one repository.
type Ref struct {
	URL      string `json:"url" yaml:"url"`
	Owner    string `json:"owner" yaml:"owner"`
	Name     string `json:"name" yaml:"name"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"` // scheme was not https
}

// FullName returns "owner/name".
func (r Ref) FullName() string { return r.Owner + "/" + r.Name }

// ParseURL validates raw and extracts owner and repository name. Extra path
// segments such as /tree/main are ignored and a .git suffix is stripped.
// Non-HTTPS URLs are accepted; Insecure is set so callers can warn.
func ParseURL(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("%w: URL cannot be empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Host) {
	case "github.com", "www.github.com":
	default:
		return Ref{}, fmt.Errorf("%w: %q is not a github.com URL", ErrInvalidURL, raw)
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return Ref{}, fmt.Errorf("%w: %q must include both owner and repository name", ErrInvalidURL, raw)
	}
	owner, name := parts[0], strings.TrimSuffix(parts[1], ".git")
	if !ValidName(owner) {
		return Ref{}, fmt.Errorf("%w: invalid GitHub username %q", ErrInvalidURL, owner)
	}
	if !ValidName(name) {
		return Ref{}, fmt.Errorf("%w: invalid GitHub repository name %q", ErrInvalidURL, name)
	}
	return Ref{
		URL:      raw,
		Owner:    owner,
		Name:     name,
		Insecure: u.Scheme != "https",
	}, nil
}

// ValidName reports whether name is an acceptable GitHub user or repository
// name: 1-39 characters, alphanumeric at both ends, single hyphens inside.
func ValidName(name string) bool {
	if name == "" || len(name) > maxNameLen {
		return false
	}
	return namePattern.MatchString(name) && !strings.Contains(name, "--")
}
