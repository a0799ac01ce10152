// Package config loads repolens settings from .env files, an optional YAML
// file and the process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file and returns the path
// it loaded, or "" when none was found. Variables already set in the process
// environment are never overridden.
//
// Search order (stops at the first file found):
//  1. Explicit paths passed as arguments.
//  2. Directory of the running executable and up to three parents.
//  3. Current working directory, the fallback for `go run ./cmd/repolens`.
//
// If no .env is found anywhere, the program continues with system env vars.
func LoadEnv(paths ...string) (string, error) {
	if len(paths) > 0 {
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := godotenv.Load(p); err != nil {
				return "", fmt.Errorf("config: load %s: %w", p, err)
			}
			return p, nil
		}
		return "", nil
	}

	for _, p := range resolveEnvCandidates() {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				return "", fmt.Errorf("config: load %s: %w", p, err)
			}
			return p, nil
		}
	}
	return "", nil
}

// resolveEnvCandidates returns the ordered list of .env paths to try.
func resolveEnvCandidates() []string {
	var candidates []string
	seen := map[string]bool{}

	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}

	// 1. Walk up from the executable directory (up to 3 levels) so that
	//    bin/repolens finds the project-root .env.
	if exe, err := os.Executable(); err == nil {
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
		dir := filepath.Dir(exe)
		for i := 0; i <= 3; i++ {
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break // reached filesystem root
			}
			dir = parent
		}
	}

	// 2. Current working directory.
	if cwd, err := os.Getwd(); err == nil {
		add(filepath.Join(cwd, ".env"))
	}

	return candidates
}

// EnvFilePath returns the first .env candidate that exists, or a note listing
// every searched path. `config show` prints it when nothing was loaded.
func EnvFilePath() string {
	candidates := resolveEnvCandidates()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return fmt.Sprintf("(not found; searched %v)", candidates)
}
