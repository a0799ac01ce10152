package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pocketomega/repolens/internal/repo"
)

var (
	// ErrToolFailed is returned when the server answers a tool call with IsError.
	ErrToolFailed = errors.New("mcp: tool returned error")
	// ErrNotFound is returned when a repository lookup finds nothing.
	ErrNotFound = errors.New("mcp: repository not found")
	// ErrUnexpectedPayload is returned for tool output that cannot be parsed.
	ErrUnexpectedPayload = errors.New("mcp: unexpected tool payload")
	// ErrMissingTool is returned when the server does not offer a tool GitHub calls.
	ErrMissingTool = errors.New("mcp: required tool not offered")
)

// GitHub MCP server tool names.
const (
	ToolSearchRepositories = "search_repositories"
	ToolGetFileContents    = "get_file_contents"
)

// GitHubTools are the tools the GitHub facade calls.
var GitHubTools = []string{ToolSearchRepositories, ToolGetFileContents}

// ToolLister is the part of a Client that lists server tools.
type ToolLister interface {
	ListTools(ctx context.Context) ([]ToolInfo, error)
}

// CheckTools fails with ErrMissingTool unless lister offers every tool in GitHubTools.
func CheckTools(ctx context.Context, lister ToolLister) error {
	tools, err := lister.ListTools(ctx)
	if err != nil {
		return err
	}
	offered := make(map[string]bool, len(tools))
	for _, t := range tools {
		offered[t.Name] = true
	}
	var missing []string
	for _, name := range GitHubTools {
		if !offered[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (server offers %d tools)", ErrMissingTool, strings.Join(missing, ", "), len(tools))
	}
	return nil
}

// GitHubServerName is the mcp.json key looked up for the GitHub server.
const GitHubServerName = "github"

// GitHub reads repositories through the GitHub MCP server.
type GitHub struct {
	caller ToolCaller
	tracer trace.Tracer
}

// NewGitHub wraps caller. A nil tracer uses the global provider.
func NewGitHub(caller ToolCaller, tracer trace.Tracer) *GitHub {
	if tracer == nil {
		tracer = otel.Tracer("repolens/mcp")
	}
	return &GitHub{caller: caller, tracer: tracer}
}

func (g *GitHub) call(ctx context.Context, tool string, args map[string]any) (ToolResult, error) {
	ctx, span := g.tracer.Start(ctx, "mcp."+tool, trace.WithAttributes(attribute.String("mcp.tool", tool)))
	defer span.End()
	res, err := g.caller.CallTool(ctx, tool, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// Repository returns metadata for ref.
func (g *GitHub) Repository(ctx context.Context, ref repo.Ref) (repo.Info, error) {
	res, err := g.call(ctx, ToolSearchRepositories, map[string]any{
		"query":   "repo:" + ref.FullName(),
		"perPage": 1,
	})
	if err != nil {
		return repo.Info{}, err
	}
	if !gjson.Valid(res.Text) {
		return repo.Info{}, fmt.Errorf("%w: %s returned non-JSON output", ErrUnexpectedPayload, ToolSearchRepositories)
	}

	item := findRepository(gjson.Get(res.Text, "items"), ref)
	if !item.Exists() {
		return repo.Info{}, fmt.Errorf("%w: %s", ErrNotFound, ref.FullName())
	}
	info := repo.Info{
		Ref:           ref,
		Description:   item.Get("description").String(),
		Language:      item.Get("language").String(),
		Stars:         int(item.Get("stargazers_count").Int()),
		Forks:         int(item.Get("forks_count").Int()),
		Size:          int(item.Get("size").Int()),
		DefaultBranch: item.Get("default_branch").String(),
	}
	if info.DefaultBranch == "" {
		info.DefaultBranch = "main"
	}
	return info, nil
}

// findRepository picks the search hit whose full name matches ref.
func findRepository(items gjson.Result, ref repo.Ref) gjson.Result {
	var found gjson.Result
	items.ForEach(func(_, item gjson.Result) bool {
		if strings.EqualFold(item.Get("full_name").String(), ref.FullName()) {
			found = item
			return false
		}
		return true
	})
	return found
}

// List returns the entries of the directory dir ("" for the root).
func (g *GitHub) List(ctx context.Context, ref repo.Ref, dir string) ([]repo.File, error) {
	res, err := g.call(ctx, ToolGetFileContents, map[string]any{
		"owner": ref.Owner,
		"repo":  ref.Name,
		"path":  "/" + strings.TrimPrefix(dir, "/"),
	})
	if err != nil {
		return nil, err
	}
	listing := gjson.Parse(res.Text)
	if !gjson.Valid(res.Text) || !listing.IsArray() {
		return nil, fmt.Errorf("%w: %s on %q did not return a directory listing", ErrUnexpectedPayload, ToolGetFileContents, dir)
	}

	var files []repo.File
	listing.ForEach(func(_, entry gjson.Result) bool {
		files = append(files, repo.File{
			Path: entry.Get("path").String(),
			Name: entry.Get("name").String(),
			Type: entry.Get("type").String(),
			Size: int(entry.Get("size").Int()),
		})
		return true
	})
	return files, nil
}

// File returns the text content of the file at path.
func (g *GitHub) File(ctx context.Context, ref repo.Ref, path string) (string, error) {
	res, err := g.call(ctx, ToolGetFileContents, map[string]any{
		"owner": ref.Owner,
		"repo":  ref.Name,
		"path":  path,
	})
	if err != nil {
		return "", err
	}
	// Newer servers send the file as an embedded resource next to a status line.
	if len(res.Resources) > 0 {
		return res.Resources[0], nil
	}
	return decodeFile(res.Text, path)
}

// decodeFile handles the older payloads: a GitHub contents object with
// base64 content, or the raw file text.
func decodeFile(text, path string) (string, error) {
	if !gjson.Valid(text) {
		return text, nil
	}
	doc := gjson.Parse(text)
	if doc.IsArray() {
		return "", fmt.Errorf("%w: %q is a directory", ErrUnexpectedPayload, path)
	}
	content := doc.Get("content")
	if !doc.IsObject() || !content.Exists() {
		return text, nil
	}
	if doc.Get("encoding").String() != "base64" {
		return content.String(), nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.String(), "\n", ""))
	if err != nil {
		return "", fmt.Errorf("%w: decode %q: %w", ErrUnexpectedPayload, path, err)
	}
	return string(raw), nil
}

// GitHubServer resolves the connection settings for the GitHub MCP server.
// An mcp.json entry named "github" wins; otherwise url selects SSE and
// command selects stdio. The token is passed as GITHUB_PERSONAL_ACCESS_TOKEN
// (stdio) or as a bearer header (SSE).
func GitHubServer(configPath, command string, args []string, url, token string) (ServerConfig, error) {
	if configPath != "" {
		configs, err := LoadConfig(configPath)
		if err != nil {
			return ServerConfig{}, err
		}
		cfg, ok := configs[GitHubServerName]
		if !ok {
			return ServerConfig{}, fmt.Errorf("mcp: %q has no %q server", configPath, GitHubServerName)
		}
		return withToken(cfg, token), nil
	}
	if url != "" {
		return withToken(ServerConfig{Name: GitHubServerName, Transport: "sse", URL: url}, token), nil
	}
	if command == "" {
		return ServerConfig{}, errors.New("mcp: no GitHub MCP server configured")
	}
	return withToken(ServerConfig{Name: GitHubServerName, Transport: "stdio", Command: command, Args: args}, token), nil
}

func withToken(cfg ServerConfig, token string) ServerConfig {
	if token == "" {
		return cfg
	}
	switch cfg.Transport {
	case "sse":
		headers := make(map[string]string, len(cfg.Headers)+1)
		for k, v := range cfg.Headers {
			headers[k] = v
		}
		if _, ok := headers["Authorization"]; !ok {
			headers["Authorization"] = "Bearer " + token
		}
		cfg.Headers = headers
	default:
		env := append([]string(nil), cfg.Env...)
		cfg.Env = append(env, "GITHUB_PERSONAL_ACCESS_TOKEN="+token)
	}
	return cfg
}
