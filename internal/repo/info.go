package repo

// Info describes a repository as seen through the GitHub MCP server.
type Info struct {
	Ref `yaml:",inline"`

	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Language      string   `json:"language,omitempty" yaml:"language,omitempty"`
	Stars         int      `json:"stars" yaml:"stars"`
	Forks         int      `json:"forks" yaml:"forks"`
	Size          int      `json:"size" yaml:"size"` // KB, as reported by GitHub
	DefaultBranch string   `json:"default_branch" yaml:"default_branch"`
	FilesAnalyzed []string `json:"files_analyzed,omitempty" yaml:"files_analyzed,omitempty"`
	SecurityFiles []string `json:"security_files,omitempty" yaml:"security_files,omitempty"`
	ReadmeContent string   `json:"-" yaml:"-"`
}
