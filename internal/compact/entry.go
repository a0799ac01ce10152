package compact

import "fmt"

// Role identifies who produced an entry.
type Role string

// Role constants. They match the chat roles used by internal/llm.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		return true
	}
	return false
}

// Entry is one unit of transcript content.
// Tokens is filled in by the Compactor on append and should be left zero by callers.
type Entry struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
	Tokens  int    `json:"tokens" yaml:"tokens"`
	Summary bool   `json:"summary,omitempty" yaml:"summary,omitempty"` // produced by compaction
}

// NewEntry is a convenience constructor for an ordinary entry.
func NewEntry(role Role, content string) Entry {
	return Entry{Role: role, Content: content}
}

func (e Entry) String() string {
	tag := string(e.Role)
	if e.Summary {
		tag += "/summary"
	}
	return fmt.Sprintf("[%s %dt] %s", tag, e.Tokens, e.Content)
}
