package llm

import "github.com/pocketomega/repolens/internal/compact"

// SummaryPrefix marks a compaction summary when it is sent to the model.
const SummaryPrefix = "[Conversation summary]\n"

// ToolOutputPrefix marks gathered tool output sent as a user turn.
const ToolOutputPrefix = "[Tool output]\n"

// FromEntries converts a transcript into chat messages. Summary entries become
// system messages so the model treats them as background, not as a turn.
// Tool entries become labeled user messages: they were collected by the
// analyzer, not requested through a tool call, and chat APIs reject a tool
// message without one.
func FromEntries(entries []compact.Entry) []Message {
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Summary:
			msgs = append(msgs, Message{Role: RoleSystem, Content: SummaryPrefix + e.Content})
		case e.Role == compact.RoleTool:
			msgs = append(msgs, Message{Role: RoleUser, Content: ToolOutputPrefix + e.Content})
		default:
			msgs = append(msgs, Message{Role: string(e.Role), Content: e.Content})
		}
	}
	return msgs
}
