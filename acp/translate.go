package acp

import "github.com/bazelment/agentlink/protocol"

// translateUpdate maps one ACP session/update onto the uniform event
// vocabulary. Updates with no uniform equivalent return ok=false and are
// skipped.
func translateUpdate(u SessionUpdate) (protocol.SessionEvent, bool) {
	switch u.Type {
	case "agent_message_chunk":
		return protocol.SessionEvent{
			Type:    protocol.EventAssistantMessageDelta,
			Content: contentText(u.Content),
		}, true

	case "agent_thought_chunk":
		return protocol.SessionEvent{
			Type:    protocol.EventAssistantReasoningDelta,
			Content: contentText(u.Content),
		}, true

	case "agent_message":
		return protocol.SessionEvent{
			Type:    protocol.EventAssistantMessage,
			Content: contentText(u.Content),
		}, true

	case "tool_call":
		return protocol.SessionEvent{
			Type:       protocol.EventToolExecutionStart,
			ToolCallID: u.ToolCallID,
			ToolName:   u.ToolName,
			Status:     u.Status,
			Input:      u.Input,
		}, true

	case "tool_call_update":
		return protocol.SessionEvent{
			Type:       protocol.EventToolExecutionUpdate,
			ToolCallID: u.ToolCallID,
			ToolName:   u.ToolName,
			Status:     u.Status,
			Input:      u.Input,
		}, true

	case "plan_update":
		var entries []protocol.PlanEntry
		if u.Plan != nil {
			entries = make([]protocol.PlanEntry, 0, len(u.Plan.Entries))
			for _, e := range u.Plan.Entries {
				entries = append(entries, protocol.PlanEntry{
					Title:    e.Title,
					Status:   e.Status,
					Priority: e.Priority,
				})
			}
		}
		return protocol.SessionEvent{
			Type: protocol.EventPlanUpdate,
			Plan: entries,
		}, true

	default:
		return protocol.SessionEvent{}, false
	}
}

func contentText(c *ContentBlock) string {
	if c == nil {
		return ""
	}
	return c.Text
}
