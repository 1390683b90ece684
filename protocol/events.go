package protocol

// Session event types delivered via session.event notifications.
const (
	EventAssistantMessageDelta   = "assistant.message_delta"
	EventAssistantMessage        = "assistant.message"
	EventAssistantReasoningDelta = "assistant.reasoning_delta"
	EventToolExecutionStart      = "tool.execution_start"
	EventToolExecutionUpdate     = "tool.execution_update"
	EventPlanUpdate              = "plan.update"
	EventSessionIdle             = "session.idle"
	EventSessionError            = "session.error"
)

// SessionEvent is a discriminated union of session event payloads. The
// Type field determines which other fields are populated.
type SessionEvent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// assistant.* fields
	Content string `json:"content,omitempty"`

	// tool.execution_* fields
	ToolCallID string                 `json:"toolCallId,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	Status     string                 `json:"status,omitempty"` // "running", "completed", "errored"
	Input      map[string]interface{} `json:"input,omitempty"`

	// plan.update fields
	Plan []PlanEntry `json:"plan,omitempty"`

	// session.idle fields
	StopReason string `json:"stopReason,omitempty"`

	// session.error fields
	Error string `json:"error,omitempty"`
}

// PlanEntry is a single step in an agent plan.
type PlanEntry struct {
	Title    string `json:"title"`
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// SessionEventParams is the params shape of a session.event notification.
type SessionEventParams struct {
	SessionID string       `json:"sessionId"`
	Event     SessionEvent `json:"event"`
}

// Session lifecycle phases delivered via session.lifecycle notifications.
const (
	LifecycleCreated   = "created"
	LifecycleResumed   = "resumed"
	LifecycleDestroyed = "destroyed"
)

// SessionLifecycleParams is the params shape of a session.lifecycle
// notification.
type SessionLifecycleParams struct {
	SessionID string `json:"sessionId"`
	Phase     string `json:"phase"`
}
