package acp

import "encoding/json"

// ProtocolVersion is the ACP protocol version this adapter speaks.
const ProtocolVersion = 1

// InitializeRequest is sent by the client to establish the connection.
type InitializeRequest struct {
	ClientInfo      *Implementation `json:"clientInfo,omitempty"`
	ProtocolVersion int             `json:"protocolVersion"`
}

// InitializeResponse is returned by the agent with its capabilities.
// ProtocolVersion is a pointer so an agent that omits the field is
// distinguishable from one reporting version zero.
type InitializeResponse struct {
	AgentCapabilities *AgentCapabilities `json:"agentCapabilities,omitempty"`
	AgentInfo         *Implementation    `json:"agentInfo,omitempty"`
	ProtocolVersion   *int               `json:"protocolVersion,omitempty"`
}

// Implementation identifies a client or agent.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// AgentCapabilities advertises what the agent supports.
type AgentCapabilities struct {
	LoadSession bool `json:"loadSession,omitempty"`
}

// NewSessionRequest creates a new conversation session.
type NewSessionRequest struct {
	CWD        string            `json:"cwd"`
	McpServers []McpServerConfig `json:"mcpServers"`
}

// NewSessionResponse returns the created session id.
type NewSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// LoadSessionRequest resumes a stored session.
type LoadSessionRequest struct {
	SessionID  string            `json:"sessionId"`
	CWD        string            `json:"cwd"`
	McpServers []McpServerConfig `json:"mcpServers"`
}

// LoadSessionResponse is empty on success.
type LoadSessionResponse struct{}

// McpServerConfig configures an MCP server for the session.
type McpServerConfig struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Command string   `json:"command,omitempty"`
	URL     string   `json:"url,omitempty"`
	Env     []EnvVar `json:"env,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// EnvVar is a name-value pair for environment variables.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PromptRequest sends a user prompt to the agent.
type PromptRequest struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// PromptResponse indicates the prompt turn has completed.
type PromptResponse struct {
	StopReason string `json:"stopReason"` // "end_turn", "cancelled", "max_tokens"
}

// ContentBlock represents typed content in prompts and messages.
// Discriminated by the Type field.
type ContentBlock struct {
	Type string `json:"type"` // "text", "image", "resource_link"
	Text string `json:"text,omitempty"`

	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"` // base64-encoded
	URI      string `json:"uri,omitempty"`
}

// NewTextContent creates a text content block.
func NewTextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// SessionNotification is the params for a session/update notification.
type SessionNotification struct {
	SessionID string        `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}

// SessionUpdate is a discriminated union of update types. The Type field
// determines which other fields are populated.
type SessionUpdate struct {
	Type string `json:"sessionUpdate"` // "agent_message_chunk", "tool_call", ...

	// agent_message_chunk / agent_thought_chunk / agent_message fields
	Content *ContentBlock `json:"content,omitempty"`

	// tool_call / tool_call_update fields
	ToolCallID string                 `json:"toolCallId,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Input      map[string]interface{} `json:"input,omitempty"`

	// plan_update fields
	Plan *Plan `json:"plan,omitempty"`

	Meta json.RawMessage `json:"_meta,omitempty"`
}

// Plan represents an agent's execution plan.
type Plan struct {
	Entries []PlanEntry `json:"entries"`
}

// PlanEntry is a single step in a plan.
type PlanEntry struct {
	Title    string `json:"title"`
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// CancelNotification is sent by the client to cancel a prompt turn.
type CancelNotification struct {
	SessionID string `json:"sessionId"`
}

// RequestPermissionRequest is sent by the agent to request tool permission.
type RequestPermissionRequest struct {
	ToolCall  ToolCallInfo       `json:"toolCall"`
	SessionID string             `json:"sessionId"`
	Options   []PermissionOption `json:"options"`
}

// ToolCallInfo describes the tool call requiring permission.
type ToolCallInfo struct {
	Input      map[string]interface{} `json:"input"`
	ToolCallID string                 `json:"toolCallId"`
	ToolName   string                 `json:"toolName,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Kind       string                 `json:"kind,omitempty"`
}

// PermissionOption describes a permission choice.
type PermissionOption struct {
	ID   string `json:"optionId"`
	Name string `json:"name"`
	Kind string `json:"kind"` // "allow_once", "allow_always", "reject_once", "reject_always"
}

// RequestPermissionResponse returns the chosen outcome.
type RequestPermissionResponse struct {
	Outcome PermissionOutcome `json:"outcome"`
}

// PermissionOutcome is the result of a permission request. Discriminated
// by the Type field.
type PermissionOutcome struct {
	Type     string `json:"outcome"` // "cancelled", "selected"
	OptionID string `json:"optionId,omitempty"`
}
