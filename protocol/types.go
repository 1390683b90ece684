package protocol

import "encoding/json"

// PingParams is the payload for the connectivity probe.
type PingParams struct {
	Message string `json:"message,omitempty"`
}

// PingResult echoes the probe and reports the server's protocol version.
// ProtocolVersion is a pointer so a missing field is distinguishable from
// version zero.
type PingResult struct {
	ProtocolVersion *int   `json:"protocolVersion,omitempty"`
	Message         string `json:"message,omitempty"`
	Timestamp       int64  `json:"timestamp,omitempty"`
}

// StatusResult reports server version and authentication state.
type StatusResult struct {
	Version       string `json:"version,omitempty"`
	Login         string `json:"login,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// ModelInfo describes one model offered by the server.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ModelsListResult is the result of models.list.
type ModelsListResult struct {
	Models []ModelInfo `json:"models"`
}

// ToolDefinition advertises a client-side tool to the server.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// SystemMessageConfig customizes the session's system message.
type SystemMessageConfig struct {
	Mode    string `json:"mode,omitempty"` // "append" or "replace"
	Content string `json:"content,omitempty"`
}

// MCPServerConfig configures an MCP server for the session. It is passed
// opaquely to the backend, which owns the MCP runtime.
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command,omitempty"`
	URL     string            `json:"url,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// CreateSessionParams is the payload for session.create.
type CreateSessionParams struct {
	Model             string                     `json:"model,omitempty"`
	Tools             []ToolDefinition           `json:"tools,omitempty"`
	SystemMessage     *SystemMessageConfig       `json:"systemMessage,omitempty"`
	MCPServers        map[string]MCPServerConfig `json:"mcpServers,omitempty"`
	AvailableTools    []string                   `json:"availableTools,omitempty"`
	ExcludedTools     []string                   `json:"excludedTools,omitempty"`
	Streaming         bool                       `json:"streaming,omitempty"`
	RequestPermission bool                       `json:"requestPermission,omitempty"`
	RequestUserInput  bool                       `json:"requestUserInput,omitempty"`
	Hooks             []string                   `json:"hooks,omitempty"`
}

// CreateSessionResult carries the id of the created session.
type CreateSessionResult struct {
	SessionID string `json:"sessionId"`
}

// ResumeSessionParams is the payload for session.resume.
type ResumeSessionParams struct {
	SessionID         string                     `json:"sessionId"`
	Tools             []ToolDefinition           `json:"tools,omitempty"`
	MCPServers        map[string]MCPServerConfig `json:"mcpServers,omitempty"`
	Streaming         bool                       `json:"streaming,omitempty"`
	RequestPermission bool                       `json:"requestPermission,omitempty"`
	RequestUserInput  bool                       `json:"requestUserInput,omitempty"`
	Hooks             []string                   `json:"hooks,omitempty"`
}

// Attachment references a file included with a prompt.
type Attachment struct {
	Path string `json:"path,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// SendParams is the payload for session.send.
type SendParams struct {
	SessionID   string       `json:"sessionId"`
	Prompt      string       `json:"prompt"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Mode        string       `json:"mode,omitempty"`
}

// SendResult carries the id assigned to the sent message.
type SendResult struct {
	MessageID string `json:"messageId,omitempty"`
}

// SessionInfo describes a stored session, as returned by session.list.
type SessionInfo struct {
	SessionID string `json:"sessionId"`
	Model     string `json:"model,omitempty"`
	Summary   string `json:"summary,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ListSessionsResult is the result of session.list.
type ListSessionsResult struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionRefParams identifies a session for delete/history/abort/destroy
// and foreground operations.
type SessionRefParams struct {
	SessionID string `json:"sessionId"`
}

// HistoryResult is the result of session.history.
type HistoryResult struct {
	Events []SessionEvent `json:"events"`
}

// ForegroundResult is the result of session.foreground.get.
type ForegroundResult struct {
	SessionID string `json:"sessionId,omitempty"`
}
