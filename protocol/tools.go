package protocol

import (
	"encoding/json"
	"fmt"
)

// ToolCallParams is the params shape of an inbound tool.call request.
type ToolCallParams struct {
	SessionID  string          `json:"sessionId"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult wraps the tool result as the server expects it.
type ToolCallResult struct {
	Result ToolResult `json:"result"`
}

// Tool result types.
const (
	ResultTypeSuccess = "success"
	ResultTypeFailure = "failure"
)

// ToolResult is the outcome of executing a client-side tool.
//
// TextResultForLLM is the only field surfaced to the model. Error is an
// internal diagnostic field: handler fault text lands there and must never
// be copied into TextResultForLLM.
type ToolResult struct {
	TextResultForLLM string                 `json:"textResultForLLM"`
	ResultType       string                 `json:"resultType"`
	Error            string                 `json:"error,omitempty"`
	Telemetry        map[string]interface{} `json:"toolTelemetry,omitempty"`
}

// SuccessToolResult builds a success result with the given model-visible text.
func SuccessToolResult(text string) ToolResult {
	return ToolResult{
		TextResultForLLM: text,
		ResultType:       ResultTypeSuccess,
		Telemetry:        map[string]interface{}{},
	}
}

// FailedToolResult builds a failure result. The detailed error is kept in
// the internal Error field and hidden from the model.
func FailedToolResult(internalError string) ToolResult {
	return ToolResult{
		TextResultForLLM: "Invoking this tool produced an error. Detailed information is not available.",
		ResultType:       ResultTypeFailure,
		Error:            internalError,
		Telemetry:        map[string]interface{}{},
	}
}

// UnsupportedToolResult builds a failure result for a tool the client has
// no handler for.
func UnsupportedToolResult(toolName string) ToolResult {
	return ToolResult{
		TextResultForLLM: fmt.Sprintf("Tool '%s' is not supported by this client instance.", toolName),
		ResultType:       ResultTypeFailure,
		Error:            fmt.Sprintf("tool '%s' not supported", toolName),
		Telemetry:        map[string]interface{}{},
	}
}
