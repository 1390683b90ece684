package protocol

import "encoding/json"

// UserInputParams is the params shape of an inbound userInput.request
// request.
type UserInputParams struct {
	SessionID     string   `json:"sessionId"`
	Question      string   `json:"question"`
	Choices       []string `json:"choices,omitempty"`
	AllowFreeform bool     `json:"allowFreeform,omitempty"`
}

// UserInputResult is the client's answer to a userInput.request.
type UserInputResult struct {
	Answer      string `json:"answer"`
	WasFreeform bool   `json:"wasFreeform,omitempty"`
}

// HookInvokeParams is the params shape of an inbound hook.invoke request.
type HookInvokeParams struct {
	SessionID string          `json:"sessionId"`
	Hook      string          `json:"hook"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// HookInvokeResult carries the hook's output back to the server. Output is
// always present, empty when the hook produced nothing.
type HookInvokeResult struct {
	Output map[string]interface{} `json:"output"`
}
