package wire

import (
	"encoding/json"
	"fmt"
)

// Message is a JSON-RPC 2.0 envelope. A single struct covers requests,
// notifications and responses; Classify discriminates by field presence.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind classifies a message by the presence of its id/method/result fields.
type Kind int

const (
	KindRequest      Kind = iota // id and method present
	KindNotification             // method present, id absent
	KindResponse                 // id present, method absent
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Error is a JSON-RPC 2.0 error object. It doubles as a Go error so RPC
// failures surface directly to callers.
type Error struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Classify parses raw bytes into a Message and determines its kind.
// Unparseable bytes or shapes that fit none of the three kinds are a
// protocol fault, never a silent drop.
func Classify(data []byte) (Kind, *Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, nil, &ProtocolError{Message: "failed to parse message", Line: string(data), Cause: err}
	}

	switch {
	case msg.Method != "" && msg.ID != nil:
		return KindRequest, &msg, nil
	case msg.Method != "":
		return KindNotification, &msg, nil
	case msg.ID != nil:
		if msg.Result != nil && msg.Error != nil {
			return 0, nil, &ProtocolError{Message: "response carries both result and error", Line: string(data)}
		}
		return KindResponse, &msg, nil
	default:
		return 0, nil, &ProtocolError{Message: "message is neither request, notification nor response", Line: string(data)}
	}
}

// NewRequest builds a request message with the given id.
func NewRequest(id int64, method string, params interface{}) (*Message, error) {
	data, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: &id, Method: method, Params: data}, nil
}

// NewNotification builds a notification message (no id).
func NewNotification(method string, params interface{}) (*Message, error) {
	data, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", Method: method, Params: data}, nil
}

// NewResponse builds a success response for the given request id.
func NewResponse(id int64, result interface{}) (*Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: &id, Result: data}, nil
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id int64, rpcErr *Error) *Message {
	return &Message{
		JSONRPC: "2.0",
		ID:      &id,
		Error:   rpcErr,
	}
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}
