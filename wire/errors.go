package wire

import "fmt"

// ProtocolError represents a protocol-level fault (malformed JSON,
// unclassifiable message shape). It is fatal to the connection.
type ProtocolError struct {
	Cause   error
	Message string
	Line    string
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// FrameError represents a fault in the byte-level framing (bad header,
// truncated body). It is fatal to the connection.
type FrameError struct {
	Cause   error
	Message string
}

func (e *FrameError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *FrameError) Unwrap() error {
	return e.Cause
}
