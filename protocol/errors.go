package protocol

import "fmt"

// CapabilityError reports a method the active wire protocol cannot express.
// It is returned before any bytes reach the wire.
type CapabilityError struct {
	Method string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("method %q is not supported by the active wire protocol", e.Method)
}

// VersionError reports a failed protocol version handshake. Reported is nil
// when the server did not report a version at all.
type VersionError struct {
	Reported *int
	Expected int
}

func (e *VersionError) Error() string {
	if e.Reported == nil {
		return fmt.Sprintf("protocol version mismatch: client expects version %d, but server does not report a protocol version (it may be too old)", e.Expected)
	}
	return fmt.Sprintf("protocol version mismatch: client expects version %d, but server reports version %d", e.Expected, *e.Reported)
}
