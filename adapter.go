package agentlink

import (
	"context"
	"fmt"

	"github.com/bazelment/agentlink/protocol"
	"github.com/bazelment/agentlink/rpc"
)

// protocolAdapter is the seam between the client and a concrete wire
// protocol. The native adapter passes traffic through unchanged; the ACP
// adapter translates.
type protocolAdapter interface {
	Call(ctx context.Context, method string, params, out any) error
	Notify(method string, params any) error
	Handle(method string, handler rpc.RequestHandler)
	Subscribe(method string, handler rpc.NotificationHandler)
	VerifyProtocolVersion(ctx context.Context) error
	Done() <-chan struct{}
	Close() error
}

// nativeAdapter speaks the uniform protocol directly: every method maps
// one-to-one onto the wire.
type nativeAdapter struct {
	conn *rpc.Conn
}

func newNativeAdapter(conn *rpc.Conn) *nativeAdapter {
	return &nativeAdapter{conn: conn}
}

func (a *nativeAdapter) Call(ctx context.Context, method string, params, out any) error {
	return a.conn.Call(ctx, method, params, out)
}

func (a *nativeAdapter) Notify(method string, params any) error {
	return a.conn.Notify(method, params)
}

func (a *nativeAdapter) Handle(method string, handler rpc.RequestHandler) {
	a.conn.Handle(method, handler)
}

func (a *nativeAdapter) Subscribe(method string, handler rpc.NotificationHandler) {
	a.conn.Subscribe(method, handler)
}

// VerifyProtocolVersion pings the server and checks the reported protocol
// version against the compiled-in one. Missing or mismatched is fatal.
func (a *nativeAdapter) VerifyProtocolVersion(ctx context.Context) error {
	var result protocol.PingResult
	if err := a.conn.Call(ctx, protocol.MethodPing, protocol.PingParams{}, &result); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if result.ProtocolVersion == nil {
		return &protocol.VersionError{Expected: protocol.Version}
	}
	if *result.ProtocolVersion != protocol.Version {
		return &protocol.VersionError{Expected: protocol.Version, Reported: result.ProtocolVersion}
	}
	return nil
}

func (a *nativeAdapter) Done() <-chan struct{} {
	return a.conn.Done()
}

func (a *nativeAdapter) Close() error {
	return a.conn.Close()
}
