package agentlink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bazelment/agentlink/protocol"
	"github.com/bazelment/agentlink/wire"
)

// dispatcher routes inbound server traffic to the owning session.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (d *dispatcher) add(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[s.id] = s
}

func (d *dispatcher) remove(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}

func (d *dispatcher) get(sessionID string) (*Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[sessionID]
	return s, ok
}

// drain removes and returns every tracked session.
func (d *dispatcher) drain() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	d.sessions = make(map[string]*Session)
	return out
}

// register wires the dispatcher's handlers onto the adapter. Called once
// per connection, before the read loop starts.
func (d *dispatcher) register(adapter protocolAdapter) {
	adapter.Subscribe(protocol.MethodSessionEvent, d.onSessionEvent)
	adapter.Subscribe(protocol.MethodSessionLifecycle, d.onSessionLifecycle)
	adapter.Handle(protocol.MethodToolCall, d.onToolCall)
	adapter.Handle(protocol.MethodPermissionRequest, d.onPermissionRequest)
	adapter.Handle(protocol.MethodUserInputRequest, d.onUserInputRequest)
	adapter.Handle(protocol.MethodHookInvoke, d.onHookInvoke)
}

func (d *dispatcher) onSessionEvent(method string, params json.RawMessage) {
	var p protocol.SessionEventParams
	if err := json.Unmarshal(params, &p); err != nil {
		d.logger.Warn("unparseable session event", "error", err)
		return
	}

	s, ok := d.get(p.SessionID)
	if !ok {
		d.logger.Warn("event for unknown session", "session", p.SessionID, "type", p.Event.Type)
		return
	}
	s.dispatchEvent(p.Event)
}

func (d *dispatcher) onSessionLifecycle(method string, params json.RawMessage) {
	var p protocol.SessionLifecycleParams
	if err := json.Unmarshal(params, &p); err != nil {
		d.logger.Warn("unparseable lifecycle notification", "error", err)
		return
	}
	d.logger.Debug("session lifecycle", "session", p.SessionID, "phase", p.Phase)
}

func (d *dispatcher) onToolCall(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
	var p protocol.ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}

	s, ok := d.get(p.SessionID)
	if !ok {
		return nil, unknownSession(p.SessionID)
	}
	return protocol.ToolCallResult{Result: s.runTool(ctx, p)}, nil
}

func (d *dispatcher) onPermissionRequest(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
	var p protocol.PermissionRequestParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}

	s, ok := d.get(p.SessionID)
	if !ok {
		return nil, unknownSession(p.SessionID)
	}
	return protocol.PermissionRequestResult{Result: s.decidePermission(ctx, p.Request)}, nil
}

func (d *dispatcher) onUserInputRequest(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
	var p protocol.UserInputParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}

	s, ok := d.get(p.SessionID)
	if !ok {
		return nil, unknownSession(p.SessionID)
	}

	result, err := s.answerUserInput(ctx, p)
	if err != nil {
		return nil, &wire.Error{Code: wire.ErrCodeInternalError, Message: err.Error()}
	}
	return result, nil
}

func (d *dispatcher) onHookInvoke(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
	var p protocol.HookInvokeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}

	s, ok := d.get(p.SessionID)
	if !ok {
		return nil, unknownSession(p.SessionID)
	}
	return s.runHook(ctx, p), nil
}

func invalidParams(err error) *wire.Error {
	return &wire.Error{Code: wire.ErrCodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
}

func unknownSession(sessionID string) *wire.Error {
	return &wire.Error{Code: wire.ErrCodeInvalidParams, Message: fmt.Sprintf("unknown session %q", sessionID)}
}
