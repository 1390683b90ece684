// Package acp adapts the uniform session protocol onto an ACP
// (newline-delimited JSON-RPC) agent. Methods the wire protocol cannot
// express are rejected locally before any bytes are written.
package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bazelment/agentlink/protocol"
	"github.com/bazelment/agentlink/rpc"
	"github.com/bazelment/agentlink/wire"
)

// unsupportedMethods lists uniform methods ACP agents have no equivalent
// for. Calls to these fail locally with a CapabilityError.
var unsupportedMethods = map[string]struct{}{
	protocol.MethodSessionList:          {},
	protocol.MethodSessionDelete:        {},
	protocol.MethodSessionHistory:       {},
	protocol.MethodModelsList:           {},
	protocol.MethodStatusGet:            {},
	protocol.MethodSessionForegroundGet: {},
	protocol.MethodSessionForegroundSet: {},
}

// Adapter translates uniform protocol traffic to and from ACP over an
// rpc.Conn running newline-delimited framing.
type Adapter struct {
	conn   *rpc.Conn
	logger *slog.Logger
	cwd    string
	acc    *accumulator

	mu       sync.Mutex
	handlers map[string]rpc.RequestHandler
	subs     map[string][]rpc.NotificationHandler
	init     *InitializeResponse
}

// NewAdapter wires the adapter's translators onto conn. The conn must not
// have been started listening yet.
func NewAdapter(conn *rpc.Conn, cwd string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		conn:     conn,
		logger:   logger,
		cwd:      cwd,
		acc:      newAccumulator(),
		handlers: make(map[string]rpc.RequestHandler),
		subs:     make(map[string][]rpc.NotificationHandler),
	}
	conn.Subscribe("session/update", a.handleSessionUpdate)
	conn.Handle("session/request_permission", a.handlePermissionRequest)
	conn.OnClose(func(error) {
		// The cached handshake result is only valid for this connection.
		a.mu.Lock()
		a.init = nil
		a.mu.Unlock()
	})
	return a
}

// Handle registers a uniform-protocol request handler. ACP agents only
// ever send permission requests, so other registrations stay dormant.
func (a *Adapter) Handle(method string, handler rpc.RequestHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[method] = handler
}

// Subscribe registers a uniform-protocol notification handler.
func (a *Adapter) Subscribe(method string, handler rpc.NotificationHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs[method] = append(a.subs[method], handler)
}

// Done is closed when the underlying connection shuts down.
func (a *Adapter) Done() <-chan struct{} {
	return a.conn.Done()
}

// Close closes the underlying connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// VerifyProtocolVersion performs the initialize handshake and checks the
// agent's reported protocol version. The response is cached so ping can be
// answered locally afterwards.
func (a *Adapter) VerifyProtocolVersion(ctx context.Context) error {
	req := InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      &Implementation{Name: "agentlink"},
	}
	var resp InitializeResponse
	if err := a.conn.Call(ctx, "initialize", req, &resp); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if resp.ProtocolVersion == nil {
		return &protocol.VersionError{Expected: ProtocolVersion}
	}
	if *resp.ProtocolVersion != ProtocolVersion {
		return &protocol.VersionError{Expected: ProtocolVersion, Reported: resp.ProtocolVersion}
	}

	a.mu.Lock()
	a.init = &resp
	a.mu.Unlock()
	return nil
}

// Call translates one uniform method to its ACP equivalent. Unsupported
// methods fail with a CapabilityError and never touch the wire.
func (a *Adapter) Call(ctx context.Context, method string, params, out any) error {
	if _, ok := unsupportedMethods[method]; ok {
		return &protocol.CapabilityError{Method: method}
	}

	switch method {
	case protocol.MethodPing:
		return a.localPing(params, out)
	case protocol.MethodSessionCreate:
		return a.createSession(ctx, params, out)
	case protocol.MethodSessionResume:
		return a.resumeSession(ctx, params, out)
	case protocol.MethodSessionSend:
		return a.sendPrompt(ctx, params, out)
	case protocol.MethodSessionAbort:
		return a.abortSession(params, out)
	case protocol.MethodSessionDestroy:
		return a.destroySession(params, out)
	default:
		return &protocol.CapabilityError{Method: method}
	}
}

// Notify has no uniform notifications to translate outbound.
func (a *Adapter) Notify(method string, params any) error {
	return &protocol.CapabilityError{Method: method}
}

func (a *Adapter) localPing(params, out any) error {
	var p protocol.PingParams
	if err := decodeAs(params, &p); err != nil {
		return err
	}

	a.mu.Lock()
	init := a.init
	a.mu.Unlock()
	if init == nil {
		return fmt.Errorf("ping before initialize handshake")
	}

	return assign(out, protocol.PingResult{
		ProtocolVersion: init.ProtocolVersion,
		Message:         p.Message,
		Timestamp:       time.Now().UnixMilli(),
	})
}

func (a *Adapter) createSession(ctx context.Context, params, out any) error {
	var p protocol.CreateSessionParams
	if err := decodeAs(params, &p); err != nil {
		return err
	}

	req := NewSessionRequest{
		CWD:        a.cwd,
		McpServers: convertMCPServers(p.MCPServers),
	}
	var resp NewSessionResponse
	if err := a.conn.Call(ctx, "session/new", req, &resp); err != nil {
		return err
	}
	return assign(out, protocol.CreateSessionResult{SessionID: resp.SessionID})
}

func (a *Adapter) resumeSession(ctx context.Context, params, out any) error {
	var p protocol.ResumeSessionParams
	if err := decodeAs(params, &p); err != nil {
		return err
	}

	req := LoadSessionRequest{
		SessionID:  p.SessionID,
		CWD:        a.cwd,
		McpServers: convertMCPServers(p.MCPServers),
	}
	if err := a.conn.Call(ctx, "session/load", req, &LoadSessionResponse{}); err != nil {
		return err
	}
	return assign(out, protocol.CreateSessionResult{SessionID: p.SessionID})
}

func (a *Adapter) sendPrompt(ctx context.Context, params, out any) error {
	var p protocol.SendParams
	if err := decodeAs(params, &p); err != nil {
		return err
	}

	blocks := []ContentBlock{NewTextContent(p.Prompt)}
	for _, att := range p.Attachments {
		uri := att.URI
		if uri == "" {
			uri = "file://" + att.Path
		}
		blocks = append(blocks, ContentBlock{Type: "resource_link", URI: uri})
	}

	req := PromptRequest{SessionID: p.SessionID, Prompt: blocks}
	var resp PromptResponse
	if err := a.conn.Call(ctx, "session/prompt", req, &resp); err != nil {
		a.acc.reset(p.SessionID)
		return err
	}

	// The turn is over: flush accumulated deltas as a complete message,
	// then report idle. Emitted before Call returns so subscribers see the
	// turn end in order.
	a.emitTurnEnd(p.SessionID, resp.StopReason)

	return assign(out, protocol.SendResult{MessageID: uuid.NewString()})
}

func (a *Adapter) abortSession(params, out any) error {
	var p protocol.SessionRefParams
	if err := decodeAs(params, &p); err != nil {
		return err
	}
	if err := a.conn.Notify("session/cancel", CancelNotification{SessionID: p.SessionID}); err != nil {
		return err
	}
	return assign(out, struct{}{})
}

// destroySession is a local no-op: ACP agents drop session state when the
// process exits and expose no teardown call. Idempotent.
func (a *Adapter) destroySession(params, out any) error {
	var p protocol.SessionRefParams
	if err := decodeAs(params, &p); err != nil {
		return err
	}
	a.acc.reset(p.SessionID)
	return assign(out, struct{}{})
}

func (a *Adapter) emitTurnEnd(sessionID, stopReason string) {
	text, sawComplete := a.acc.take(sessionID)
	if !sawComplete && text != "" {
		a.emitEvent(sessionID, protocol.SessionEvent{
			Type:    protocol.EventAssistantMessage,
			ID:      uuid.NewString(),
			Content: text,
		})
	}
	a.emitEvent(sessionID, protocol.SessionEvent{
		Type:       protocol.EventSessionIdle,
		StopReason: stopReason,
	})
}

func (a *Adapter) emitEvent(sessionID string, ev protocol.SessionEvent) {
	data, err := json.Marshal(protocol.SessionEventParams{SessionID: sessionID, Event: ev})
	if err != nil {
		a.logger.Error("marshal session event failed", "type", ev.Type, "error", err)
		return
	}

	a.mu.Lock()
	handlers := append([]rpc.NotificationHandler(nil), a.subs[protocol.MethodSessionEvent]...)
	a.mu.Unlock()

	for _, h := range handlers {
		a.invokeSubscriber(h, data)
	}
}

func (a *Adapter) invokeSubscriber(h rpc.NotificationHandler, params json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("session event subscriber panicked", "panic", r)
		}
	}()
	h(protocol.MethodSessionEvent, params)
}

func (a *Adapter) handleSessionUpdate(method string, params json.RawMessage) {
	var note SessionNotification
	if err := json.Unmarshal(params, &note); err != nil {
		a.logger.Warn("unparseable session/update", "error", err)
		return
	}

	ev, ok := translateUpdate(note.Update)
	if !ok {
		a.logger.Debug("ignoring session/update", "type", note.Update.Type)
		return
	}

	switch ev.Type {
	case protocol.EventAssistantMessageDelta:
		a.acc.append(note.SessionID, ev.Content)
	case protocol.EventAssistantMessage:
		a.acc.markComplete(note.SessionID)
	}

	a.emitEvent(note.SessionID, ev)
}

// handlePermissionRequest reshapes an ACP permission request into the
// uniform form and maps the verdict back onto the offered options. The
// agent always gets an answer; a missing or faulting handler cancels.
func (a *Adapter) handlePermissionRequest(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
	var req RequestPermissionRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &wire.Error{Code: wire.ErrCodeInvalidParams, Message: fmt.Sprintf("invalid permission request: %v", err)}
	}

	a.mu.Lock()
	handler := a.handlers[protocol.MethodPermissionRequest]
	a.mu.Unlock()

	if handler == nil {
		return cancelledOutcome(), nil
	}

	uniform, err := json.Marshal(protocol.PermissionRequestParams{
		SessionID: req.SessionID,
		Request: protocol.PermissionRequest{
			Kind:       req.ToolCall.Kind,
			ToolCallID: req.ToolCall.ToolCallID,
			ToolName:   req.ToolCall.ToolName,
			Input:      req.ToolCall.Input,
		},
	})
	if err != nil {
		return cancelledOutcome(), nil
	}

	result, herr := handler(ctx, uniform)
	if herr != nil {
		return cancelledOutcome(), nil
	}

	var verdict protocol.PermissionRequestResult
	if err := decodeAs(result, &verdict); err != nil {
		return cancelledOutcome(), nil
	}

	var wantPrefix string
	switch verdict.Result.Kind {
	case protocol.PermissionApproved:
		wantPrefix = "allow"
	default:
		wantPrefix = "reject"
	}
	for _, opt := range req.Options {
		if hasKindPrefix(opt.Kind, wantPrefix) {
			return RequestPermissionResponse{
				Outcome: PermissionOutcome{Type: "selected", OptionID: opt.ID},
			}, nil
		}
	}
	return cancelledOutcome(), nil
}

func cancelledOutcome() RequestPermissionResponse {
	return RequestPermissionResponse{Outcome: PermissionOutcome{Type: "cancelled"}}
}

func hasKindPrefix(kind, prefix string) bool {
	return len(kind) >= len(prefix) && kind[:len(prefix)] == prefix
}

func convertMCPServers(servers map[string]protocol.MCPServerConfig) []McpServerConfig {
	out := make([]McpServerConfig, 0, len(servers))
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg := servers[name]
		env := make([]EnvVar, 0, len(cfg.Env))
		envNames := make([]string, 0, len(cfg.Env))
		for k := range cfg.Env {
			envNames = append(envNames, k)
		}
		sort.Strings(envNames)
		for _, k := range envNames {
			env = append(env, EnvVar{Name: k, Value: cfg.Env[k]})
		}
		out = append(out, McpServerConfig{
			Name:    name,
			Type:    cfg.Type,
			Command: cfg.Command,
			URL:     cfg.URL,
			Args:    cfg.Args,
			Env:     env,
		})
	}
	return out
}

// decodeAs round-trips a value through JSON into a typed destination.
func decodeAs(v, dst any) error {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// assign round-trips a typed value into the caller's out parameter.
func assign(out, v any) error {
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
