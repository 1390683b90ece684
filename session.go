package agentlink

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/bazelment/agentlink/protocol"
)

// EventHandler observes session events.
type EventHandler func(ev protocol.SessionEvent)

// PermissionHandler decides whether the server may perform the requested
// action.
type PermissionHandler func(ctx context.Context, req protocol.PermissionRequest) (protocol.PermissionResult, error)

// UserInputHandler answers a question the server directs at the user.
type UserInputHandler func(ctx context.Context, req protocol.UserInputParams) (protocol.UserInputResult, error)

// HookHandler runs a named lifecycle hook. The returned map is sent back
// as the hook output.
type HookHandler func(ctx context.Context, input json.RawMessage) (map[string]interface{}, error)

// Well-known hook names.
const (
	HookPreToolUse   = "preToolUse"
	HookPostToolUse  = "postToolUse"
	HookSessionStart = "sessionStart"
	HookSessionEnd   = "sessionEnd"
)

// SessionConfig holds per-session configuration.
type SessionConfig struct {
	Model          string
	Tools          []Tool
	SystemMessage  *protocol.SystemMessageConfig
	MCPServers     map[string]protocol.MCPServerConfig
	AvailableTools []string
	ExcludedTools  []string
	Streaming      bool
	Permission     PermissionHandler
	UserInput      UserInputHandler
	Hooks          map[string]HookHandler
}

// SessionOption configures a session at creation or resume time.
type SessionOption func(*SessionConfig)

// WithModel selects the model for the session.
func WithModel(model string) SessionOption {
	return func(c *SessionConfig) { c.Model = model }
}

// WithTools registers client-side tools for the session.
func WithTools(tools ...Tool) SessionOption {
	return func(c *SessionConfig) { c.Tools = append(c.Tools, tools...) }
}

// WithSystemMessage customizes the session's system message. Mode is
// "append" or "replace".
func WithSystemMessage(mode, content string) SessionOption {
	return func(c *SessionConfig) {
		c.SystemMessage = &protocol.SystemMessageConfig{Mode: mode, Content: content}
	}
}

// WithMCPServer attaches an MCP server configuration to the session.
func WithMCPServer(name string, cfg protocol.MCPServerConfig) SessionOption {
	return func(c *SessionConfig) {
		if c.MCPServers == nil {
			c.MCPServers = make(map[string]protocol.MCPServerConfig)
		}
		c.MCPServers[name] = cfg
	}
}

// WithAvailableTools restricts the server-side tools the session may use.
func WithAvailableTools(names ...string) SessionOption {
	return func(c *SessionConfig) { c.AvailableTools = names }
}

// WithExcludedTools removes server-side tools from the session.
func WithExcludedTools(names ...string) SessionOption {
	return func(c *SessionConfig) { c.ExcludedTools = names }
}

// WithStreaming enables streaming delta events for the session.
func WithStreaming(on bool) SessionOption {
	return func(c *SessionConfig) { c.Streaming = on }
}

// WithPermissionHandler installs the session's permission handler.
func WithPermissionHandler(h PermissionHandler) SessionOption {
	return func(c *SessionConfig) { c.Permission = h }
}

// WithUserInputHandler installs the session's user input handler.
func WithUserInputHandler(h UserInputHandler) SessionOption {
	return func(c *SessionConfig) { c.UserInput = h }
}

// WithHook installs a named lifecycle hook handler.
func WithHook(name string, h HookHandler) SessionOption {
	return func(c *SessionConfig) {
		if c.Hooks == nil {
			c.Hooks = make(map[string]HookHandler)
		}
		c.Hooks[name] = h
	}
}

// subscription is one registered event observer. An empty eventType
// matches every event.
type subscription struct {
	fn        EventHandler
	eventType string
	id        int
}

// Session is a live conversation with the server. All methods are safe
// for concurrent use.
type Session struct {
	id     string
	client *Client

	mu         sync.Mutex
	tools      map[string]Tool
	permission PermissionHandler
	userInput  UserInputHandler
	hooks      map[string]HookHandler
	subs       []subscription
	nextSubID  int
	destroyed  bool
}

func newSession(id string, client *Client, cfg SessionConfig) *Session {
	tools := make(map[string]Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools[t.Name()] = t
	}
	hooks := make(map[string]HookHandler, len(cfg.Hooks))
	for name, h := range cfg.Hooks {
		hooks[name] = h
	}
	return &Session{
		id:         id,
		client:     client,
		tools:      tools,
		permission: cfg.Permission,
		userInput:  cfg.UserInput,
		hooks:      hooks,
	}
}

// ID returns the server-assigned session id.
func (s *Session) ID() string {
	return s.id
}

// On subscribes to events of one type. The returned function removes the
// subscription.
func (s *Session) On(eventType string, fn EventHandler) func() {
	return s.subscribe(eventType, fn)
}

// OnAll subscribes to every event of the session.
func (s *Session) OnAll(fn EventHandler) func() {
	return s.subscribe("", fn)
}

func (s *Session) subscribe(eventType string, fn EventHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscription{fn: fn, eventType: eventType, id: id})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Send submits a prompt and blocks until the server acknowledges it.
// Events for the turn arrive through subscriptions.
func (s *Session) Send(ctx context.Context, prompt string, attachments ...protocol.Attachment) (protocol.SendResult, error) {
	var result protocol.SendResult
	if err := s.checkAlive(); err != nil {
		return result, err
	}
	params := protocol.SendParams{
		SessionID:   s.id,
		Prompt:      prompt,
		Attachments: attachments,
	}
	err := s.client.call(ctx, protocol.MethodSessionSend, params, &result)
	return result, err
}

// GetHistory fetches the session's stored event history.
func (s *Session) GetHistory(ctx context.Context) ([]protocol.SessionEvent, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}
	var result protocol.HistoryResult
	if err := s.client.call(ctx, protocol.MethodSessionHistory, protocol.SessionRefParams{SessionID: s.id}, &result); err != nil {
		return nil, err
	}
	return result.Events, nil
}

// Abort interrupts the in-flight turn. The session stays usable.
func (s *Session) Abort(ctx context.Context) error {
	if err := s.checkAlive(); err != nil {
		return err
	}
	return s.client.call(ctx, protocol.MethodSessionAbort, protocol.SessionRefParams{SessionID: s.id}, nil)
}

// Destroy ends the session on the server. The session is removed from the
// client's routing table only once the server confirms.
func (s *Session) Destroy(ctx context.Context) error {
	if err := s.checkAlive(); err != nil {
		return err
	}
	if err := s.client.call(ctx, protocol.MethodSessionDestroy, protocol.SessionRefParams{SessionID: s.id}, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
	s.client.dispatcher.remove(s.id)
	return nil
}

func (s *Session) checkAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSessionDestroyed
	}
	return nil
}

// hookNames returns the sorted hook names to advertise at creation.
func hookNames(hooks map[string]HookHandler) []string {
	if len(hooks) == 0 {
		return nil
	}
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dispatchEvent delivers an event to type-specific subscribers first, then
// wildcard subscribers, each group in registration order. A panicking
// subscriber never breaks its siblings.
func (s *Session) dispatchEvent(ev protocol.SessionEvent) {
	s.mu.Lock()
	var typed, wild []EventHandler
	for _, sub := range s.subs {
		switch sub.eventType {
		case ev.Type:
			typed = append(typed, sub.fn)
		case "":
			wild = append(wild, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range typed {
		s.invokeSubscriber(fn, ev)
	}
	for _, fn := range wild {
		s.invokeSubscriber(fn, ev)
	}
}

func (s *Session) invokeSubscriber(fn EventHandler, ev protocol.SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("event subscriber panicked", "session", s.id, "type", ev.Type, "panic", r)
		}
	}()
	fn(ev)
}

// runTool executes the named tool handler. Handler faults and panics
// produce a failure result whose model-visible text stays generic; the
// real fault lands in the internal error field only.
func (s *Session) runTool(ctx context.Context, p protocol.ToolCallParams) protocol.ToolResult {
	s.mu.Lock()
	tool, ok := s.tools[p.ToolName]
	s.mu.Unlock()

	if !ok {
		return protocol.UnsupportedToolResult(p.ToolName)
	}

	text, err := s.invokeTool(ctx, tool, p.Arguments)
	if err != nil {
		return protocol.FailedToolResult(err.Error())
	}
	return protocol.SuccessToolResult(text)
}

func (s *Session) invokeTool(ctx context.Context, tool Tool, args json.RawMessage) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("tool handler panicked", "session", s.id, "tool", tool.name, "panic", r)
			text = ""
			err = &panicError{value: r}
		}
	}()
	return tool.invoke(ctx, args)
}

// decidePermission runs the permission handler. A missing or faulting
// handler denies.
func (s *Session) decidePermission(ctx context.Context, req protocol.PermissionRequest) protocol.PermissionResult {
	s.mu.Lock()
	handler := s.permission
	s.mu.Unlock()

	if handler == nil {
		return protocol.DeniedPermission()
	}

	result, err := s.invokePermission(ctx, handler, req)
	if err != nil {
		s.client.logger.Warn("permission handler failed, denying", "session", s.id, "error", err)
		return protocol.DeniedPermission()
	}
	return result
}

func (s *Session) invokePermission(ctx context.Context, handler PermissionHandler, req protocol.PermissionRequest) (result protocol.PermissionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = protocol.PermissionResult{}
			err = &panicError{value: r}
		}
	}()
	return handler(ctx, req)
}

// answerUserInput runs the user input handler. No handler is an error the
// server sees: there is no one to ask.
func (s *Session) answerUserInput(ctx context.Context, req protocol.UserInputParams) (protocol.UserInputResult, error) {
	s.mu.Lock()
	handler := s.userInput
	s.mu.Unlock()

	if handler == nil {
		return protocol.UserInputResult{}, errNoUserInputHandler
	}
	return handler(ctx, req)
}

// runHook executes the named hook. Missing handlers and faults both
// collapse to empty output so the server is never blocked on a hook.
func (s *Session) runHook(ctx context.Context, p protocol.HookInvokeParams) protocol.HookInvokeResult {
	s.mu.Lock()
	handler := s.hooks[p.Hook]
	s.mu.Unlock()

	if handler == nil {
		return protocol.HookInvokeResult{Output: map[string]interface{}{}}
	}

	output, err := s.invokeHook(ctx, handler, p.Input)
	if err != nil || output == nil {
		if err != nil {
			s.client.logger.Warn("hook handler failed", "session", s.id, "hook", p.Hook, "error", err)
		}
		return protocol.HookInvokeResult{Output: map[string]interface{}{}}
	}
	return protocol.HookInvokeResult{Output: output}
}

func (s *Session) invokeHook(ctx context.Context, handler HookHandler, input json.RawMessage) (output map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = &panicError{value: r}
		}
	}()
	return handler(ctx, input)
}
