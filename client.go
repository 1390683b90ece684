// Package agentlink is a client SDK for long-lived agent CLI servers. It
// spawns or dials the server, speaks JSON-RPC over the configured wire
// protocol, and routes server-initiated traffic (events, tool calls,
// permission prompts, user input, hooks) to the owning session.
package agentlink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bazelment/agentlink/acp"
	"github.com/bazelment/agentlink/proc"
	"github.com/bazelment/agentlink/protocol"
	"github.com/bazelment/agentlink/rpc"
	"github.com/bazelment/agentlink/wire"
)

// handshakeTimeout bounds the protocol version handshake after the
// transport is up.
const handshakeTimeout = 30 * time.Second

// Client owns one connection to an agent CLI server and the sessions
// running over it.
type Client struct {
	id         string
	config     Config
	logger     *slog.Logger
	dispatcher *dispatcher

	mu         sync.Mutex
	supervisor *proc.Supervisor
	adapter    protocolAdapter
	started    bool
}

// NewClient validates the configuration and builds a client. Nothing is
// spawned until Start.
func NewClient(opts ...Option) (*Client, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.CLIURL != "" && (config.CLIPath != "" || config.UseStdio || config.Port != 0) {
		return nil, ErrConflictingTarget
	}
	switch config.Protocol {
	case ProtocolNative, ProtocolACP:
	default:
		return nil, fmt.Errorf("unknown protocol %q", config.Protocol)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(config.LogLevel),
		}))
	}
	id := uuid.NewString()
	logger = logger.With("client", id[:8])

	return &Client{
		id:         id,
		config:     config,
		logger:     logger,
		dispatcher: newDispatcher(logger),
	}, nil
}

// ID returns the client's instance id.
func (c *Client) ID() string {
	return c.id
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Start brings the transport up and verifies the protocol version. On any
// failure the process is torn down and the client stays unstarted.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	supervisor, err := proc.New(proc.Config{
		CLIPath:       c.config.CLIPath,
		CLIArgs:       c.config.CLIArgs,
		CLIURL:        c.config.CLIURL,
		UseStdio:      c.config.UseStdio,
		Port:          c.config.Port,
		Cwd:           c.config.Cwd,
		Env:           c.config.Env,
		StartTimeout:  c.config.StartTimeout,
		StderrHandler: c.config.StderrHandler,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}

	stream, err := supervisor.Start(ctx)
	if err != nil {
		return err
	}

	var framer wire.Framer
	if c.config.Protocol == ProtocolACP {
		framer = wire.NewLineFramer(stream)
	} else {
		framer = wire.NewContentLengthFramer(stream)
	}

	conn := rpc.NewConn(framer, c.logger)

	var adapter protocolAdapter
	if c.config.Protocol == ProtocolACP {
		adapter = acp.NewAdapter(conn, c.config.Cwd, c.logger)
	} else {
		adapter = newNativeAdapter(conn)
	}

	c.dispatcher.register(adapter)
	conn.Listen()

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := adapter.VerifyProtocolVersion(hctx); err != nil {
		_ = adapter.Close()
		supervisor.Kill()
		return err
	}

	c.supervisor = supervisor
	c.adapter = adapter
	c.started = true
	c.logger.Debug("client started", "protocol", c.config.Protocol)
	return nil
}

// Stop shuts down gracefully: every tracked session is destroyed, then the
// connection is closed and the process stopped. All errors encountered on
// the way are returned.
func (c *Client) Stop(ctx context.Context) []error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	adapter := c.adapter
	supervisor := c.supervisor
	c.adapter = nil
	c.supervisor = nil
	c.mu.Unlock()

	var errs []error
	for _, s := range c.dispatcher.drain() {
		if err := adapter.Call(ctx, protocol.MethodSessionDestroy, protocol.SessionRefParams{SessionID: s.id}, nil); err != nil {
			errs = append(errs, fmt.Errorf("destroy session %s: %w", s.id, err))
		}
		s.mu.Lock()
		s.destroyed = true
		s.mu.Unlock()
	}

	if err := adapter.Close(); err != nil {
		errs = append(errs, err)
	}
	if supervisor != nil {
		if err := supervisor.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ForceStop tears everything down immediately. Errors are swallowed; the
// sessions are simply forgotten.
func (c *Client) ForceStop() {
	c.mu.Lock()
	adapter := c.adapter
	supervisor := c.supervisor
	c.started = false
	c.adapter = nil
	c.supervisor = nil
	c.mu.Unlock()

	c.dispatcher.drain()
	if adapter != nil {
		_ = adapter.Close()
	}
	if supervisor != nil {
		supervisor.Kill()
	}
}

// call routes one uniform method through the active adapter.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	adapter := c.adapter
	started := c.started
	c.mu.Unlock()

	if !started {
		return ErrNotStarted
	}
	return adapter.Call(ctx, method, params, out)
}

// CreateSession starts a new conversation and registers it for inbound
// routing.
func (c *Client) CreateSession(ctx context.Context, opts ...SessionOption) (*Session, error) {
	var cfg SessionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	params := protocol.CreateSessionParams{
		Model:             cfg.Model,
		SystemMessage:     cfg.SystemMessage,
		MCPServers:        cfg.MCPServers,
		AvailableTools:    cfg.AvailableTools,
		ExcludedTools:     cfg.ExcludedTools,
		Streaming:         cfg.Streaming,
		RequestPermission: cfg.Permission != nil,
		RequestUserInput:  cfg.UserInput != nil,
		Hooks:             hookNames(cfg.Hooks),
	}
	for _, t := range cfg.Tools {
		params.Tools = append(params.Tools, t.Definition())
	}

	var result protocol.CreateSessionResult
	if err := c.call(ctx, protocol.MethodSessionCreate, params, &result); err != nil {
		return nil, err
	}

	s := newSession(result.SessionID, c, cfg)
	c.dispatcher.add(s)
	return s, nil
}

// ResumeSession reattaches to a stored session and registers it for
// inbound routing.
func (c *Client) ResumeSession(ctx context.Context, sessionID string, opts ...SessionOption) (*Session, error) {
	var cfg SessionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	params := protocol.ResumeSessionParams{
		SessionID:         sessionID,
		MCPServers:        cfg.MCPServers,
		Streaming:         cfg.Streaming,
		RequestPermission: cfg.Permission != nil,
		RequestUserInput:  cfg.UserInput != nil,
		Hooks:             hookNames(cfg.Hooks),
	}
	for _, t := range cfg.Tools {
		params.Tools = append(params.Tools, t.Definition())
	}

	var result protocol.CreateSessionResult
	if err := c.call(ctx, protocol.MethodSessionResume, params, &result); err != nil {
		return nil, err
	}

	s := newSession(result.SessionID, c, cfg)
	c.dispatcher.add(s)
	return s, nil
}

// ListSessions returns the sessions stored on the server.
func (c *Client) ListSessions(ctx context.Context) ([]protocol.SessionInfo, error) {
	var result protocol.ListSessionsResult
	if err := c.call(ctx, protocol.MethodSessionList, nil, &result); err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

// DeleteSession removes a stored session on the server.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.call(ctx, protocol.MethodSessionDelete, protocol.SessionRefParams{SessionID: sessionID}, nil)
}

// ListModels returns the models the server offers.
func (c *Client) ListModels(ctx context.Context) ([]protocol.ModelInfo, error) {
	var result protocol.ModelsListResult
	if err := c.call(ctx, protocol.MethodModelsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// Ping checks connectivity and echoes the message back.
func (c *Client) Ping(ctx context.Context, message string) (protocol.PingResult, error) {
	var result protocol.PingResult
	err := c.call(ctx, protocol.MethodPing, protocol.PingParams{Message: message}, &result)
	return result, err
}

// Status reports the server's version and authentication state.
func (c *Client) Status(ctx context.Context) (protocol.StatusResult, error) {
	var result protocol.StatusResult
	err := c.call(ctx, protocol.MethodStatusGet, nil, &result)
	return result, err
}

// GetForeground returns the id of the server's foreground session.
func (c *Client) GetForeground(ctx context.Context) (string, error) {
	var result protocol.ForegroundResult
	if err := c.call(ctx, protocol.MethodSessionForegroundGet, nil, &result); err != nil {
		return "", err
	}
	return result.SessionID, nil
}

// SetForeground makes the given session the server's foreground session.
func (c *Client) SetForeground(ctx context.Context, sessionID string) error {
	return c.call(ctx, protocol.MethodSessionForegroundSet, protocol.SessionRefParams{SessionID: sessionID}, nil)
}
