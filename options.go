package agentlink

import (
	"log/slog"
	"time"
)

// Wire protocols the client can speak.
const (
	// ProtocolNative is the server's own protocol: Content-Length framed
	// JSON-RPC with the full method surface.
	ProtocolNative = "native"
	// ProtocolACP is newline-delimited JSON-RPC against an ACP agent, with
	// a reduced method surface.
	ProtocolACP = "acp"
)

// Config holds client configuration. Build one through NewClient options
// or LoadOptions.
type Config struct {
	// CLIPath is the server binary to spawn.
	CLIPath string
	// CLIArgs are extra arguments for the spawned binary.
	CLIArgs []string
	// CLIURL points at an already-running server instead of spawning one.
	CLIURL string
	// UseStdio selects the stdio transport for a spawned server.
	UseStdio bool
	// Port requests a specific listening port in socket mode.
	Port int
	// Protocol selects the wire protocol, ProtocolNative or ProtocolACP.
	Protocol string
	// Cwd is the working directory for the spawned process and for ACP
	// sessions.
	Cwd string
	// Env is merged over the parent environment for the spawned process.
	Env map[string]string
	// LogLevel is used when no Logger is supplied: "debug", "info",
	// "warn" or "error".
	LogLevel string
	// Logger overrides the built-in logger.
	Logger *slog.Logger
	// StartTimeout bounds process startup and dialing.
	StartTimeout time.Duration
	// StderrHandler receives raw stderr chunks from the spawned process.
	StderrHandler func([]byte)
}

func defaultConfig() Config {
	return Config{
		CLIPath:      "agent",
		UseStdio:     true,
		Protocol:     ProtocolNative,
		LogLevel:     "info",
		StartTimeout: 10 * time.Second,
	}
}

// Option configures a Client.
type Option func(*Config)

// WithCLIPath sets the server binary to spawn.
func WithCLIPath(path string) Option {
	return func(c *Config) { c.CLIPath = path }
}

// WithCLIArgs sets extra arguments for the spawned binary.
func WithCLIArgs(args ...string) Option {
	return func(c *Config) { c.CLIArgs = args }
}

// WithCLIURL connects to an already-running server instead of spawning
// one. Mutually exclusive with WithCLIPath, WithSocket and stdio.
func WithCLIURL(url string) Option {
	return func(c *Config) {
		c.CLIURL = url
		c.CLIPath = ""
		c.UseStdio = false
	}
}

// WithStdio selects the stdio transport for a spawned server.
func WithStdio() Option {
	return func(c *Config) { c.UseStdio = true }
}

// WithSocket spawns the server in socket mode. A zero port lets the server
// pick one.
func WithSocket(port int) Option {
	return func(c *Config) {
		c.UseStdio = false
		c.Port = port
	}
}

// WithProtocol selects the wire protocol.
func WithProtocol(protocol string) Option {
	return func(c *Config) { c.Protocol = protocol }
}

// WithCwd sets the working directory for the spawned process.
func WithCwd(cwd string) Option {
	return func(c *Config) { c.Cwd = cwd }
}

// WithEnv sets extra environment variables for the spawned process.
func WithEnv(env map[string]string) Option {
	return func(c *Config) { c.Env = env }
}

// WithLogger sets the logger for the client and everything under it.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithLogLevel sets the built-in logger's level. Ignored when WithLogger
// is used.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// WithStartTimeout bounds process startup and dialing.
func WithStartTimeout(d time.Duration) Option {
	return func(c *Config) { c.StartTimeout = d }
}

// WithStderrHandler sets a handler for the spawned process's stderr.
func WithStderrHandler(h func([]byte)) Option {
	return func(c *Config) { c.StderrHandler = h }
}
