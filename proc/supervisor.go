// Package proc spawns and supervises the agent CLI server process, or
// connects to an already-running one, and hands back a duplex byte stream
// for the protocol layer.
package proc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bazelment/agentlink/internal/procattr"
)

// defaultStartTimeout bounds process spawn, port announcement and dialing.
const defaultStartTimeout = 10 * time.Second

// portPattern matches the CLI server's startup announcement on stdout when
// it is spawned in socket mode.
var portPattern = regexp.MustCompile(`listening on port (\d+)`)

// Config describes how to reach the CLI server. Exactly one target style
// applies: spawn over stdio (CLIPath with UseStdio), spawn with a socket
// (CLIPath without UseStdio), or dial an external server (CLIURL).
type Config struct {
	// CLIPath is the server binary to spawn. Ignored when CLIURL is set.
	CLIPath string
	// CLIArgs are extra arguments passed to the spawned binary.
	CLIArgs []string
	// CLIURL points at an already-running server. Mutually exclusive with
	// CLIPath.
	CLIURL string
	// UseStdio selects the stdio transport for a spawned server.
	UseStdio bool
	// Port is passed to a socket-mode server via --port. Zero lets the
	// server pick; the announced port is authoritative either way.
	Port int
	// Cwd is the working directory for the spawned process.
	Cwd string
	// Env is merged over the parent environment for the spawned process.
	Env map[string]string
	// StartTimeout bounds Start. Zero means the default.
	StartTimeout time.Duration
	// StderrHandler receives raw stderr chunks from the spawned process.
	// Nil routes stderr lines to the logger.
	StderrHandler func([]byte)
	// Logger for supervisor diagnostics. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// Supervisor owns the CLI server process lifecycle. For external targets
// it owns only the connection.
type Supervisor struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	conn    net.Conn
	exited  chan error
	started bool
}

// New validates the target configuration and builds a supervisor.
func New(config Config) (*Supervisor, error) {
	if config.CLIURL == "" && config.CLIPath == "" {
		return nil, ErrNoTarget
	}
	if config.CLIURL != "" && (config.CLIPath != "" || config.UseStdio || config.Port != 0) {
		return nil, ErrConflictingTarget
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{config: config, logger: logger}, nil
}

// Start brings up the transport and returns the duplex stream the protocol
// layer will speak over. It spawns the server process unless an external
// URL is configured.
func (s *Supervisor) Start(ctx context.Context) (io.ReadWriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrAlreadyStarted
	}

	timeout := s.config.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.config.CLIURL != "" {
		stream, err := s.dialExternal(ctx)
		if err != nil {
			return nil, err
		}
		s.started = true
		return stream, nil
	}

	if s.config.UseStdio {
		stream, err := s.spawnStdio(ctx)
		if err != nil {
			return nil, err
		}
		s.started = true
		return stream, nil
	}

	stream, err := s.spawnSocket(ctx)
	if err != nil {
		return nil, err
	}
	s.started = true
	return stream, nil
}

func (s *Supervisor) dialExternal(ctx context.Context) (io.ReadWriteCloser, error) {
	addr, err := parseTarget(s.config.CLIURL)
	if err != nil {
		return nil, &ProcessError{Message: "invalid CLI URL", Cause: err}
	}

	s.logger.Debug("dialing external server", "addr", addr)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ProcessError{Message: fmt.Sprintf("failed to connect to %s", addr), Cause: err}
	}
	s.conn = conn
	return conn, nil
}

func (s *Supervisor) spawnStdio(ctx context.Context) (io.ReadWriteCloser, error) {
	cmd := s.buildCommand(append([]string{"--stdio"}, s.config.CLIArgs...))

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to get stdin pipe", Cause: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to get stdout pipe", Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to get stderr pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ProcessError{Message: "failed to start server process", Cause: err}
	}

	s.cmd = cmd
	s.stdin = stdin
	s.watchExit(cmd)
	s.drainStderr(stderr)

	return &stdioStream{in: stdin, out: stdout}, nil
}

func (s *Supervisor) spawnSocket(ctx context.Context) (io.ReadWriteCloser, error) {
	args := append([]string{"--port", strconv.Itoa(s.config.Port)}, s.config.CLIArgs...)
	cmd := s.buildCommand(args)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to get stdout pipe", Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to get stderr pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ProcessError{Message: "failed to start server process", Cause: err}
	}

	s.cmd = cmd
	s.watchExit(cmd)
	s.drainStderr(stderr)

	port, err := scanPortAnnouncement(ctx, stdout)
	if err != nil {
		s.killLocked()
		return nil, err
	}
	// Keep draining stdout so the child never blocks on a full pipe.
	go func() {
		_, _ = io.Copy(io.Discard, stdout)
	}()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	s.logger.Debug("server announced port, dialing", "addr", addr)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.killLocked()
		return nil, &ProcessError{Message: fmt.Sprintf("failed to connect to %s", addr), Cause: err}
	}
	s.conn = conn
	return conn, nil
}

func (s *Supervisor) buildCommand(args []string) *exec.Cmd {
	cmd := exec.Command(s.config.CLIPath, args...)
	cmd.Dir = s.config.Cwd

	procattr.Set(cmd)

	if len(s.config.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range s.config.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	return cmd
}

func (s *Supervisor) watchExit(cmd *exec.Cmd) {
	s.exited = make(chan error, 1)
	exited := s.exited
	go func() {
		exited <- cmd.Wait()
	}()
}

func (s *Supervisor) drainStderr(stderr io.Reader) {
	handler := s.config.StderrHandler
	if handler != nil {
		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := stderr.Read(buf)
				if n > 0 {
					handler(buf[:n])
				}
				if err != nil {
					return
				}
			}
		}()
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.logger.Debug("server stderr", "line", scanner.Text())
		}
	}()
}

// scanPortAnnouncement reads stdout lines until the server announces its
// listening port or ctx expires.
func scanPortAnnouncement(ctx context.Context, stdout io.Reader) (int, error) {
	type scanResult struct {
		err  error
		port int
	}
	found := make(chan scanResult, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			m := portPattern.FindStringSubmatch(scanner.Text())
			if m == nil {
				continue
			}
			port, err := strconv.Atoi(m[1])
			if err != nil {
				found <- scanResult{err: &ProcessError{Message: "invalid port announcement", Cause: err}}
				return
			}
			found <- scanResult{port: port}
			return
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		found <- scanResult{err: &ProcessError{Message: "server exited before announcing a port", Cause: err}}
	}()

	select {
	case res := <-found:
		return res.port, res.err
	case <-ctx.Done():
		return 0, &ProcessError{Message: "timed out waiting for port announcement", Cause: ctx.Err()}
	}
}

// Stop tears the transport down gracefully, escalating to signals only if
// the process does not exit on its own.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	if s.cmd == nil {
		return nil
	}

	// Closing stdin asks a stdio server to shut down.
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}

	select {
	case <-s.exited:
		s.cmd = nil
		return nil
	case <-time.After(500 * time.Millisecond):
	}

	if s.cmd.Process != nil {
		_ = procattr.SignalGroup(s.cmd.Process, syscall.SIGINT)
	}
	select {
	case <-s.exited:
		s.cmd = nil
		return nil
	case <-time.After(500 * time.Millisecond):
	}

	if s.cmd.Process != nil {
		_ = procattr.KillGroup(s.cmd.Process)
	}
	select {
	case <-s.exited:
	case <-time.After(200 * time.Millisecond):
	}
	s.cmd = nil
	return nil
}

// Kill tears the transport down immediately with no grace period.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.killLocked()
}

func (s *Supervisor) killLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = procattr.KillGroup(s.cmd.Process)
	}
	if s.exited != nil {
		select {
		case <-s.exited:
		case <-time.After(200 * time.Millisecond):
		}
	}
	s.cmd = nil
}

// stdioStream joins the child's stdin and stdout into one duplex stream.
type stdioStream struct {
	in  io.WriteCloser
	out io.ReadCloser
}

func (s *stdioStream) Read(p []byte) (int, error)  { return s.out.Read(p) }
func (s *stdioStream) Write(p []byte) (int, error) { return s.in.Write(p) }

func (s *stdioStream) Close() error {
	inErr := s.in.Close()
	outErr := s.out.Close()
	if inErr != nil {
		return inErr
	}
	return outErr
}
