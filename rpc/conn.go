// Package rpc implements a bidirectional JSON-RPC connection over a message
// framer: outbound calls with id correlation, inbound request dispatch, and
// notification fan-out.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bazelment/agentlink/wire"
)

// RequestHandler answers an inbound request from the peer. A non-nil
// *wire.Error produces an error response; otherwise the returned value is
// marshalled as the result.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, *wire.Error)

// NotificationHandler observes an inbound notification.
type NotificationHandler func(method string, params json.RawMessage)

type pendingResult struct {
	result json.RawMessage
	err    error
}

// Conn is a bidirectional JSON-RPC connection. One goroutine owns reads
// from the framer; writes are serialized by the framer itself. All methods
// are safe for concurrent use.
type Conn struct {
	framer wire.Framer
	logger *slog.Logger

	nextID atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan pendingResult
	handlers map[string]RequestHandler
	subs     map[string][]NotificationHandler
	allSubs  []NotificationHandler
	onClose  []func(error)
	closed   bool
	closeErr error

	done chan struct{}
}

// NewConn builds a connection over the given framer. Call Listen to start
// the read loop. A nil logger falls back to slog.Default.
func NewConn(framer wire.Framer, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		framer:   framer,
		logger:   logger,
		pending:  make(map[int64]chan pendingResult),
		handlers: make(map[string]RequestHandler),
		subs:     make(map[string][]NotificationHandler),
		done:     make(chan struct{}),
	}
}

// Listen starts the read loop. It must be called exactly once, after all
// initial handlers are registered.
func (c *Conn) Listen() {
	go c.readLoop()
}

// Done is closed when the connection shuts down, whether by Close or by a
// fatal read error.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Handle registers the handler for inbound requests with the given method.
// Registering twice for one method replaces the earlier handler.
func (c *Conn) Handle(method string, handler RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = handler
}

// Subscribe registers a handler for inbound notifications with the given
// method.
func (c *Conn) Subscribe(method string, handler NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[method] = append(c.subs[method], handler)
}

// SubscribeAll registers a handler that observes every inbound
// notification regardless of method.
func (c *Conn) SubscribeAll(handler NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allSubs = append(c.allSubs, handler)
}

// OnClose registers a callback invoked once when the connection shuts
// down, with the error that caused it (nil for a clean Close).
func (c *Conn) OnClose(fn func(error)) {
	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		fn(err)
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Call sends a request and blocks until the matching response arrives, ctx
// is done, or the connection closes. On success the raw result is
// unmarshalled into out when out is non-nil. An error response is returned
// as a *wire.Error.
func (c *Conn) Call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)

	req, err := wire.NewRequest(id, method, params)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	ch := make(chan pendingResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.writeMessage(req); err != nil {
		c.retire(id)
		return fmt.Errorf("write %s request: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.result, out); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		c.retire(id)
		return ctx.Err()
	case <-c.done:
		// The close path delivers ErrConnClosed to every pending channel
		// before closing done, but take either order.
		select {
		case res := <-ch:
			if res.err != nil {
				return res.err
			}
			if out == nil {
				return nil
			}
			return json.Unmarshal(res.result, out)
		default:
			return ErrConnClosed
		}
	}
}

// Notify sends a notification. It does not wait for any acknowledgement.
func (c *Conn) Notify(method string, params any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.mu.Unlock()

	msg, err := wire.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", method, err)
	}
	if err := c.writeMessage(msg); err != nil {
		return fmt.Errorf("write %s notification: %w", method, err)
	}
	return nil
}

// Close shuts the connection down, closes the framer, and fails every
// pending call with ErrConnClosed. Safe to call more than once.
func (c *Conn) Close() error {
	return c.shutdown(nil)
}

func (c *Conn) shutdown(cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeErr = cause
	pending := c.pending
	c.pending = make(map[int64]chan pendingResult)
	callbacks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	err := c.framer.Close()

	for _, ch := range pending {
		ch <- pendingResult{err: ErrConnClosed}
	}
	close(c.done)

	for _, fn := range callbacks {
		fn(cause)
	}
	return err
}

// retire removes a pending entry when the caller gives up on it.
func (c *Conn) retire(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) writeMessage(msg *wire.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.framer.WriteMessage(body)
}

func (c *Conn) readLoop() {
	for {
		body, err := c.framer.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Error("connection read failed", "error", err)
				c.shutdown(err)
			}
			return
		}

		kind, msg, err := wire.Classify(body)
		if err != nil {
			c.logger.Error("unparseable message from peer", "error", err)
			c.shutdown(err)
			return
		}

		switch kind {
		case wire.KindResponse:
			c.dispatchResponse(msg)
		case wire.KindNotification:
			c.dispatchNotification(msg)
		case wire.KindRequest:
			go c.dispatchRequest(msg)
		}
	}
}

func (c *Conn) dispatchResponse(msg *wire.Message) {
	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("response for unknown request id", "id", *msg.ID)
		return
	}
	if msg.Error != nil {
		ch <- pendingResult{err: msg.Error}
		return
	}
	ch <- pendingResult{result: msg.Result}
}

func (c *Conn) dispatchNotification(msg *wire.Message) {
	c.mu.Lock()
	handlers := make([]NotificationHandler, 0, len(c.subs[msg.Method])+len(c.allSubs))
	handlers = append(handlers, c.subs[msg.Method]...)
	handlers = append(handlers, c.allSubs...)
	c.mu.Unlock()

	for _, h := range handlers {
		c.invokeNotification(h, msg)
	}
}

// invokeNotification shields the read loop and sibling subscribers from a
// panicking handler.
func (c *Conn) invokeNotification(h NotificationHandler, msg *wire.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("notification handler panicked", "method", msg.Method, "panic", r)
		}
	}()
	h(msg.Method, msg.Params)
}

func (c *Conn) dispatchRequest(msg *wire.Message) {
	c.mu.Lock()
	handler, ok := c.handlers[msg.Method]
	c.mu.Unlock()

	if !ok {
		c.respondError(*msg.ID, &wire.Error{
			Code:    wire.ErrCodeMethodNotFound,
			Message: fmt.Sprintf("method %q not found", msg.Method),
		})
		return
	}

	result, handlerErr := c.invokeRequest(handler, msg)
	if handlerErr != nil {
		c.respondError(*msg.ID, handlerErr)
		return
	}

	resp, err := wire.NewResponse(*msg.ID, result)
	if err != nil {
		c.respondError(*msg.ID, &wire.Error{
			Code:    wire.ErrCodeInternalError,
			Message: fmt.Sprintf("marshal result: %v", err),
		})
		return
	}
	if err := c.writeMessage(resp); err != nil {
		c.logger.Error("write response failed", "method", msg.Method, "error", err)
	}
}

func (c *Conn) invokeRequest(handler RequestHandler, msg *wire.Message) (result any, handlerErr *wire.Error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("request handler panicked", "method", msg.Method, "panic", r)
			result = nil
			handlerErr = &wire.Error{
				Code:    wire.ErrCodeInternalError,
				Message: fmt.Sprintf("internal error handling %s", msg.Method),
			}
		}
	}()
	return handler(context.Background(), msg.Params)
}

func (c *Conn) respondError(id int64, werr *wire.Error) {
	resp := wire.NewErrorResponse(id, werr)
	if err := c.writeMessage(resp); err != nil {
		c.logger.Error("write error response failed", "id", id, "error", err)
	}
}
