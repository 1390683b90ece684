package acp

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/agentlink/protocol"
	"github.com/bazelment/agentlink/rpc"
	"github.com/bazelment/agentlink/wire"
)

// fakeFramer is an in-memory framer driven by channels.
type fakeFramer struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeFramer() *fakeFramer {
	return &fakeFramer{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeFramer) ReadMessage() ([]byte, error) {
	select {
	case m := <-f.in:
		return m, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeFramer) WriteMessage(body []byte) error {
	select {
	case f.out <- body:
		return nil
	case <-f.closed:
		return io.ErrClosedPipe
	}
}

func (f *fakeFramer) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeFramer) nextWritten(t *testing.T) *wire.Message {
	t.Helper()
	select {
	case body := <-f.out:
		var msg wire.Message
		require.NoError(t, json.Unmarshal(body, &msg))
		return &msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for written message")
		return nil
	}
}

func (f *fakeFramer) pushNotification(t *testing.T, method string, params any) {
	t.Helper()
	msg, err := wire.NewNotification(method, params)
	require.NoError(t, err)
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	f.in <- body
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeFramer, *rpc.Conn) {
	t.Helper()
	framer := newFakeFramer()
	conn := rpc.NewConn(framer, nil)
	adapter := NewAdapter(conn, "/work", nil)
	conn.Listen()
	t.Cleanup(func() { _ = conn.Close() })
	return adapter, framer, conn
}

// respondTo answers the next written request with the given result.
func respondTo(t *testing.T, framer *fakeFramer, wantMethod string, result any) {
	t.Helper()
	msg := framer.nextWritten(t)
	require.Equal(t, wantMethod, msg.Method)
	require.NotNil(t, msg.ID)
	resp, err := wire.NewResponse(*msg.ID, result)
	require.NoError(t, err)
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	framer.in <- body
}

func TestAdapter_UnsupportedMethodsNeverTouchTheWire(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	methods := []string{
		protocol.MethodSessionList,
		protocol.MethodSessionDelete,
		protocol.MethodSessionHistory,
		protocol.MethodModelsList,
		protocol.MethodStatusGet,
		protocol.MethodSessionForegroundGet,
		protocol.MethodSessionForegroundSet,
	}
	for _, method := range methods {
		err := adapter.Call(context.Background(), method, nil, nil)
		require.Error(t, err, method)

		var capErr *protocol.CapabilityError
		require.ErrorAs(t, err, &capErr, method)
		assert.Equal(t, method, capErr.Method)
		assert.Contains(t, capErr.Error(), method)
	}
	assert.Empty(t, framer.out, "unsupported methods must write nothing")
}

func TestAdapter_VerifyProtocolVersion(t *testing.T) {
	t.Parallel()

	t.Run("matching version", func(t *testing.T) {
		t.Parallel()
		adapter, framer, _ := newTestAdapter(t)

		go respondTo(t, framer, "initialize", map[string]any{"protocolVersion": ProtocolVersion})
		require.NoError(t, adapter.VerifyProtocolVersion(context.Background()))
	})

	t.Run("missing version is fatal", func(t *testing.T) {
		t.Parallel()
		adapter, framer, _ := newTestAdapter(t)

		go respondTo(t, framer, "initialize", map[string]any{})
		err := adapter.VerifyProtocolVersion(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not report a protocol version")
		assert.Contains(t, err.Error(), "1")
	})

	t.Run("mismatched version is fatal", func(t *testing.T) {
		t.Parallel()
		adapter, framer, _ := newTestAdapter(t)

		go respondTo(t, framer, "initialize", map[string]any{"protocolVersion": 99})
		err := adapter.VerifyProtocolVersion(context.Background())
		require.Error(t, err)

		var verr *protocol.VersionError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, err.Error(), "99")
		assert.Contains(t, err.Error(), "1")
	})
}

func TestAdapter_PingAnsweredLocally(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)
	go respondTo(t, framer, "initialize", map[string]any{"protocolVersion": ProtocolVersion})
	require.NoError(t, adapter.VerifyProtocolVersion(context.Background()))

	var result protocol.PingResult
	require.NoError(t, adapter.Call(context.Background(), protocol.MethodPing, protocol.PingParams{Message: "hi"}, &result))
	assert.Equal(t, "hi", result.Message)
	require.NotNil(t, result.ProtocolVersion)
	assert.Equal(t, ProtocolVersion, *result.ProtocolVersion)
	assert.Empty(t, framer.out, "ping must be answered without wire traffic")
}

func TestAdapter_PingBeforeInitializeFails(t *testing.T) {
	t.Parallel()

	adapter, _, _ := newTestAdapter(t)
	err := adapter.Call(context.Background(), protocol.MethodPing, protocol.PingParams{}, nil)
	require.Error(t, err)
}

func TestAdapter_CreateSessionTranslatesToSessionNew(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		msg := framer.nextWritten(t)
		assert.Equal(t, "session/new", msg.Method)

		var req NewSessionRequest
		require.NoError(t, json.Unmarshal(msg.Params, &req))
		assert.Equal(t, "/work", req.CWD)
		require.Len(t, req.McpServers, 1)
		assert.Equal(t, "files", req.McpServers[0].Name)

		resp, err := wire.NewResponse(*msg.ID, NewSessionResponse{SessionID: "sess-1"})
		require.NoError(t, err)
		body, _ := json.Marshal(resp)
		framer.in <- body
	}()

	params := protocol.CreateSessionParams{
		MCPServers: map[string]protocol.MCPServerConfig{
			"files": {Type: "stdio", Command: "mcp-files"},
		},
	}
	var result protocol.CreateSessionResult
	require.NoError(t, adapter.Call(context.Background(), protocol.MethodSessionCreate, params, &result))
	assert.Equal(t, "sess-1", result.SessionID)
	<-done
}

func TestAdapter_ResumeSessionTranslatesToSessionLoad(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	go respondTo(t, framer, "session/load", LoadSessionResponse{})

	var result protocol.CreateSessionResult
	err := adapter.Call(context.Background(), protocol.MethodSessionResume,
		protocol.ResumeSessionParams{SessionID: "sess-9"}, &result)
	require.NoError(t, err)
	assert.Equal(t, "sess-9", result.SessionID)
}

func TestAdapter_AbortSendsCancelNotification(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	require.NoError(t, adapter.Call(context.Background(), protocol.MethodSessionAbort,
		protocol.SessionRefParams{SessionID: "sess-1"}, nil))

	msg := framer.nextWritten(t)
	assert.Nil(t, msg.ID)
	assert.Equal(t, "session/cancel", msg.Method)
	assert.JSONEq(t, `{"sessionId":"sess-1"}`, string(msg.Params))
}

func TestAdapter_DestroyIsLocalNoOpAndIdempotent(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, adapter.Call(context.Background(), protocol.MethodSessionDestroy,
			protocol.SessionRefParams{SessionID: "sess-1"}, nil))
	}
	assert.Empty(t, framer.out, "destroy must write nothing")
}

func TestAdapter_SendSynthesizesMessageAndIdle(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	var mu sync.Mutex
	var events []protocol.SessionEvent
	seen := make(chan string, 16)
	adapter.Subscribe(protocol.MethodSessionEvent, func(method string, params json.RawMessage) {
		var p protocol.SessionEventParams
		require.NoError(t, json.Unmarshal(params, &p))
		mu.Lock()
		events = append(events, p.Event)
		mu.Unlock()
		seen <- p.Event.Type
	})

	chunk := func(text string) {
		framer.pushNotification(t, "session/update", SessionNotification{
			SessionID: "sess-1",
			Update: SessionUpdate{
				Type:    "agent_message_chunk",
				Content: &ContentBlock{Type: "text", Text: text},
			},
		})
	}
	waitEvent := func(want string) {
		select {
		case got := <-seen:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	chunk("Hel")
	waitEvent(protocol.EventAssistantMessageDelta)
	chunk("lo")
	waitEvent(protocol.EventAssistantMessageDelta)

	go respondTo(t, framer, "session/prompt", PromptResponse{StopReason: "end_turn"})

	var result protocol.SendResult
	require.NoError(t, adapter.Call(context.Background(), protocol.MethodSessionSend,
		protocol.SendParams{SessionID: "sess-1", Prompt: "hi"}, &result))
	assert.NotEmpty(t, result.MessageID)

	// The synthesized events are emitted before Call returns.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4)
	assert.Equal(t, protocol.EventAssistantMessageDelta, events[0].Type)
	assert.Equal(t, "Hel", events[0].Content)
	assert.Equal(t, protocol.EventAssistantMessageDelta, events[1].Type)
	assert.Equal(t, "lo", events[1].Content)
	assert.Equal(t, protocol.EventAssistantMessage, events[2].Type)
	assert.Equal(t, "Hello", events[2].Content)
	assert.NotEmpty(t, events[2].ID)
	assert.Equal(t, protocol.EventSessionIdle, events[3].Type)
	assert.Equal(t, "end_turn", events[3].StopReason)
}

func TestAdapter_NoSynthesizedMessageWhenAgentSentComplete(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	var mu sync.Mutex
	var events []protocol.SessionEvent
	seen := make(chan struct{}, 16)
	adapter.Subscribe(protocol.MethodSessionEvent, func(method string, params json.RawMessage) {
		var p protocol.SessionEventParams
		require.NoError(t, json.Unmarshal(params, &p))
		mu.Lock()
		events = append(events, p.Event)
		mu.Unlock()
		seen <- struct{}{}
	})

	framer.pushNotification(t, "session/update", SessionNotification{
		SessionID: "sess-1",
		Update: SessionUpdate{
			Type:    "agent_message",
			Content: &ContentBlock{Type: "text", Text: "Hello"},
		},
	})
	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message event")
	}

	go respondTo(t, framer, "session/prompt", PromptResponse{StopReason: "end_turn"})
	require.NoError(t, adapter.Call(context.Background(), protocol.MethodSessionSend,
		protocol.SendParams{SessionID: "sess-1", Prompt: "hi"}, nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, protocol.EventAssistantMessage, events[0].Type)
	assert.Equal(t, protocol.EventSessionIdle, events[1].Type)
}

func TestAdapter_ToolCallUpdatesTranslated(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)

	got := make(chan protocol.SessionEvent, 1)
	adapter.Subscribe(protocol.MethodSessionEvent, func(method string, params json.RawMessage) {
		var p protocol.SessionEventParams
		require.NoError(t, json.Unmarshal(params, &p))
		got <- p.Event
	})

	framer.pushNotification(t, "session/update", SessionNotification{
		SessionID: "sess-1",
		Update: SessionUpdate{
			Type:       "tool_call",
			ToolCallID: "tc-1",
			ToolName:   "shell",
			Status:     "running",
			Input:      map[string]interface{}{"cmd": "ls"},
		},
	})

	select {
	case ev := <-got:
		assert.Equal(t, protocol.EventToolExecutionStart, ev.Type)
		assert.Equal(t, "tc-1", ev.ToolCallID)
		assert.Equal(t, "shell", ev.ToolName)
		assert.Equal(t, "running", ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tool event")
	}
}

func TestAdapter_PermissionRequestRoundTrip(t *testing.T) {
	t.Parallel()

	options := []PermissionOption{
		{ID: "opt-reject", Name: "No", Kind: "reject_once"},
		{ID: "opt-allow", Name: "Yes", Kind: "allow_once"},
		{ID: "opt-allow-always", Name: "Always", Kind: "allow_always"},
	}
	request := RequestPermissionRequest{
		SessionID: "sess-1",
		ToolCall:  ToolCallInfo{ToolCallID: "tc-1", ToolName: "shell", Kind: "shell"},
		Options:   options,
	}

	tests := []struct {
		name        string
		handler     rpc.RequestHandler
		wantOutcome string
		wantOption  string
	}{
		{
			name: "approved picks first allow option",
			handler: func(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
				var p protocol.PermissionRequestParams
				require.NoError(t, json.Unmarshal(params, &p))
				assert.Equal(t, "shell", p.Request.ToolName)
				return protocol.PermissionRequestResult{Result: protocol.ApprovedPermission()}, nil
			},
			wantOutcome: "selected",
			wantOption:  "opt-allow",
		},
		{
			name: "denied picks first reject option",
			handler: func(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
				return protocol.PermissionRequestResult{Result: protocol.DeniedPermission()}, nil
			},
			wantOutcome: "selected",
			wantOption:  "opt-reject",
		},
		{
			name:        "no handler cancels",
			handler:     nil,
			wantOutcome: "cancelled",
		},
		{
			name: "handler fault cancels",
			handler: func(ctx context.Context, params json.RawMessage) (any, *wire.Error) {
				return nil, &wire.Error{Code: wire.ErrCodeInternalError, Message: "fault"}
			},
			wantOutcome: "cancelled",
		},
	}

	for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			adapter, framer, _ := newTestAdapter(t)
			if tt.handler != nil {
				adapter.Handle(protocol.MethodPermissionRequest, tt.handler)
			}

			req, err := wire.NewRequest(11, "session/request_permission", request)
			require.NoError(t, err)
			body, err := json.Marshal(req)
			require.NoError(t, err)
			framer.in <- body

			resp := framer.nextWritten(t)
			require.Nil(t, resp.Error)

			var perm RequestPermissionResponse
			require.NoError(t, json.Unmarshal(resp.Result, &perm))
			assert.Equal(t, tt.wantOutcome, perm.Outcome.Type)
			assert.Equal(t, tt.wantOption, perm.Outcome.OptionID)
		})
	}
}

func TestAdapter_NotifyUnsupported(t *testing.T) {
	t.Parallel()

	adapter, framer, _ := newTestAdapter(t)
	err := adapter.Notify("session.event", nil)
	require.Error(t, err)

	var capErr *protocol.CapabilityError
	assert.ErrorAs(t, err, &capErr)
	assert.Empty(t, framer.out)
}
