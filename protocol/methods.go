package protocol

// Version is the protocol version this SDK is built against. The server
// must report the same version during the connectivity handshake.
const Version = 1

// Methods the client sends to the CLI server.
const (
	MethodPing                 = "ping"
	MethodStatusGet            = "status.get"
	MethodModelsList           = "models.list"
	MethodSessionCreate        = "session.create"
	MethodSessionResume        = "session.resume"
	MethodSessionSend          = "session.send"
	MethodSessionList          = "session.list"
	MethodSessionDelete        = "session.delete"
	MethodSessionHistory       = "session.history"
	MethodSessionAbort         = "session.abort"
	MethodSessionDestroy       = "session.destroy"
	MethodSessionForegroundGet = "session.foreground.get"
	MethodSessionForegroundSet = "session.foreground.set"
)

// Methods the CLI server calls back into the client. session.event and
// session.lifecycle arrive as notifications; the rest are requests that
// must be answered.
const (
	MethodSessionEvent      = "session.event"
	MethodSessionLifecycle  = "session.lifecycle"
	MethodToolCall          = "tool.call"
	MethodPermissionRequest = "permission.request"
	MethodUserInputRequest  = "userInput.request"
	MethodHookInvoke        = "hook.invoke"
)
