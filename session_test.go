package agentlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/agentlink/protocol"
)

func newUnroutedSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()
	c, err := NewClient()
	require.NoError(t, err)
	return newSession("s1", c, cfg)
}

func TestSession_SubscriberOrdering(t *testing.T) {
	t.Parallel()

	s := newUnroutedSession(t, SessionConfig{})

	var order []string
	s.OnAll(func(ev protocol.SessionEvent) { order = append(order, "wild-1") })
	s.On(protocol.EventSessionIdle, func(ev protocol.SessionEvent) { order = append(order, "typed-1") })
	s.On(protocol.EventSessionIdle, func(ev protocol.SessionEvent) { order = append(order, "typed-2") })
	s.OnAll(func(ev protocol.SessionEvent) { order = append(order, "wild-2") })
	s.On(protocol.EventAssistantMessage, func(ev protocol.SessionEvent) { order = append(order, "other-type") })

	s.dispatchEvent(protocol.SessionEvent{Type: protocol.EventSessionIdle})

	// Type-specific subscribers run before wildcards, each group in
	// registration order. Subscribers for other types never run.
	assert.Equal(t, []string{"typed-1", "typed-2", "wild-1", "wild-2"}, order)
}

func TestSession_Unsubscribe(t *testing.T) {
	t.Parallel()

	s := newUnroutedSession(t, SessionConfig{})

	var calls int
	off := s.On(protocol.EventSessionIdle, func(ev protocol.SessionEvent) { calls++ })

	s.dispatchEvent(protocol.SessionEvent{Type: protocol.EventSessionIdle})
	assert.Equal(t, 1, calls)

	off()
	s.dispatchEvent(protocol.SessionEvent{Type: protocol.EventSessionIdle})
	assert.Equal(t, 1, calls)

	// Unsubscribing twice is harmless.
	off()
}

func TestSession_SubscriberPanicIsolated(t *testing.T) {
	t.Parallel()

	s := newUnroutedSession(t, SessionConfig{})

	var survived bool
	s.OnAll(func(ev protocol.SessionEvent) { panic("observer fault") })
	s.OnAll(func(ev protocol.SessionEvent) { survived = true })

	s.dispatchEvent(protocol.SessionEvent{Type: protocol.EventSessionError})
	assert.True(t, survived)
}

func TestHookNames_Sorted(t *testing.T) {
	t.Parallel()

	names := hookNames(map[string]HookHandler{
		HookSessionStart: nil,
		HookPreToolUse:   nil,
		HookPostToolUse:  nil,
	})
	assert.Equal(t, []string{HookPostToolUse, HookPreToolUse, HookSessionStart}, names)

	assert.Nil(t, hookNames(nil))
}
