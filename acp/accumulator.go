package acp

import (
	"strings"
	"sync"
)

// accumulator collects assistant message deltas per session so the adapter
// can synthesize a complete message when the prompt turn ends.
type accumulator struct {
	mu       sync.Mutex
	text     map[string]*strings.Builder
	complete map[string]bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		text:     make(map[string]*strings.Builder),
		complete: make(map[string]bool),
	}
}

func (a *accumulator) append(sessionID, chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.text[sessionID]
	if !ok {
		b = &strings.Builder{}
		a.text[sessionID] = b
	}
	b.WriteString(chunk)
}

// markComplete records that the agent already delivered a full message, so
// no synthesized one is needed at turn end.
func (a *accumulator) markComplete(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.complete[sessionID] = true
}

// take returns the accumulated text and complete flag for the session and
// clears both.
func (a *accumulator) take(sessionID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var text string
	if b, ok := a.text[sessionID]; ok {
		text = b.String()
	}
	complete := a.complete[sessionID]
	delete(a.text, sessionID)
	delete(a.complete, sessionID)
	return text, complete
}

func (a *accumulator) reset(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.text, sessionID)
	delete(a.complete, sessionID)
}
