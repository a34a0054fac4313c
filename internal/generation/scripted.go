package generation

import (
	"context"
	"sync"
)

// ScriptedProvider returns canned completions in order. Test double for
// orchestration tests; records every call it receives.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []string
	next      int

	// FailAt makes the n-th call (1-based) fail instead of responding.
	// Zero disables failure injection.
	FailAt int

	// Calls records the (system, prompt) of each Generate invocation.
	Calls []ScriptedCall
}

// ScriptedCall is one recorded Generate invocation.
type ScriptedCall struct {
	System string
	Prompt string
}

// NewScriptedProvider creates a provider that replays responses in order.
// Once exhausted it repeats the last response.
func NewScriptedProvider(responses ...string) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Generate returns the next scripted completion.
func (p *ScriptedProvider) Generate(_ context.Context, system, prompt string, _ int, _ float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, ScriptedCall{System: system, Prompt: prompt})
	call := len(p.Calls)
	if p.FailAt != 0 && call >= p.FailAt {
		return "", &Error{Provider: "scripted", Message: "injected failure"}
	}

	if len(p.responses) == 0 {
		return "", &Error{Provider: "scripted", Message: "empty completion returned"}
	}
	resp := p.responses[min(p.next, len(p.responses)-1)]
	p.next++
	return resp, nil
}
