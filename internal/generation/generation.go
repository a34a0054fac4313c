// Package generation provides the text-generation client used for debate
// arguments and judging.
//
// Defines a Provider interface with Ollama and OpenAI-compatible
// implementations. The interface allows swapping providers without changing
// consumers; no retry is performed here — retry and timeout policy belong to
// the caller.
package generation

import "context"

// Provider produces a completion from a system instruction and a user prompt.
type Provider interface {
	// Generate returns the completion text. It fails with *Error when the
	// service is unreachable, returns a non-success status, or returns an
	// empty completion.
	Generate(ctx context.Context, system, prompt string, maxTokens int, temperature float64) (string, error)
}

// Error is the failure type for generation calls. Callers treat any
// generation failure as terminal for the debate in flight.
type Error struct {
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }
