package mock

import (
	"context"
)

// MockCompleter is a test double for ai.Completer.
// It allows custom behavior injection via a function field, or scripted
// sequential responses for exercising multi-step reasoning loops.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, scripted responses are consumed in order.
	CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Prompts records every user prompt passed to Complete, in call order.
	// Useful for asserting on scratchpad construction.
	Prompts []string

	responses []string
	next      int
	callCount int
}

// NewMockCompleter creates a mock completer that returns the given responses
// in order, one per call. When the script is exhausted (or empty) it returns
// a terminal answer so callers always converge.
// Note: Returns concrete type to allow test assertions.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{responses: responses}
}

// Complete returns the next scripted response, or delegates to CompleteFunc if set.
func (m *MockCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.callCount++
	m.Prompts = append(m.Prompts, userPrompt)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt)
	}

	if m.next < len(m.responses) {
		response := m.responses[m.next]
		m.next++
		return response, nil
	}

	// Default: a terminal answer so reasoning loops converge
	return "Final Answer: I could not determine an answer.", nil
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	return m.callCount
}

// Reset clears the call count, recorded prompts, script position, and custom function.
func (m *MockCompleter) Reset() {
	m.callCount = 0
	m.next = 0
	m.Prompts = nil
	m.CompleteFunc = nil
}
