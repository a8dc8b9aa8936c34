package temporal

import (
	"context"
	"sync"
)

// MockStarter is a mock implementation of Starter for testing.
type MockStarter struct {
	mu       sync.Mutex
	started  map[string]PurchaseConfirmationInput
	startErr error
}

// NewMockStarter creates a new MockStarter.
func NewMockStarter() *MockStarter {
	return &MockStarter{
		started: make(map[string]PurchaseConfirmationInput),
	}
}

// StartPurchaseConfirmation records the workflow that would have been started.
func (m *MockStarter) StartPurchaseConfirmation(ctx context.Context, input PurchaseConfirmationInput) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := WorkflowID(input.Signature)
	m.started[id] = input
	return id, nil
}

// SetStartError configures the mock to return an error on start.
func (m *MockStarter) SetStartError(err error) {
	m.startErr = err
}

// Started returns the input recorded for a signature.
func (m *MockStarter) Started(signature string) (PurchaseConfirmationInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, ok := m.started[WorkflowID(signature)]
	return input, ok
}

// Count returns the number of distinct workflows started.
func (m *MockStarter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}
