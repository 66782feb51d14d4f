package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/resilia-grid/neurogrid/core/command"
)

// Publisher mirrors the core command.Publisher interface.
type Publisher = command.Publisher

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Setpoints  map[string]float64
	FailIDs    map[string]bool
	AckResults map[string]bool
	BreakerLog []bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Setpoints:  make(map[string]float64),
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// EmitDispatch records the setpoint or returns an error if configured to fail.
func (m *MockPublisher) EmitDispatch(tierID string, powerKW float64, planID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[tierID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Setpoints[tierID] = powerKW
	commandID := fmt.Sprintf("cmd-%s", tierID)
	m.AckResults[commandID] = !m.FailIDs[tierID]
	return commandID, nil
}

// EmitBreaker records the breaker order.
func (m *MockPublisher) EmitBreaker(open bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BreakerLog = append(m.BreakerLog, open)
	commandID := fmt.Sprintf("cmd-breaker-%d", len(m.BreakerLog))
	m.AckResults[commandID] = true
	return commandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("unknown command")
	}
	return ok, nil
}
