package servo

import "sync"

var _ Backend = &MockBackend{}

// MockBackend is an in-memory Backend for tests and the daemon's "mock"
// mode. It records the last commanded pulse width and optionally supports
// rate control.
type MockBackend struct {
	mu sync.Mutex

	name     string
	pulseMs  int
	rateMs   int
	hasRate  bool
	nextErr  error
	setCalls []int
}

// NewMockBackend returns a MockBackend reporting pulseMs as its current
// position. Rate control is unsupported unless EnableRate is called.
func NewMockBackend(name string, pulseMs int) *MockBackend {
	return &MockBackend{
		name:    name,
		pulseMs: pulseMs,
	}
}

// EnableRate turns on rate-control support.
func (m *MockBackend) EnableRate() *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasRate = true
	return m
}

// FailNext makes the next backend call return err.
func (m *MockBackend) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextErr = err
}

// SetCalls returns every pulse width passed to SetPosition, in order.
func (m *MockBackend) SetCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]int, len(m.setCalls))
	copy(calls, m.setCalls)
	return calls
}

func (m *MockBackend) takeErr() error {
	err := m.nextErr
	m.nextErr = nil
	return err
}

// Name implements Backend.
func (m *MockBackend) Name() string {
	return m.name
}

// SetPosition implements Backend.
func (m *MockBackend) SetPosition(pulseMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.pulseMs = pulseMs
	m.setCalls = append(m.setCalls, pulseMs)
	return nil
}

// GetPosition implements Backend.
func (m *MockBackend) GetPosition() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return 0, err
	}
	return m.pulseMs, nil
}

// Rate implements Backend.
func (m *MockBackend) Rate() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasRate {
		return 0, ErrUnsupported
	}
	if err := m.takeErr(); err != nil {
		return 0, err
	}
	return m.rateMs, nil
}

// SetRate implements Backend.
func (m *MockBackend) SetRate(ms int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasRate {
		return ErrUnsupported
	}
	if err := m.takeErr(); err != nil {
		return err
	}
	m.rateMs = ms
	return nil
}
