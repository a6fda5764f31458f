package storage

import (
	"context"
	"sync"
)

// MockKV is an in-memory KV for tests and single-process front-ends
type MockKV struct {
	mu        sync.RWMutex
	values    map[string]string
	pingError error
	setError  error
}

// Ensure MockKV implements KV interface
var _ KV = (*MockKV)(nil)

// NewMockKV creates an empty in-memory store
func NewMockKV() *MockKV {
	return &MockKV{values: make(map[string]string)}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockKV) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetWriteError configures the mock to fail every Set with the given error
func (m *MockKV) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setError = err
}

// Ping mocks storage ping
func (m *MockKV) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockKV) Close() error {
	return nil
}

func (m *MockKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MockKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setError != nil {
		return m.setError
	}
	m.values[key] = value
	return nil
}

func (m *MockKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the number of stored keys
func (m *MockKV) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
