package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps values in process memory. It backs both scopes when no
// Redis or Postgres is configured, and is the backend used by tests.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]map[string]string
	failErr error
}

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]string{}}
}

// Fail makes every subsequent call return err. Passing nil restores normal
// operation.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *Memory) Get(_ context.Context, namespace string, key string) (string, bool, error) {
	if err := validate(namespace, key); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failErr != nil {
		return "", false, fmt.Errorf("get %q: %w", key, m.failErr)
	}

	value, ok := m.data[namespace][key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, namespace string, key string, value string) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return fmt.Errorf("set %q: %w", key, m.failErr)
	}

	bucket, ok := m.data[namespace]
	if !ok {
		bucket = map[string]string{}
		m.data[namespace] = bucket
	}
	bucket[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace string, key string) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return fmt.Errorf("delete %q: %w", key, m.failErr)
	}

	if bucket, ok := m.data[namespace]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(m.data, namespace)
		}
	}
	return nil
}

