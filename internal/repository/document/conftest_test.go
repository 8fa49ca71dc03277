package document

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/simdex/internal/db"
)

// memStore is an in-memory implementation of the consumer interface.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte

	scanErr error
	setErr  error
	// vanish lists keys that disappear between SCAN and JSON.GET.
	vanish map[string]bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, vanish: map[string]bool{}}
}

func (m *memStore) JSONSet(_ context.Context, key, _ string, data []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) JSONGet(_ context.Context, key string, _ ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) JSONGetMulti(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if m.vanish[k] {
			continue
		}
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
