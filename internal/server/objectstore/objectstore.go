// Package objectstore removes an account's files from object storage.
package objectstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrEmptyPrefix = errors.New("objectstore: refusing to delete with an empty prefix")

// ObjectStore holds per-account objects under a "<username>/" prefix.
type ObjectStore interface {
	// DeleteFolder removes every object whose key starts with prefix and
	// returns how many were deleted. Deleting an empty folder is not an error.
	DeleteFolder(ctx context.Context, prefix string) (int, error)
}

// MemoryStore is an in-process ObjectStore.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// List returns the sorted keys under prefix.
func (m *MemoryStore) List(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) DeleteFolder(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, ErrEmptyPrefix
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}
