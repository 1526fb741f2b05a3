package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockFileStore is an in-memory implementation of FileStore. It is used in
// tests and as a fallback when no object store is configured.
type MockFileStore struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMockFileStore creates a new instance of MockFileStore.
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{
		objects: make(map[string][]byte),
	}
}

// Upload stores the bytes under a generated key.
func (m *MockFileStore) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "mock/" + uuid.New().String()
	m.objects[key] = data
	return &UploadResult{
		URL:       "http://localhost/files/" + key,
		StorageID: key,
	}, nil
}

// Delete removes a stored object by its key.
func (m *MockFileStore) Delete(ctx context.Context, storageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[storageID]; !ok {
		return fmt.Errorf("object %s not found", storageID)
	}
	delete(m.objects, storageID)
	return nil
}

// Len reports the number of stored objects.
func (m *MockFileStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
