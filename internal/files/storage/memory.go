// Package storage provides the blob backends for uploaded files: S3 for
// production and an in-memory store for dev/test.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"twym/internal/files/service"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
)

// InMemoryStorage keeps blobs in process memory.
type InMemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewInMemory() *InMemoryStorage {
	return &InMemoryStorage{blobs: make(map[string][]byte)}
}

func (s *InMemoryStorage) Upload(_ context.Context, ownerID id.UserID, filename, _ string, data []byte) (service.UploadedBlob, error) {
	path := objectKey(ownerID, filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = append([]byte(nil), data...)

	return service.UploadedBlob{Path: path, URL: "memory://" + path}, nil
}

func (s *InMemoryStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[path]; !ok {
		return fmt.Errorf("blob %s: %w", path, sentinel.ErrNotFound)
	}
	delete(s.blobs, path)
	return nil
}

// Get returns a stored blob, for tests.
func (s *InMemoryStorage) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[path]
	return data, ok
}

// objectKey namespaces blobs by owner and keeps keys unique even when the
// same filename is uploaded twice.
func objectKey(ownerID id.UserID, filename string) string {
	return fmt.Sprintf("%s/%s-%s", ownerID, uuid.NewString(), filename)
}
