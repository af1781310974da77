// Package store provides file persistence: an in-memory store for
// tests/dev and a PostgreSQL store for production. Both honor the same
// single-active-slot rule the postgres partial index enforces.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"twym/internal/files/models"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu           sync.RWMutex
	files        map[id.FileID]*models.StoredFile
	contactFiles map[id.ContactFileID]*models.ContactFile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		files:        make(map[id.FileID]*models.StoredFile),
		contactFiles: make(map[id.ContactFileID]*models.ContactFile),
	}
}

func cloneFile(f *models.StoredFile) *models.StoredFile {
	copied := *f
	if f.OCR != nil {
		ocr := *f.OCR
		copied.OCR = &ocr
	}
	return &copied
}

func cloneContactFile(cf *models.ContactFile) *models.ContactFile {
	copied := *cf
	if cf.ContactID != nil {
		contactID := *cf.ContactID
		copied.ContactID = &contactID
	}
	if cf.OCR != nil {
		ocr := *cf.OCR
		copied.OCR = &ocr
	}
	return &copied
}

func (s *InMemoryStore) CreateFile(_ context.Context, file *models.StoredFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.ID] = cloneFile(file)
	return nil
}

func (s *InMemoryStore) SaveFile(_ context.Context, file *models.StoredFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; !ok {
		return fmt.Errorf("file %s: %w", file.ID, sentinel.ErrNotFound)
	}
	s.files[file.ID] = cloneFile(file)
	return nil
}

func (s *InMemoryStore) FindFileByID(_ context.Context, fileID id.FileID) (*models.StoredFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if file, ok := s.files[fileID]; ok {
		return cloneFile(file), nil
	}
	return nil, fmt.Errorf("file %s: %w", fileID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindCachedOCR(_ context.Context, ownerID id.UserID, contentHash string) (*models.StoredFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *models.StoredFile
	for _, file := range s.files {
		if file.OwnerID != ownerID || file.ContentHash != contentHash || file.OCR == nil {
			continue
		}
		if newest == nil || file.CreatedAt.After(newest.CreatedAt) {
			newest = file
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("cached ocr result: %w", sentinel.ErrNotFound)
	}
	return cloneFile(newest), nil
}

func (s *InMemoryStore) CreateContactFile(_ context.Context, cf *models.ContactFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Unattached cards occupy no slot, matching the partial index that
	// never applies to null contact_id rows.
	if cf.IsActive && cf.ContactID != nil {
		for _, existing := range s.contactFiles {
			if existing.IsActive && existing.ContactID != nil &&
				*existing.ContactID == *cf.ContactID &&
				existing.DocType == cf.DocType &&
				existing.Side == cf.Side {
				return fmt.Errorf("active file already exists for slot: %w", sentinel.ErrConflict)
			}
		}
	}
	s.contactFiles[cf.ID] = cloneContactFile(cf)
	return nil
}

func (s *InMemoryStore) SaveContactFile(_ context.Context, cf *models.ContactFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contactFiles[cf.ID]; !ok {
		return fmt.Errorf("contact file %s: %w", cf.ID, sentinel.ErrNotFound)
	}
	s.contactFiles[cf.ID] = cloneContactFile(cf)
	return nil
}

func (s *InMemoryStore) FindContactFileByID(_ context.Context, cfID id.ContactFileID) (*models.ContactFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cf, ok := s.contactFiles[cfID]; ok {
		return cloneContactFile(cf), nil
	}
	return nil, fmt.Errorf("contact file %s: %w", cfID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByContact(_ context.Context, contactID id.ContactID) ([]*models.ContactFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ContactFile
	for _, cf := range s.contactFiles {
		if cf.ContactID != nil && *cf.ContactID == contactID {
			out = append(out, cloneContactFile(cf))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) DeactivateActive(_ context.Context, contactID id.ContactID, docType models.DocType, side models.CardSide) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cf := range s.contactFiles {
		if cf.ContactID != nil && *cf.ContactID == contactID &&
			cf.DocType == docType && cf.Side == side && cf.IsActive {
			cf.IsActive = false
		}
	}
	return nil
}
