// Package store provides form and submission persistence: an in-memory
// store for tests/dev and a PostgreSQL store for production.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"twym/internal/forms/models"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	forms       map[id.FormID]*models.ContactForm
	submissions map[id.SubmissionID]*models.ContactSubmission
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		forms:       make(map[id.FormID]*models.ContactForm),
		submissions: make(map[id.SubmissionID]*models.ContactSubmission),
	}
}

func cloneForm(f *models.ContactForm) *models.ContactForm {
	copied := *f
	copied.Fields = append([]models.FieldDefinition(nil), f.Fields...)
	return &copied
}

func cloneSubmission(s *models.ContactSubmission) *models.ContactSubmission {
	copied := *s
	copied.SubmissionData = make(map[string]string, len(s.SubmissionData))
	for k, v := range s.SubmissionData {
		copied.SubmissionData[k] = v
	}
	if s.CreatedContactID != nil {
		cid := *s.CreatedContactID
		copied.CreatedContactID = &cid
	}
	return &copied
}

func (s *InMemoryStore) CreateForm(_ context.Context, form *models.ContactForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.forms {
		if existing.ProfileID == form.ProfileID {
			return fmt.Errorf("form already exists for profile: %w", sentinel.ErrConflict)
		}
	}
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *InMemoryStore) SaveForm(_ context.Context, form *models.ContactForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[form.ID]; !ok {
		return fmt.Errorf("form %s: %w", form.ID, sentinel.ErrNotFound)
	}
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *InMemoryStore) FindFormByID(_ context.Context, formID id.FormID) (*models.ContactForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if form, ok := s.forms[formID]; ok {
		return cloneForm(form), nil
	}
	return nil, fmt.Errorf("form %s: %w", formID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindFormByProfile(_ context.Context, profileID id.ProfileID) (*models.ContactForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, form := range s.forms {
		if form.ProfileID == profileID {
			return cloneForm(form), nil
		}
	}
	return nil, fmt.Errorf("form for profile %s: %w", profileID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) CreateSubmission(_ context.Context, sub *models.ContactSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = cloneSubmission(sub)
	return nil
}

func (s *InMemoryStore) SaveSubmission(_ context.Context, sub *models.ContactSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; !ok {
		return fmt.Errorf("submission %s: %w", sub.ID, sentinel.ErrNotFound)
	}
	s.submissions[sub.ID] = cloneSubmission(sub)
	return nil
}

func (s *InMemoryStore) FindSubmissionByID(_ context.Context, subID id.SubmissionID) (*models.ContactSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.submissions[subID]; ok {
		return cloneSubmission(sub), nil
	}
	return nil, fmt.Errorf("submission %s: %w", subID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByForm(_ context.Context, formID id.FormID) ([]*models.ContactSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ContactSubmission
	for _, sub := range s.submissions {
		if sub.FormID == formID {
			out = append(out, cloneSubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for subID, sub := range s.submissions {
		if sub.ExpiresAt.Before(now) {
			delete(s.submissions, subID)
			removed++
		}
	}
	return removed, nil
}
