// Package store provides the contact persistence implementations: an
// in-memory store for tests/dev and a PostgreSQL store for production.
//
// Error contract for both implementations:
// - Return a wrapped sentinel.ErrNotFound when the entity does not exist
// - Return a wrapped sentinel.ErrConflict when a uniqueness rule rejects a write
// - Return wrapped errors with context for infrastructure failures
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"twym/internal/contacts/models"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
)

// InMemoryStore keeps contacts in process memory. It enforces the same
// (owner, hash) uniqueness rule as the postgres partial index so the
// service's race-hardening path is testable.
type InMemoryStore struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	contacts map[id.ContactID]*models.Contact
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{contacts: make(map[id.ContactID]*models.Contact)}
}

func cloneContact(c *models.Contact) *models.Contact {
	copied := *c
	copied.AutomaticTags = append([]string(nil), c.AutomaticTags...)
	copied.UserTags = append([]string(nil), c.UserTags...)
	copied.Phones = append([]models.PhoneNumber(nil), c.Phones...)
	copied.Emails = append([]models.EmailAddress(nil), c.Emails...)
	copied.Addresses = append([]models.Address(nil), c.Addresses...)
	copied.Links = append([]models.Link(nil), c.Links...)
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		copied.DeletedAt = &t
	}
	return &copied
}

func (s *InMemoryStore) Create(_ context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.contacts {
		if existing.OwnerID == contact.OwnerID &&
			existing.ContactHash == contact.ContactHash &&
			!existing.IsDeleted() {
			return fmt.Errorf("contact hash already exists for owner: %w", sentinel.ErrConflict)
		}
	}
	s.contacts[contact.ID] = cloneContact(contact)
	return nil
}

func (s *InMemoryStore) Save(_ context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[contact.ID]; !ok {
		return fmt.Errorf("contact %s: %w", contact.ID, sentinel.ErrNotFound)
	}
	s.contacts[contact.ID] = cloneContact(contact)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, contactID id.ContactID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if contact, ok := s.contacts[contactID]; ok {
		return cloneContact(contact), nil
	}
	return nil, fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByOwner(_ context.Context, ownerID id.UserID) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Contact
	for _, contact := range s.contacts {
		if contact.OwnerID == ownerID && !contact.IsDeleted() {
			out = append(out, cloneContact(contact))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) FindByHash(_ context.Context, ownerID id.UserID, hash string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, contact := range s.contacts {
		if contact.OwnerID == ownerID && contact.ContactHash == hash && !contact.IsDeleted() {
			return cloneContact(contact), nil
		}
	}
	return nil, fmt.Errorf("contact hash: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) Search(ctx context.Context, ownerID id.UserID, query models.SearchQuery) ([]*models.Contact, error) {
	owned, err := s.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var out []*models.Contact
	for _, contact := range owned {
		if matchesQuery(contact, query) {
			out = append(out, contact)
		}
	}
	SortContacts(out, query.Sort)
	return out, nil
}

func (s *InMemoryStore) ListSoftDeleted(_ context.Context) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Contact
	for _, contact := range s.contacts {
		if contact.IsDeleted() {
			out = append(out, cloneContact(contact))
		}
	}
	return out, nil
}

func (s *InMemoryStore) HardDelete(_ context.Context, contactID id.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, contactID)
	return nil
}

// WithinTx serializes against other transactions and restores a snapshot
// if fn fails, approximating the postgres rollback behavior closely enough
// for the paired-create tests.
func (s *InMemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[id.ContactID]*models.Contact, len(s.contacts))
	for key, contact := range s.contacts {
		snapshot[key] = cloneContact(contact)
	}
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.contacts = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func matchesQuery(contact *models.Contact, query models.SearchQuery) bool {
	if query.Text != "" && !matchesText(contact, query.Text) {
		return false
	}
	if len(query.Tags) > 0 {
		found := false
		for _, tag := range query.Tags {
			if contact.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesText(contact *models.Contact, text string) bool {
	needle := strings.ToLower(text)
	for _, haystack := range []string{contact.Name, contact.Company, contact.Title, contact.Department} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	for _, email := range contact.Emails {
		if strings.Contains(strings.ToLower(email.Address), needle) {
			return true
		}
	}
	for _, phone := range contact.Phones {
		if strings.Contains(phone.Number, needle) {
			return true
		}
	}
	return false
}

// SortContacts orders results by the requested mode. Every mode has a
// defined secondary sort so pagination stays stable:
//
//	pinned    — pinned first, then newest first
//	favorite  — favorites first, then newest first
//	name      — case-insensitive name ascending, then newest first
//	tag       — first tag ascending (untagged last), then name ascending
//	scanned   — scanned acquisitions first, then newest first
//	date_added — newest first, then name ascending (default)
func SortContacts(contacts []*models.Contact, mode models.SortMode) {
	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		switch mode {
		case models.SortPinned:
			if a.IsPinned != b.IsPinned {
				return a.IsPinned
			}
			return a.CreatedAt.After(b.CreatedAt)
		case models.SortFavorite:
			if a.IsFavorite != b.IsFavorite {
				return a.IsFavorite
			}
			return a.CreatedAt.After(b.CreatedAt)
		case models.SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
			return a.CreatedAt.After(b.CreatedAt)
		case models.SortTag:
			at, bt := firstTag(a), firstTag(b)
			if at != bt {
				if at == "" {
					return false
				}
				if bt == "" {
					return true
				}
				return at < bt
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case models.SortScanned:
			aScan := a.AcquiredVia == models.AcquiredScanned
			bScan := b.AcquiredVia == models.AcquiredScanned
			if aScan != bScan {
				return aScan
			}
			return a.CreatedAt.After(b.CreatedAt)
		default: // models.SortDateAdded
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	})
}

func firstTag(c *models.Contact) string {
	if len(c.AutomaticTags) > 0 {
		return strings.ToLower(c.AutomaticTags[0])
	}
	if len(c.UserTags) > 0 {
		return strings.ToLower(c.UserTags[0])
	}
	return ""
}
