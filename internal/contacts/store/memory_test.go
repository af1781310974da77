package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twym/internal/contacts/models"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
)

func seedContact(t *testing.T, s *InMemoryStore, owner id.UserID, name, hash string, createdAt time.Time) *models.Contact {
	t.Helper()
	contact := &models.Contact{
		ID:          id.NewContactID(),
		OwnerID:     owner,
		Name:        name,
		ContactHash: hash,
		AcquiredVia: models.AcquiredManual,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, s.Create(context.Background(), contact))
	return contact
}

func TestInMemoryStore_HashUniqueness(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	owner := id.NewUserID()
	now := time.Now()

	seedContact(t, s, owner, "Jane", "hash-1", now)

	t.Run("same owner same hash conflicts", func(t *testing.T) {
		err := s.Create(ctx, &models.Contact{
			ID: id.NewContactID(), OwnerID: owner, ContactHash: "hash-1",
			CreatedAt: now, UpdatedAt: now,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))
	})

	t.Run("different owner same hash is fine", func(t *testing.T) {
		err := s.Create(ctx, &models.Contact{
			ID: id.NewContactID(), OwnerID: id.NewUserID(), ContactHash: "hash-1",
			CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	})

	t.Run("soft-deleted row does not block", func(t *testing.T) {
		deleted := seedContact(t, s, owner, "Old", "hash-2", now)
		deletedAt := now
		deleted.DeletedAt = &deletedAt
		require.NoError(t, s.Save(ctx, deleted))

		err := s.Create(ctx, &models.Contact{
			ID: id.NewContactID(), OwnerID: owner, ContactHash: "hash-2",
			CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	})
}

func TestInMemoryStore_FindByHashExcludesDeleted(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	owner := id.NewUserID()
	now := time.Now()

	contact := seedContact(t, s, owner, "Jane", "hash-x", now)
	deletedAt := now
	contact.DeletedAt = &deletedAt
	require.NoError(t, s.Save(ctx, contact))

	_, err := s.FindByHash(ctx, owner, "hash-x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	// Still reachable directly for restore.
	got, err := s.FindByID(ctx, contact.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestSortContacts(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mk := func(name string, offset time.Duration) *models.Contact {
		return &models.Contact{Name: name, CreatedAt: base.Add(offset)}
	}

	t.Run("date_added newest first", func(t *testing.T) {
		a, b, c := mk("a", 0), mk("b", time.Hour), mk("c", 2*time.Hour)
		list := []*models.Contact{a, b, c}
		SortContacts(list, models.SortDateAdded)
		assert.Equal(t, []*models.Contact{c, b, a}, list)
	})

	t.Run("pinned first then newest", func(t *testing.T) {
		a, b, c := mk("a", 0), mk("b", time.Hour), mk("c", 2*time.Hour)
		a.IsPinned = true
		list := []*models.Contact{b, c, a}
		SortContacts(list, models.SortPinned)
		assert.Equal(t, []*models.Contact{a, c, b}, list)
	})

	t.Run("favorite first then newest", func(t *testing.T) {
		a, b := mk("a", 0), mk("b", time.Hour)
		a.IsFavorite = true
		list := []*models.Contact{b, a}
		SortContacts(list, models.SortFavorite)
		assert.Equal(t, []*models.Contact{a, b}, list)
	})

	t.Run("name is case-insensitive ascending", func(t *testing.T) {
		a, b, c := mk("zed", 0), mk("Alice", 0), mk("bob", 0)
		list := []*models.Contact{a, b, c}
		SortContacts(list, models.SortName)
		assert.Equal(t, []*models.Contact{b, c, a}, list)
	})

	t.Run("tag ascending with untagged last", func(t *testing.T) {
		a, b, c := mk("a", 0), mk("b", 0), mk("c", 0)
		a.UserTags = []string{"vip"}
		b.AutomaticTags = []string{"QR Scan"}
		list := []*models.Contact{a, c, b}
		SortContacts(list, models.SortTag)
		assert.Equal(t, []*models.Contact{b, a, c}, list)
	})

	t.Run("scanned acquisitions first", func(t *testing.T) {
		a, b := mk("a", 0), mk("b", time.Hour)
		a.AcquiredVia = models.AcquiredScanned
		list := []*models.Contact{b, a}
		SortContacts(list, models.SortScanned)
		assert.Equal(t, []*models.Contact{a, b}, list)
	})
}

func TestInMemoryStore_WithinTxRollback(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	owner := id.NewUserID()
	now := time.Now()

	err := s.WithinTx(ctx, func(txCtx context.Context) error {
		seedContact(t, s, owner, "Jane", "hash-a", now)
		return errors.New("second side failed")
	})
	require.Error(t, err)

	contacts, err := s.FindByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, contacts, "tx failure must restore the snapshot")
}
