//go:build integration

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
	"twym/pkg/testutil/containers"
)

const contactsSchema = `
CREATE TABLE contacts (
	id uuid PRIMARY KEY,
	owner_id uuid NOT NULL,
	linked_user_id uuid,
	contact_type text NOT NULL,
	name text NOT NULL,
	title text NOT NULL DEFAULT '',
	department text NOT NULL DEFAULT '',
	company text NOT NULL DEFAULT '',
	acquired_via text NOT NULL,
	scanned_type text,
	event_id uuid,
	lounge_session_id uuid,
	contact_submission_id uuid,
	meeting_notes text NOT NULL DEFAULT '',
	is_favorite boolean NOT NULL DEFAULT false,
	is_pinned boolean NOT NULL DEFAULT false,
	automatic_tags text[] NOT NULL DEFAULT '{}',
	user_tags text[] NOT NULL DEFAULT '{}',
	contact_hash text NOT NULL,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL,
	deleted_at timestamptz
);
CREATE UNIQUE INDEX contacts_owner_hash_live
	ON contacts (owner_id, contact_hash) WHERE deleted_at IS NULL;

CREATE TABLE contact_phones (
	contact_id uuid NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	position int NOT NULL,
	number text NOT NULL,
	type text NOT NULL,
	is_primary boolean NOT NULL DEFAULT false
);
CREATE TABLE contact_emails (
	contact_id uuid NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	position int NOT NULL,
	address text NOT NULL,
	type text NOT NULL,
	is_primary boolean NOT NULL DEFAULT false
);
CREATE TABLE contact_addresses (
	contact_id uuid NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	position int NOT NULL,
	street text NOT NULL,
	city text NOT NULL,
	country text NOT NULL,
	postal_code text NOT NULL,
	type text NOT NULL,
	is_primary boolean NOT NULL DEFAULT false
);
CREATE TABLE contact_links (
	contact_id uuid NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	position int NOT NULL,
	url text NOT NULL,
	type text NOT NULL,
	is_primary boolean NOT NULL DEFAULT false
);
`

func newContact(owner id.UserID, name, hash string) *models.Contact {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Contact{
		ID:          id.NewContactID(),
		OwnerID:     owner,
		ContactType: models.ContactTypeExternal,
		Name:        name,
		AcquiredVia: models.AcquiredManual,
		ContactHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPostgresStore_Contacts(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Apply(t, contactsSchema)

	store := NewPostgres(pg.DB)
	ctx := context.Background()
	owner := id.NewUserID()

	t.Run("create and find round-trip", func(t *testing.T) {
		contact := newContact(owner, "Ada Lovelace", "hash-roundtrip")
		contact.Phones = []models.PhoneNumber{{Number: "+15550100", Type: "mobile", IsPrimary: true}}
		contact.Emails = []models.EmailAddress{{Address: "ada@example.com", Type: "work"}}
		require.NoError(t, store.Create(ctx, contact))

		got, err := store.FindByID(ctx, contact.ID)
		require.NoError(t, err)
		assert.Equal(t, contact.Name, got.Name)
		require.Len(t, got.Phones, 1)
		assert.Equal(t, "+15550100", got.Phones[0].Number)
		require.Len(t, got.Emails, 1)
		assert.Equal(t, "ada@example.com", got.Emails[0].Address)
	})

	t.Run("duplicate hash is a conflict for the same owner only", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, newContact(owner, "First", "hash-dup")))

		err := store.Create(ctx, newContact(owner, "Second", "hash-dup"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))

		require.NoError(t, store.Create(ctx, newContact(id.NewUserID(), "Other Owner", "hash-dup")))
	})

	t.Run("soft delete frees the hash slot", func(t *testing.T) {
		contact := newContact(owner, "Deleted", "hash-freed")
		require.NoError(t, store.Create(ctx, contact))

		now := time.Now().UTC()
		contact.DeletedAt = &now
		require.NoError(t, store.Save(ctx, contact))

		found, err := store.FindByHash(ctx, owner, "hash-freed")
		require.NoError(t, err)
		assert.Nil(t, found)

		require.NoError(t, store.Create(ctx, newContact(owner, "Replacement", "hash-freed")))
	})

	t.Run("hard delete cascades to pair tables", func(t *testing.T) {
		contact := newContact(owner, "Cascade", "hash-cascade")
		contact.Links = []models.Link{{URL: "https://example.com", Type: "website"}}
		require.NoError(t, store.Create(ctx, contact))

		require.NoError(t, store.HardDelete(ctx, contact.ID))

		_, err := store.FindByID(ctx, contact.ID)
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))

		var n int
		require.NoError(t, pg.DB.QueryRow(
			"SELECT count(*) FROM contact_links WHERE contact_id = $1", contact.ID.String()).Scan(&n))
		assert.Zero(t, n)
	})

	t.Run("list soft deleted", func(t *testing.T) {
		contact := newContact(owner, "Swept", "hash-swept")
		require.NoError(t, store.Create(ctx, contact))
		now := time.Now().UTC()
		contact.DeletedAt = &now
		require.NoError(t, store.Save(ctx, contact))

		deleted, err := store.ListSoftDeleted(ctx)
		require.NoError(t, err)
		ids := make([]id.ContactID, 0, len(deleted))
		for _, c := range deleted {
			ids = append(ids, c.ID)
		}
		assert.Contains(t, ids, contact.ID)
	})

	t.Run("within tx rolls back on error", func(t *testing.T) {
		contact := newContact(owner, "Rollback", "hash-rollback")
		err := store.WithinTx(ctx, func(ctx context.Context) error {
			if err := store.Create(ctx, contact); err != nil {
				return err
			}
			return errors.New("boom")
		})
		require.Error(t, err)

		_, err = store.FindByID(ctx, contact.ID)
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})
}
