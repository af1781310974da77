package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twym/internal/contacts/models"
	"twym/internal/contacts/store"
	"twym/internal/events"
	"twym/internal/platform/config"
	"twym/internal/profiles"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
)

func testConfig() config.ContactsConfig {
	return config.ContactsConfig{
		MaxUserTags:     100,
		MaxTagLength:    32,
		DeleteGraceDays: 30,
	}
}

type fixture struct {
	svc      *Service
	store    *store.InMemoryStore
	profiles *profiles.InMemoryDirectory
	sink     *events.MemorySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	contactStore := store.NewInMemoryStore()
	directory := profiles.NewInMemoryDirectory()
	sink := events.NewMemorySink()

	svc, err := New(contactStore, directory, testConfig(), WithPublisher(sink))
	require.NoError(t, err)

	return &fixture{svc: svc, store: contactStore, profiles: directory, sink: sink}
}

func draftRequest(name, email, phone string) CreateContactRequest {
	req := CreateContactRequest{Name: name}
	if email != "" {
		req.Emails = []models.EmailAddress{{Address: email, Type: models.EmailPersonal, IsPrimary: true}}
	}
	if phone != "" {
		req.Phones = []models.PhoneNumber{{Number: phone, Type: models.PhoneMobile, IsPrimary: true}}
	}
	return req
}

func TestCreate_DuplicateGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := id.NewUserID()

	t.Run("first create persists", func(t *testing.T) {
		result, err := f.svc.Create(ctx, owner, draftRequest("Jane Doe", "jane@example.com", "+1 (234) 567-8900"))
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		assert.Equal(t, models.AcquiredManual, result.Contact.AcquiredVia)
		assert.NotEmpty(t, result.Contact.ContactHash)
	})

	t.Run("same identity with different formatting is a duplicate", func(t *testing.T) {
		result, err := f.svc.Create(ctx, owner, draftRequest("jane doe", "JANE@EXAMPLE.COM", "12345678900"))
		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "Contact already exists", result.Message)
		require.NotNil(t, result.Contact)
		assert.Equal(t, "Jane Doe", result.Contact.Name, "carries the existing contact")
	})

	t.Run("different owner is not a duplicate", func(t *testing.T) {
		other := id.NewUserID()
		result, err := f.svc.Create(ctx, other, draftRequest("Jane Doe", "jane@example.com", "+1 (234) 567-8900"))
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
	})

	t.Run("only real creates emit events", func(t *testing.T) {
		created := 0
		for _, e := range f.sink.Events() {
			if e.Type == events.ContactCreated {
				created++
			}
		}
		assert.Equal(t, 2, created)
	})
}

func TestCreate_BlankContactsNeverCollide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := id.NewUserID()

	first, err := f.svc.Create(ctx, owner, CreateContactRequest{})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, owner, CreateContactRequest{})
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.False(t, second.Duplicate)
	assert.NotEqual(t, first.Contact.ContactHash, second.Contact.ContactHash)
}

func TestCreateManual_ReferenceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := id.NewUserID()

	t.Run("dangling linked user is not found", func(t *testing.T) {
		linked := id.NewUserID()
		req := draftRequest("Jane", "jane@example.com", "")
		req.LinkedUserID = &linked

		_, err := f.svc.CreateManual(ctx, owner, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("resolvable linked user passes", func(t *testing.T) {
		linked := id.NewUserID()
		f.profiles.Put(&profiles.Profile{ID: id.NewProfileID(), UserID: linked})

		req := draftRequest("Jane", "jane@example.com", "")
		req.LinkedUserID = &linked

		result, err := f.svc.CreateManual(ctx, owner, req)
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
	})

	t.Run("dangling submission reference is not found", func(t *testing.T) {
		subID := id.NewSubmissionID()
		req := draftRequest("John", "john@example.com", "")
		req.ContactSubmissionID = &subID

		_, err := f.svc.CreateManual(ctx, owner, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestCreateScanned_AutoTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := id.NewUserID()

	t.Run("qr scan gets QR Scan tag", func(t *testing.T) {
		scanType := models.ScanQRCode
		req := draftRequest("Jane", "jane@example.com", "")
		req.ScannedType = &scanType

		result, err := f.svc.CreateScanned(ctx, owner, req)
		require.NoError(t, err)
		assert.Equal(t, models.AcquiredScanned, result.Contact.AcquiredVia)
		assert.Contains(t, result.Contact.AutomaticTags, models.TagQRScan)
	})

	t.Run("badge without event stays untagged", func(t *testing.T) {
		scanType := models.ScanEventBadge
		req := draftRequest("John", "john@example.com", "")
		req.ScannedType = &scanType

		result, err := f.svc.CreateScanned(ctx, owner, req)
		require.NoError(t, err)
		assert.Empty(t, result.Contact.AutomaticTags)
	})

	t.Run("badge with event gets Event Badge tag", func(t *testing.T) {
		scanType := models.ScanEventBadge
		eventID := id.EventID(id.NewContactID()) // any non-nil uuid works here
		req := draftRequest("Eve", "eve@example.com", "")
		req.ScannedType = &scanType
		req.EventID = &eventID

		result, err := f.svc.CreateScanned(ctx, owner, req)
		require.NoError(t, err)
		assert.Contains(t, result.Contact.AutomaticTags, models.TagEventBadge)
	})

	t.Run("re-scan reports already scanned", func(t *testing.T) {
		scanType := models.ScanQRCode
		req := draftRequest("Jane", "jane@example.com", "")
		req.ScannedType = &scanType

		result, err := f.svc.CreateScanned(ctx, owner, req)
		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "Contact already scanned", result.Message)
	})
}

func TestCreateEventPair_AtomicRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizer := id.NewUserID()
	guest := id.NewUserID()
	eventID := id.EventID(id.NewContactID())

	t.Run("both sides created", func(t *testing.T) {
		a, b, err := f.svc.CreateEventPair(ctx, eventID,
			PairSide{OwnerID: organizer, Req: draftRequest("Guest", "guest@example.com", "")},
			PairSide{OwnerID: guest, Req: draftRequest("Organizer", "organizer@example.com", "")},
		)
		require.NoError(t, err)
		assert.Equal(t, models.AcquiredEvent, a.AcquiredVia)
		require.NotNil(t, b.EventID)
		assert.Equal(t, eventID, *b.EventID)
	})

	t.Run("collision on second side rolls back the first", func(t *testing.T) {
		before, err := f.svc.List(ctx, organizer)
		require.NoError(t, err)

		// The guest already has the organizer contact, so side two collides.
		_, _, err = f.svc.CreateEventPair(ctx, eventID,
			PairSide{OwnerID: organizer, Req: draftRequest("New Guest", "newguest@example.com", "")},
			PairSide{OwnerID: guest, Req: draftRequest("Organizer", "organizer@example.com", "")},
		)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		after, err := f.svc.List(ctx, organizer)
		require.NoError(t, err)
		assert.Len(t, after, len(before), "first side must not survive the failed pair")
	})
}

func TestCreateLoungePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loungeID := id.LoungeID(id.NewContactID())

	a, b, err := f.svc.CreateLoungePair(ctx, loungeID,
		PairSide{OwnerID: id.NewUserID(), Req: draftRequest("A", "a@example.com", "")},
		PairSide{OwnerID: id.NewUserID(), Req: draftRequest("B", "b@example.com", "")},
	)
	require.NoError(t, err)
	assert.Equal(t, models.AcquiredLounge, a.AcquiredVia)
	require.NotNil(t, b.LoungeSessionID)
	assert.Equal(t, loungeID, *b.LoungeSessionID)
}

func TestImportPhoneContact_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := id.NewUserID()

	result, err := f.svc.ImportPhoneContact(ctx, owner, PhoneContact{
		Name:  "Jane Doe",
		Notes: "met at conference",
		Phones: []PhoneContactEntry{
			{Value: "+1 555 0100"},            // no type → mobile
			{Value: "+1 555 0101", Type: "work"},
			{Value: "+1 555 0102", Type: "fax"}, // unknown type → mobile
		},
		Emails: []PhoneContactEntry{
			{Value: "jane@example.com"}, // no type → personal
		},
	})
	require.NoError(t, err)
	require.False(t, result.Duplicate)

	contact := result.Contact
	assert.Equal(t, models.AcquiredPhoneImport, contact.AcquiredVia)
	assert.Equal(t, "met at conference", contact.MeetingNotes)
	assert.Equal(t, models.PhoneMobile, contact.Phones[0].Type)
	assert.Equal(t, models.PhoneWork, contact.Phones[1].Type)
	assert.Equal(t, models.PhoneMobile, contact.Phones[2].Type)
	assert.Equal(t, models.EmailPersonal, contact.Emails[0].Type)
	assert.True(t, contact.Phones[0].IsPrimary)
	assert.False(t, contact.Phones[1].IsPrimary)
}

func TestImportPhoneContacts_BatchCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := id.NewUserID()

	batch := []PhoneContact{
		{Name: "Jane", Emails: []PhoneContactEntry{{Value: "jane@example.com"}}},
		{Name: "Jane", Emails: []PhoneContactEntry{{Value: "jane@example.com"}}},
		{Name: "John", Emails: []PhoneContactEntry{{Value: "john@example.com"}}},
	}

	result, err := f.svc.ImportPhoneContacts(ctx, owner, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Duplicates)
}
