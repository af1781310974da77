package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contactsvc "twym/internal/contacts/service"
	contactstore "twym/internal/contacts/store"
	"twym/internal/events"
	"twym/internal/forms/models"
	"twym/internal/forms/ratelimit"
	"twym/internal/forms/store"
	"twym/internal/platform/config"
	"twym/internal/profiles"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/requestcontext"
)

func testConfig() config.FormsConfig {
	return config.FormsConfig{
		DailySubmissionLimit: 10,
		SubmissionExpiryDays: 90,
	}
}

type fixture struct {
	svc      *Service
	forms    *store.InMemoryStore
	contacts *contactsvc.Service
	profiles *profiles.InMemoryDirectory
	sink     *events.MemorySink

	ownerID   id.UserID
	profileID id.ProfileID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	directory := profiles.NewInMemoryDirectory()
	ownerID := id.NewUserID()
	profileID := id.NewProfileID()
	directory.Put(&profiles.Profile{
		ID:                    profileID,
		UserID:                ownerID,
		ContactCaptureEnabled: true,
	})

	contacts, err := contactsvc.New(contactstore.NewInMemoryStore(), directory,
		config.ContactsConfig{MaxUserTags: 100, MaxTagLength: 32, DeleteGraceDays: 30})
	require.NoError(t, err)

	formStore := store.NewInMemoryStore()
	sink := events.NewMemorySink()
	svc, err := New(formStore, directory, contacts, ratelimit.NewMemoryCounter(),
		testConfig(), WithPublisher(sink))
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		forms:     formStore,
		contacts:  contacts,
		profiles:  directory,
		sink:      sink,
		ownerID:   ownerID,
		profileID: profileID,
	}
}

func (f *fixture) createForm(t *testing.T) *models.ContactForm {
	t.Helper()
	form, err := f.svc.GetOrCreateForm(context.Background(), f.ownerID, f.profileID, "Say hello", nil)
	require.NoError(t, err)
	return form
}

func visitorCtx(ip string) context.Context {
	return requestcontext.WithClientMetadata(context.Background(),
		ip, "Mozilla/5.0", "https://twym.example/jane")
}

func submitPayload(name, email string) map[string]any {
	return map[string]any{"name": name, "email": email}
}

func TestGetOrCreateForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form := f.createForm(t)
	assert.True(t, form.IsActive)
	assert.NotEmpty(t, form.Fields, "default fields are seeded")

	again, err := f.svc.GetOrCreateForm(ctx, f.ownerID, f.profileID, "ignored", nil)
	require.NoError(t, err)
	assert.Equal(t, form.ID, again.ID, "one form per profile")

	t.Run("foreign profile is a bad request", func(t *testing.T) {
		_, err := f.svc.GetOrCreateForm(ctx, id.NewUserID(), f.profileID, "t", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("field definitions are validated", func(t *testing.T) {
		_, err := f.svc.UpdateForm(ctx, f.ownerID, form.ID, "t",
			[]models.FieldDefinition{{Name: "x", Type: "checkbox", Label: "X"}}, true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = f.svc.UpdateForm(ctx, f.ownerID, form.ID, "t",
			[]models.FieldDefinition{{Name: "x", Type: models.FieldText}}, true)
		require.Error(t, err, "labels are required")
	})
}

func TestSubmit_Gates(t *testing.T) {
	f := newFixture(t)
	form := f.createForm(t)

	t.Run("unknown profile is not found", func(t *testing.T) {
		_, err := f.svc.Submit(visitorCtx("203.0.113.7"), SubmitRequest{
			ProfileID: id.NewProfileID(),
			Payload:   submitPayload("Visitor", "v@example.com"),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("capture disabled is a bad request", func(t *testing.T) {
		f.profiles.Put(&profiles.Profile{ID: f.profileID, UserID: f.ownerID, ContactCaptureEnabled: false})
		_, err := f.svc.Submit(visitorCtx("203.0.113.7"), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   submitPayload("Visitor", "v@example.com"),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		f.profiles.Put(&profiles.Profile{ID: f.profileID, UserID: f.ownerID, ContactCaptureEnabled: true})
	})

	t.Run("inactive form is a bad request", func(t *testing.T) {
		_, err := f.svc.UpdateForm(context.Background(), f.ownerID, form.ID, form.Title, form.Fields, false)
		require.NoError(t, err)

		_, err = f.svc.Submit(visitorCtx("203.0.113.7"), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   submitPayload("Visitor", "v@example.com"),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		_, err = f.svc.UpdateForm(context.Background(), f.ownerID, form.ID, form.Title, form.Fields, true)
		require.NoError(t, err)
	})

	t.Run("missing required field is invalid", func(t *testing.T) {
		_, err := f.svc.Submit(visitorCtx("203.0.113.7"), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   map[string]any{"email": "v@example.com"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("malformed email is invalid", func(t *testing.T) {
		_, err := f.svc.Submit(visitorCtx("203.0.113.7"), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   submitPayload("Visitor", "not-an-email"),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepted submission carries visitor metadata", func(t *testing.T) {
		payload := submitPayload("Visitor One", "v1@example.com")
		payload["message"] = "  loved the talk  "
		payload["favorite_color"] = "blue"     // unknown key dropped
		payload["company"] = map[string]any{}  // non-string dropped

		sub, err := f.svc.Submit(visitorCtx("203.0.113.7"), SubmitRequest{
			ProfileID:       f.profileID,
			Payload:         payload,
			CaptchaVerified: true,
		})
		require.NoError(t, err)
		assert.Equal(t, form.ID, sub.FormID)
		assert.Equal(t, f.profileID, sub.ProfileID)
		assert.Equal(t, "203.0.113.7", sub.VisitorIP)
		assert.Equal(t, "Mozilla/5.0", sub.VisitorUserAgent)
		assert.Equal(t, "loved the talk", sub.SubmissionData["message"], "values are trimmed")
		assert.NotContains(t, sub.SubmissionData, "favorite_color")
		assert.NotContains(t, sub.SubmissionData, "company")
		assert.True(t, sub.CaptchaVerified)
		assert.False(t, sub.IsRead)
	})
}

func TestSubmit_DailyRateLimit(t *testing.T) {
	f := newFixture(t)
	f.createForm(t)

	day := time.Date(2026, 8, 14, 10, 0, 0, 0, time.Local)
	ctxFor := func(ip string, at time.Time) context.Context {
		return requestcontext.WithTime(visitorCtx(ip), at)
	}

	for i := 0; i < 10; i++ {
		_, err := f.svc.Submit(ctxFor("203.0.113.9", day), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   submitPayload("Visitor", fmt.Sprintf("v%d@example.com", i)),
		})
		require.NoError(t, err, "submission %d is under the limit", i+1)
	}

	t.Run("eleventh is rejected", func(t *testing.T) {
		_, err := f.svc.Submit(ctxFor("203.0.113.9", day), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   submitPayload("Visitor", "v11@example.com"),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
	})

	t.Run("other visitors are unaffected", func(t *testing.T) {
		_, err := f.svc.Submit(ctxFor("198.51.100.4", day), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   submitPayload("Other", "other@example.com"),
		})
		require.NoError(t, err)
	})

	t.Run("count resets at local midnight", func(t *testing.T) {
		nextDay := time.Date(2026, 8, 15, 0, 5, 0, 0, time.Local)
		_, err := f.svc.Submit(ctxFor("203.0.113.9", nextDay), SubmitRequest{
			ProfileID: f.profileID,
			Payload:   submitPayload("Visitor", "v12@example.com"),
		})
		require.NoError(t, err)
	})
}

func TestConvert(t *testing.T) {
	f := newFixture(t)
	f.createForm(t)
	ctx := context.Background()

	submit := func(t *testing.T, email string) *models.ContactSubmission {
		t.Helper()
		sub, err := f.svc.Submit(visitorCtx("203.0.113.20"), SubmitRequest{
			ProfileID: f.profileID,
			Payload: map[string]any{
				"name":    "Form Visitor",
				"email":   email,
				"message": "interested in a demo",
			},
		})
		require.NoError(t, err)
		return sub
	}

	sub := submit(t, "lead@example.com")

	t.Run("creates a lead contact", func(t *testing.T) {
		contact, err := f.svc.Convert(ctx, f.ownerID, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "Form Visitor", contact.Name)
		assert.Contains(t, contact.AutomaticTags, "Lead")
		assert.Equal(t, "interested in a demo", contact.MeetingNotes)
		require.NotNil(t, contact.ContactSubmissionID)
		assert.Equal(t, sub.ID, *contact.ContactSubmissionID)

		stored, err := f.svc.store.FindSubmissionByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsRead, "conversion marks the submission read")
		require.NotNil(t, stored.CreatedContactID)
		assert.Equal(t, contact.ID, *stored.CreatedContactID)
	})

	t.Run("second conversion conflicts", func(t *testing.T) {
		_, err := f.svc.Convert(ctx, f.ownerID, sub.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("duplicate contact during conversion conflicts", func(t *testing.T) {
		other := submit(t, "lead@example.com")
		_, err := f.svc.Convert(ctx, f.ownerID, other.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("foreign owner is a bad request", func(t *testing.T) {
		third := submit(t, "third@example.com")
		_, err := f.svc.Convert(ctx, id.NewUserID(), third.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("publishes the converted event", func(t *testing.T) {
		converted := 0
		for _, e := range f.sink.Events() {
			if e.Type == events.SubmissionConverted {
				converted++
			}
		}
		assert.Equal(t, 1, converted)
	})
}

func TestMarkReadAndList(t *testing.T) {
	f := newFixture(t)
	form := f.createForm(t)
	ctx := context.Background()

	sub, err := f.svc.Submit(visitorCtx("203.0.113.30"), SubmitRequest{
		ProfileID: f.profileID,
		Payload:   submitPayload("Visitor", "v@example.com"),
	})
	require.NoError(t, err)

	updated, err := f.svc.MarkRead(ctx, f.ownerID, sub.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsRead)

	listed, err := f.svc.ListSubmissions(ctx, f.ownerID, form.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, sub.ID, listed[0].ID)

	_, err = f.svc.ListSubmissions(ctx, id.NewUserID(), form.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestExists(t *testing.T) {
	f := newFixture(t)
	f.createForm(t)

	sub, err := f.svc.Submit(visitorCtx("203.0.113.40"), SubmitRequest{
		ProfileID: f.profileID,
		Payload:   submitPayload("Visitor", "v@example.com"),
	})
	require.NoError(t, err)

	ok, err := f.svc.Exists(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.Exists(context.Background(), id.NewSubmissionID())
	require.NoError(t, err)
	assert.False(t, ok)
}
