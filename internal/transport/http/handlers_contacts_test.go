package httptransport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contactsvc "twym/internal/contacts/service"
	contactstore "twym/internal/contacts/store"
	filesvc "twym/internal/files/service"
	filestorage "twym/internal/files/storage"
	filestore "twym/internal/files/store"
	"twym/internal/forms/ratelimit"
	formsvc "twym/internal/forms/service"
	formstore "twym/internal/forms/store"
	"twym/internal/platform/config"
	"twym/internal/platform/middleware"
	"twym/internal/profiles"
	id "twym/pkg/domain"
	"twym/pkg/testutil"
)

const testSigningKey = "handler-test-signing-key"

type env struct {
	router   chi.Router
	profiles *profiles.InMemoryDirectory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.Default()
	directory := profiles.NewInMemoryDirectory()

	contacts, err := contactsvc.New(contactstore.NewInMemoryStore(), directory,
		config.ContactsConfig{MaxUserTags: 100, MaxTagLength: 32, DeleteGraceDays: 30})
	require.NoError(t, err)

	files, err := filesvc.New(filestore.NewInMemoryStore(), filestorage.NewInMemory(),
		contacts, config.OCRConfig{})
	require.NoError(t, err)

	forms, err := formsvc.New(formstore.NewInMemoryStore(), directory, contacts,
		ratelimit.NewMemoryCounter(),
		config.FormsConfig{DailySubmissionLimit: 10, SubmissionExpiryDays: 90})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Logger:       logger,
		JWTValidator: middleware.NewJWTValidator(testSigningKey),
		Contacts:     NewContactsHandler(contacts, logger),
		Files:        NewFilesHandler(files, logger),
		Forms:        NewFormsHandler(forms, logger),
	})
	return &env{router: router, profiles: directory}
}

func bearerToken(t *testing.T, userID id.UserID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.RegisteredClaims{Subject: userID.String()})
	signed, err := token.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return "Bearer " + signed
}

func authedJSON(t *testing.T, userID id.UserID, method, path string, body any) *http.Request {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req.Header.Set("Authorization", bearerToken(t, userID))
	return req
}

func TestContactsEndpoints(t *testing.T) {
	e := newEnv(t)
	owner := id.NewUserID()

	testutil.Given(t, "an unauthenticated caller", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", map[string]any{"name": "Jane"}))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	var contactID string
	testutil.When(t, "the owner creates a contact", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost, "/contacts", map[string]any{
			"name":   "Jane Doe",
			"emails": []map[string]any{{"address": "jane@example.com", "type": "personal", "is_primary": true}},
		}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		result := testutil.UnmarshalResponse[contactsvc.CreateResult](t, rr)
		require.False(t, result.Duplicate)
		require.NotNil(t, result.Contact)
		contactID = result.Contact.ID.String()
	})

	testutil.Then(t, "the same identity is reported as a duplicate with 200", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost, "/contacts", map[string]any{
			"name":   "JANE DOE",
			"emails": []map[string]any{{"address": "Jane@Example.com", "type": "personal"}},
		}))
		testutil.AssertStatusOK(t, rr)

		result := testutil.UnmarshalResponse[contactsvc.CreateResult](t, rr)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "Contact already exists", result.Message)
	})

	testutil.Then(t, "tag and flag mutations round-trip", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost,
			fmt.Sprintf("/contacts/%s/tags", contactID), map[string]any{"tags": []string{"vip"}}))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "user_tags", []any{"vip"})

		rr = testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPut,
			fmt.Sprintf("/contacts/%s/favorite", contactID), map[string]any{"favorite": true}))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "is_favorite", true)
	})

	testutil.Then(t, "another user cannot touch the contact", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, id.NewUserID(), http.MethodGet,
			"/contacts/"+contactID, nil))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	testutil.Then(t, "an unknown contact is 404", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodGet,
			"/contacts/"+id.NewContactID().String(), nil))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	testutil.Then(t, "delete and restore round-trip", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodDelete,
			"/contacts/"+contactID, nil))
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		rr = testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodGet, "/contacts/", nil))
		testutil.AssertStatusOK(t, rr)
		list := testutil.UnmarshalResponse[struct {
			Contacts []json.RawMessage `json:"contacts"`
		}](t, rr)
		assert.Empty(t, list.Contacts)

		rr = testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost,
			"/contacts/"+contactID+"/restore", nil))
		testutil.AssertStatusOK(t, rr)
	})
}

func TestEventPairEndpoint(t *testing.T) {
	e := newEnv(t)
	organizer := id.NewUserID()
	guest := id.NewUserID()
	eventID := id.NewEventID()

	pair := map[string]any{
		"event_id":      eventID.String(),
		"other_user_id": guest.String(),
		"contact":       map[string]any{"name": "Guest Gal", "emails": []map[string]any{{"address": "guest@example.com", "type": "work"}}},
		"reciprocal":    map[string]any{"name": "Org Annan", "emails": []map[string]any{{"address": "org@example.com", "type": "work"}}},
	}

	rr := testutil.DoRequest(e.router, authedJSON(t, organizer, http.MethodPost, "/contacts/pairs/event", pair))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONHasKey(t, rr, "contact")
	testutil.AssertJSONHasKey(t, rr, "reciprocal")

	// A second check-in collides with the existing contacts and rolls back
	// both sides.
	rr = testutil.DoRequest(e.router, authedJSON(t, organizer, http.MethodPost, "/contacts/pairs/event", pair))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")

	// The organizer still has exactly one contact.
	rr = testutil.DoRequest(e.router, authedJSON(t, organizer, http.MethodGet, "/contacts/", nil))
	testutil.AssertStatusOK(t, rr)
	list := testutil.UnmarshalResponse[struct {
		Contacts []json.RawMessage `json:"contacts"`
	}](t, rr)
	assert.Len(t, list.Contacts, 1)
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t)
	rr := testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONHasKey(t, rr, "postgres")
	testutil.AssertJSONHasKey(t, rr, "redis")
}
