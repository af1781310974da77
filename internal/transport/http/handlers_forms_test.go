package httptransport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	formmodels "twym/internal/forms/models"
	"twym/internal/profiles"
	id "twym/pkg/domain"
	"twym/pkg/testutil"
)

func seedProfile(e *env, captureEnabled bool) (id.UserID, id.ProfileID) {
	owner := id.NewUserID()
	profileID := id.NewProfileID()
	e.profiles.Put(&profiles.Profile{
		ID:                    profileID,
		UserID:                owner,
		DisplayName:           "Test Owner",
		ContactCaptureEnabled: captureEnabled,
	})
	return owner, profileID
}

func TestPublicSubmissionFlow(t *testing.T) {
	e := newEnv(t)
	owner, profileID := seedProfile(e, true)

	testutil.Given(t, "the owner has a capture form", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost, "/forms", map[string]any{
			"profile_id": profileID.String(),
		}))
		testutil.AssertStatusOK(t, rr)

		form := testutil.UnmarshalResponse[formmodels.ContactForm](t, rr)
		assert.True(t, form.IsActive)
		assert.NotEmpty(t, form.Fields)
	})

	var submissionID string
	testutil.When(t, "a visitor submits the form", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
			"/public/profiles/"+profileID.String()+"/submissions", map[string]any{
				"data": map[string]any{
					"name":  "  Visitor One  ",
					"email": "visitor@example.com",
					"phone": "+15550100",
				},
			}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		sub := testutil.UnmarshalResponse[formmodels.ContactSubmission](t, rr)
		assert.Equal(t, "Visitor One", sub.SubmissionData["name"])
		assert.NotEmpty(t, sub.VisitorIP)
		assert.False(t, sub.IsRead)
		submissionID = sub.ID.String()
	})

	testutil.Then(t, "a submission missing required fields is rejected", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
			"/public/profiles/"+profileID.String()+"/submissions", map[string]any{
				"data": map[string]any{"email": "no-name@example.com"},
			}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	testutil.Then(t, "the owner converts the submission into a contact", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost,
			"/submissions/"+submissionID+"/convert", nil))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "name", "Visitor One")

		rr = testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost,
			"/submissions/"+submissionID+"/convert", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})

	testutil.Then(t, "an unknown profile yields 404", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
			"/public/profiles/"+id.NewProfileID().String()+"/submissions", map[string]any{
				"data": map[string]any{"name": "x", "email": "x@example.com"},
			}))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestPublicSubmissionRateLimit(t *testing.T) {
	e := newEnv(t)
	owner, profileID := seedProfile(e, true)

	rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost, "/forms", map[string]any{
		"profile_id": profileID.String(),
	}))
	require.Equal(t, http.StatusOK, rr.Code)

	submit := func() int {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
			"/public/profiles/"+profileID.String()+"/submissions", map[string]any{
				"data": map[string]any{"name": "Visitor", "email": "v@example.com"},
			}))
		return rr.Code
	}

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusCreated, submit(), "submission %d should pass", i+1)
	}

	rr = testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
		"/public/profiles/"+profileID.String()+"/submissions", map[string]any{
			"data": map[string]any{"name": "Visitor", "email": "v@example.com"},
		}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "rate_limited")
}

func TestPublicSubmissionCaptureDisabled(t *testing.T) {
	e := newEnv(t)
	owner, profileID := seedProfile(e, true)

	rr := testutil.DoRequest(e.router, authedJSON(t, owner, http.MethodPost, "/forms", map[string]any{
		"profile_id": profileID.String(),
	}))
	require.Equal(t, http.StatusOK, rr.Code)

	// Capture switched off after the form exists.
	e.profiles.Put(&profiles.Profile{ID: profileID, UserID: owner, ContactCaptureEnabled: false})

	rr = testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
		"/public/profiles/"+profileID.String()+"/submissions", map[string]any{
			"data": map[string]any{"name": "Visitor", "email": "v@example.com"},
		}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}
