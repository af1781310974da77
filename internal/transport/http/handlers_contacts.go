package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"twym/internal/contacts/models"
	contactsvc "twym/internal/contacts/service"
	"twym/internal/platform/middleware"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/platform/httputil"
)

// ContactsHandler exposes the contact lifecycle endpoints.
type ContactsHandler struct {
	svc    *contactsvc.Service
	logger *slog.Logger
}

func NewContactsHandler(svc *contactsvc.Service, logger *slog.Logger) *ContactsHandler {
	return &ContactsHandler{svc: svc, logger: logger}
}

// Register mounts the contact routes on an authenticated router.
func (h *ContactsHandler) Register(r chi.Router) {
	r.Route("/contacts", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleSearch)
		r.Post("/scan", h.handleScan)
		r.Post("/import", h.handleImport)
		r.Post("/pairs/event", h.handleEventPair)
		r.Post("/pairs/lounge", h.handleLoungePair)

		r.Route("/{contactID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Post("/restore", h.handleRestore)
			r.Post("/tags", h.handleAddTags)
			r.Delete("/tags", h.handleRemoveTags)
			r.Put("/favorite", h.handleSetFavorite)
			r.Put("/pinned", h.handleSetPinned)
			r.Put("/notes", h.handleUpdateNotes)
			r.Post("/phones", h.handleAddPhone)
			r.Post("/emails", h.handleAddEmail)
			r.Post("/addresses", h.handleAddAddress)
			r.Post("/links", h.handleAddLink)
			r.Get("/similarity/{otherID}", h.handleCompare)
		})
	})
}

// contactDraft is the wire shape shared by the create endpoints.
type contactDraft struct {
	ContactType         models.ContactType        `json:"contact_type"`
	LinkedUserID        *string                   `json:"linked_user_id"`
	Name                string                    `json:"name"`
	Title               string                    `json:"title"`
	Department          string                    `json:"department"`
	Company             string                    `json:"company"`
	ScannedType         *models.ScanType          `json:"scanned_type"`
	EventID             *string                   `json:"event_id"`
	LoungeSessionID     *string                   `json:"lounge_session_id"`
	ContactSubmissionID *string                   `json:"contact_submission_id"`
	MeetingNotes        string                    `json:"meeting_notes"`
	UserTags            []string                  `json:"user_tags"`
	Phones              []models.PhoneNumber      `json:"phone_numbers"`
	Emails              []models.EmailAddress     `json:"emails"`
	Addresses           []models.Address          `json:"addresses"`
	Links               []models.Link             `json:"links"`
}

func (d contactDraft) toRequest() (contactsvc.CreateContactRequest, error) {
	req := contactsvc.CreateContactRequest{
		ContactType:  d.ContactType,
		Name:         d.Name,
		Title:        d.Title,
		Department:   d.Department,
		Company:      d.Company,
		ScannedType:  d.ScannedType,
		MeetingNotes: d.MeetingNotes,
		UserTags:     d.UserTags,
		Phones:       d.Phones,
		Emails:       d.Emails,
		Addresses:    d.Addresses,
		Links:        d.Links,
	}
	if d.LinkedUserID != nil {
		userID, err := id.ParseUserID(*d.LinkedUserID)
		if err != nil {
			return req, err
		}
		req.LinkedUserID = &userID
	}
	if d.EventID != nil {
		eventID, err := id.ParseEventID(*d.EventID)
		if err != nil {
			return req, err
		}
		req.EventID = &eventID
	}
	if d.LoungeSessionID != nil {
		loungeID, err := id.ParseLoungeID(*d.LoungeSessionID)
		if err != nil {
			return req, err
		}
		req.LoungeSessionID = &loungeID
	}
	if d.ContactSubmissionID != nil {
		subID, err := id.ParseSubmissionID(*d.ContactSubmissionID)
		if err != nil {
			return req, err
		}
		req.ContactSubmissionID = &subID
	}
	return req, nil
}

func (h *ContactsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft contactDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req, err := draft.toRequest()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.CreateManual(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, createStatus(result), result)
}

func (h *ContactsHandler) handleScan(w http.ResponseWriter, r *http.Request) {
	var draft contactDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req, err := draft.toRequest()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.CreateScanned(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, createStatus(result), result)
}

// createStatus: a fresh contact is 201; a duplicate is a successful 200
// with the existing contact in the body.
func createStatus(result *contactsvc.CreateResult) int {
	if result.Duplicate {
		return http.StatusOK
	}
	return http.StatusCreated
}

func (h *ContactsHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Contacts []contactsvc.PhoneContact `json:"contacts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.svc.ImportPhoneContacts(r.Context(), middleware.GetUserID(r.Context()), body.Contacts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// pairBody carries both directions of an event check-in or lounge
// connection: the authenticated caller's view of the other participant and
// the reciprocal contact created on the other participant's behalf.
type pairBody struct {
	EventID         string       `json:"event_id"`
	LoungeSessionID string       `json:"lounge_session_id"`
	OtherUserID     string       `json:"other_user_id"`
	Contact         contactDraft `json:"contact"`
	Reciprocal      contactDraft `json:"reciprocal"`
}

func (h *ContactsHandler) handleEventPair(w http.ResponseWriter, r *http.Request) {
	body, first, second, err := h.decodePair(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	eventID, err := id.ParseEventID(body.EventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	mine, theirs, err := h.svc.CreateEventPair(r.Context(), eventID, first, second)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"contact": mine, "reciprocal": theirs})
}

func (h *ContactsHandler) handleLoungePair(w http.ResponseWriter, r *http.Request) {
	body, first, second, err := h.decodePair(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	loungeID, err := id.ParseLoungeID(body.LoungeSessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	mine, theirs, err := h.svc.CreateLoungePair(r.Context(), loungeID, first, second)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"contact": mine, "reciprocal": theirs})
}

func (h *ContactsHandler) decodePair(r *http.Request) (pairBody, contactsvc.PairSide, contactsvc.PairSide, error) {
	var body pairBody
	var first, second contactsvc.PairSide
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, first, second, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	otherUserID, err := id.ParseUserID(body.OtherUserID)
	if err != nil {
		return body, first, second, err
	}
	mineReq, err := body.Contact.toRequest()
	if err != nil {
		return body, first, second, err
	}
	theirsReq, err := body.Reciprocal.toRequest()
	if err != nil {
		return body, first, second, err
	}
	first = contactsvc.PairSide{OwnerID: middleware.GetUserID(r.Context()), Req: mineReq}
	second = contactsvc.PairSide{OwnerID: otherUserID, Req: theirsReq}
	return body, first, second, nil
}

func (h *ContactsHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := models.SearchQuery{
		Text: r.URL.Query().Get("q"),
		Sort: models.SortMode(r.URL.Query().Get("sort")),
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		query.Tags = strings.Split(tags, ",")
	}

	contacts, err := h.svc.Search(r.Context(), middleware.GetUserID(r.Context()), query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (h *ContactsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	contact, err := h.svc.Get(r.Context(), middleware.GetUserID(r.Context()), contactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.SoftDelete(r.Context(), middleware.GetUserID(r.Context()), contactID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContactsHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	contact, err := h.svc.Restore(r.Context(), middleware.GetUserID(r.Context()), contactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleAddTags(w http.ResponseWriter, r *http.Request) {
	h.tagMutation(w, r, h.svc.AddTags)
}

func (h *ContactsHandler) handleRemoveTags(w http.ResponseWriter, r *http.Request) {
	h.tagMutation(w, r, h.svc.RemoveTags)
}

func (h *ContactsHandler) tagMutation(w http.ResponseWriter, r *http.Request,
	mutate func(ctx context.Context, ownerID id.UserID, contactID id.ContactID, tags []string) (*models.Contact, error)) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	contact, err := mutate(r.Context(), middleware.GetUserID(r.Context()), contactID, body.Tags)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	h.flagMutation(w, r, "favorite", h.svc.SetFavorite)
}

func (h *ContactsHandler) handleSetPinned(w http.ResponseWriter, r *http.Request) {
	h.flagMutation(w, r, "pinned", h.svc.SetPinned)
}

func (h *ContactsHandler) flagMutation(w http.ResponseWriter, r *http.Request, field string,
	mutate func(ctx context.Context, ownerID id.UserID, contactID id.ContactID, value bool) (*models.Contact, error)) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	contact, err := mutate(r.Context(), middleware.GetUserID(r.Context()), contactID, body[field])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	contact, err := h.svc.UpdateNotes(r.Context(), middleware.GetUserID(r.Context()), contactID, body.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleAddPhone(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var phone models.PhoneNumber
	if err := json.NewDecoder(r.Body).Decode(&phone); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	contact, err := h.svc.AddPhone(r.Context(), middleware.GetUserID(r.Context()), contactID, phone)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleAddEmail(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var email models.EmailAddress
	if err := json.NewDecoder(r.Body).Decode(&email); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	contact, err := h.svc.AddEmail(r.Context(), middleware.GetUserID(r.Context()), contactID, email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var address models.Address
	if err := json.NewDecoder(r.Body).Decode(&address); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	contact, err := h.svc.AddAddress(r.Context(), middleware.GetUserID(r.Context()), contactID, address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleAddLink(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var link models.Link
	if err := json.NewDecoder(r.Body).Decode(&link); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	contact, err := h.svc.AddLink(r.Context(), middleware.GetUserID(r.Context()), contactID, link)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *ContactsHandler) handleCompare(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	otherID, err := id.ParseContactID(chi.URLParam(r, "otherID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	score, err := h.svc.Compare(r.Context(), middleware.GetUserID(r.Context()), contactID, otherID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]float64{"similarity": score})
}

func contactIDParam(r *http.Request) (id.ContactID, error) {
	return id.ParseContactID(chi.URLParam(r, "contactID"))
}
