package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	formmodels "twym/internal/forms/models"
	formsvc "twym/internal/forms/service"
	"twym/internal/platform/middleware"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/platform/httputil"
)

// FormsHandler exposes the capture form endpoints: owner-side management
// plus the public submission route.
type FormsHandler struct {
	svc    *formsvc.Service
	logger *slog.Logger
}

func NewFormsHandler(svc *formsvc.Service, logger *slog.Logger) *FormsHandler {
	return &FormsHandler{svc: svc, logger: logger}
}

// Register mounts the owner-side form routes on an authenticated router.
func (h *FormsHandler) Register(r chi.Router) {
	r.Post("/forms", h.handleGetOrCreate)
	r.Put("/forms/{formID}", h.handleUpdate)
	r.Get("/forms/{formID}/submissions", h.handleListSubmissions)
	r.Post("/submissions/{submissionID}/convert", h.handleConvert)
	r.Post("/submissions/{submissionID}/read", h.handleMarkRead)
}

// RegisterPublic mounts the unauthenticated visitor route.
func (h *FormsHandler) RegisterPublic(r chi.Router) {
	r.Post("/public/profiles/{profileID}/submissions", h.handleSubmit)
}

func (h *FormsHandler) handleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProfileID string                       `json:"profile_id"`
		Title     string                       `json:"title"`
		Fields    []formmodels.FieldDefinition `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	profileID, err := id.ParseProfileID(body.ProfileID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	form, err := h.svc.GetOrCreateForm(r.Context(), middleware.GetUserID(r.Context()), profileID, body.Title, body.Fields)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, form)
}

func (h *FormsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		Title    string                       `json:"title"`
		Fields   []formmodels.FieldDefinition `json:"fields"`
		IsActive bool                         `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	form, err := h.svc.UpdateForm(r.Context(), middleware.GetUserID(r.Context()), formID, body.Title, body.Fields, body.IsActive)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, form)
}

func (h *FormsHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		Data            map[string]any `json:"data"`
		CaptchaVerified bool           `json:"captcha_verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sub, err := h.svc.Submit(r.Context(), formsvc.SubmitRequest{
		ProfileID:       profileID,
		Payload:         body.Data,
		CaptchaVerified: body.CaptchaVerified,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sub)
}

func (h *FormsHandler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subs, err := h.svc.ListSubmissions(r.Context(), middleware.GetUserID(r.Context()), formID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

func (h *FormsHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	contact, err := h.svc.Convert(r.Context(), middleware.GetUserID(r.Context()), subID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, contact)
}

func (h *FormsHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.svc.MarkRead(r.Context(), middleware.GetUserID(r.Context()), subID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}
