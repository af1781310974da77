package httptransport

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	filemodels "twym/internal/files/models"
	filesvc "twym/internal/files/service"
	"twym/internal/platform/middleware"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/platform/httputil"
)

// maxUploadBytes bounds card image uploads.
const maxUploadBytes = 10 << 20

// FilesHandler exposes the business-card upload endpoints.
type FilesHandler struct {
	svc    *filesvc.Service
	logger *slog.Logger
}

func NewFilesHandler(svc *filesvc.Service, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{svc: svc, logger: logger}
}

// Register mounts the file routes on an authenticated router. The bare
// /files route stores a card without a contact attached.
func (h *FilesHandler) Register(r chi.Router) {
	r.Post("/contacts/{contactID}/files", h.handleUpload)
	r.Post("/files", h.handleUpload)
	r.Get("/contacts/{contactID}/files", h.handleList)
	r.Get("/files/{fileID}", h.handleGetFile)
}

// handleUpload accepts a multipart form with a "file" part and optional
// "doc_type" and "side" fields.
func (h *FilesHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	var contactID id.ContactID
	if raw := chi.URLParam(r, "contactID"); raw != "" {
		parsed, err := id.ParseContactID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		contactID = parsed
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart request"))
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read file"))
		return
	}

	result, err := h.svc.Upload(r.Context(), middleware.GetUserID(r.Context()), filesvc.UploadRequest{
		ContactID:   contactID,
		DocType:     filemodels.DocType(r.FormValue("doc_type")),
		Side:        filemodels.CardSide(r.FormValue("side")),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *FilesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	files, err := h.svc.ListForContact(r.Context(), middleware.GetUserID(r.Context()), contactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *FilesHandler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := id.ParseFileID(chi.URLParam(r, "fileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, err := h.svc.GetFile(r.Context(), middleware.GetUserID(r.Context()), fileID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, file)
}
