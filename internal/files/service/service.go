// Package service implements the business-card upload pipeline: ownership
// check, content hashing, OCR result reuse by hash, blob upload, and the
// single-active-file rule per (contact, doc type, side) slot.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"twym/internal/files/metrics"
	"twym/internal/files/models"
	"twym/internal/platform/config"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/platform/sentinel"
	"twym/pkg/requestcontext"
)

// Store is the persistence port for file records and contact-file
// associations.
type Store interface {
	CreateFile(ctx context.Context, file *models.StoredFile) error
	SaveFile(ctx context.Context, file *models.StoredFile) error
	FindFileByID(ctx context.Context, fileID id.FileID) (*models.StoredFile, error)
	// FindCachedOCR returns the owner's most recent file with the given
	// content hash that already carries an OCR result.
	FindCachedOCR(ctx context.Context, ownerID id.UserID, contentHash string) (*models.StoredFile, error)
	CreateContactFile(ctx context.Context, cf *models.ContactFile) error
	SaveContactFile(ctx context.Context, cf *models.ContactFile) error
	FindContactFileByID(ctx context.Context, cfID id.ContactFileID) (*models.ContactFile, error)
	ListByContact(ctx context.Context, contactID id.ContactID) ([]*models.ContactFile, error)
	// DeactivateActive clears is_active on the current holder of the
	// (contact, doc type, side) slot. No active holder is not an error.
	DeactivateActive(ctx context.Context, contactID id.ContactID, docType models.DocType, side models.CardSide) error
}

// UploadRequest carries one business-card image. ContactID is optional: a
// zero ID stores the card unattached, for the flow where the card arrives
// before the contact exists.
type UploadRequest struct {
	ContactID   id.ContactID
	DocType     models.DocType
	Side        models.CardSide
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult reports the stored file and its processing state. Cached is
// true when a prior upload of identical bytes supplied the OCR result.
type UploadResult struct {
	FileID        id.FileID               `json:"file_id"`
	ContactFileID id.ContactFileID        `json:"contact_file_id"`
	URL           string                  `json:"url"`
	Status        models.ProcessingStatus `json:"processing_status"`
	Side          models.CardSide         `json:"side"`
	Cached        bool                    `json:"cached"`
	Extracted     *models.OCRResult       `json:"extracted_data,omitempty"`
}

// Service owns the upload pipeline rules.
type Service struct {
	store    Store
	storage  Storage
	contacts ContactDirectory
	ocr      OCRProvider
	cfg      config.OCRConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithOCRProvider injects the text extraction backend. Without a provider
// every upload stays pending regardless of the feature flag.
func WithOCRProvider(p OCRProvider) Option {
	return func(s *Service) { s.ocr = p }
}

func New(store Store, storage Storage, contacts ContactDirectory, cfg config.OCRConfig, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if storage == nil {
		return nil, fmt.Errorf("blob storage is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact directory is required")
	}

	svc := &Service{
		store:    store,
		storage:  storage,
		contacts: contacts,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("twym/files"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Upload runs the card upload pipeline. When a target contact is given its
// ownership is checked before any storage work; a failed OCR pass never
// fails the upload.
func (s *Service) Upload(ctx context.Context, ownerID id.UserID, req UploadRequest) (*UploadResult, error) {
	if !req.ContactID.IsNil() {
		if err := s.contacts.EnsureOwned(ctx, ownerID, req.ContactID); err != nil {
			return nil, err
		}
	}
	if len(req.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "file content is empty")
	}
	if req.DocType == "" {
		req.DocType = models.DocBusinessCard
	}
	if req.Side == "" {
		req.Side = models.SideFront
	}

	sum := sha256.Sum256(req.Data)
	contentHash := hex.EncodeToString(sum[:])

	cached, err := s.store.FindCachedOCR(ctx, ownerID, contentHash)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check OCR cache")
	}

	// The blob is uploaded even on a cache hit: each upload keeps its own
	// file record, only the OCR work is reused.
	blob, err := s.uploadBlob(ctx, ownerID, req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store file")
	}

	now := requestcontext.Now(ctx)
	file := &models.StoredFile{
		ID:          id.NewFileID(),
		OwnerID:     ownerID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   int64(len(req.Data)),
		ContentHash: contentHash,
		StoragePath: blob.Path,
		URL:         blob.URL,
		CreatedAt:   now,
	}
	if cached != nil {
		file.OCR = cached.OCR
	}
	if err := s.store.CreateFile(ctx, file); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record file")
	}

	contactFile := &models.ContactFile{
		ID:               id.NewContactFileID(),
		FileID:           file.ID,
		DocType:          req.DocType,
		Side:             req.Side,
		IsActive:         true,
		ProcessingStatus: models.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if !req.ContactID.IsNil() {
		contactID := req.ContactID
		contactFile.ContactID = &contactID
	}
	if cached != nil {
		contactFile.ProcessingStatus = models.StatusSucceeded
		contactFile.OCR = cached.OCR
		s.metrics.IncCacheHit()
	} else {
		s.metrics.IncCacheMiss()
	}
	if err := s.attachContactFile(ctx, contactFile); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "card slot was claimed by a concurrent upload")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach file to contact")
	}

	if cached == nil && s.cfg.Enabled && s.ocr != nil {
		s.runOCR(ctx, file, contactFile, req.Data)
	}

	s.metrics.IncUpload(string(req.DocType))
	return &UploadResult{
		FileID:        file.ID,
		ContactFileID: contactFile.ID,
		URL:           file.URL,
		Status:        contactFile.ProcessingStatus,
		Side:          contactFile.Side,
		Cached:        cached != nil,
		Extracted:     contactFile.OCR,
	}, nil
}

// attachContactFile claims the (contact, doc type, side) slot and inserts
// the association. A concurrent upload can take the slot between the
// deactivate and the insert; the insert then fails on the active-slot
// constraint and is retried once after deactivating the winner. Unattached
// cards occupy no slot and insert directly.
func (s *Service) attachContactFile(ctx context.Context, cf *models.ContactFile) error {
	if cf.ContactID == nil {
		return s.store.CreateContactFile(ctx, cf)
	}
	if err := s.store.DeactivateActive(ctx, *cf.ContactID, cf.DocType, cf.Side); err != nil {
		return err
	}
	err := s.store.CreateContactFile(ctx, cf)
	if err == nil || !errors.Is(err, sentinel.ErrConflict) {
		return err
	}
	if err := s.store.DeactivateActive(ctx, *cf.ContactID, cf.DocType, cf.Side); err != nil {
		return err
	}
	return s.store.CreateContactFile(ctx, cf)
}

func (s *Service) uploadBlob(ctx context.Context, ownerID id.UserID, req UploadRequest) (UploadedBlob, error) {
	ctx, span := s.tracer.Start(ctx, "storage.upload")
	defer span.End()

	blob, err := s.storage.Upload(ctx, ownerID, req.Filename, req.ContentType, req.Data)
	if err != nil {
		span.RecordError(err)
	}
	return blob, err
}

// runOCR extracts text synchronously and persists the result to both the
// contact file and the file record so identical uploads can reuse it.
// Provider errors are logged and leave the contact file pending.
func (s *Service) runOCR(ctx context.Context, file *models.StoredFile, contactFile *models.ContactFile, data []byte) {
	ctx, span := s.tracer.Start(ctx, "ocr.detect_text")
	defer span.End()

	result, err := s.ocr.DetectText(ctx, data)
	if err != nil {
		span.RecordError(err)
		s.metrics.IncOCRFailure()
		s.logger.Warn("ocr extraction failed",
			"file_id", file.ID,
			"contact_file_id", contactFile.ID,
			"error", err)
		return
	}

	now := requestcontext.Now(ctx)
	contactFile.ProcessingStatus = models.StatusSucceeded
	contactFile.OCR = &result
	contactFile.UpdatedAt = now
	if err := s.store.SaveContactFile(ctx, contactFile); err != nil {
		s.logger.Error("failed to persist ocr result", "contact_file_id", contactFile.ID, "error", err)
		return
	}

	file.OCR = &result
	if err := s.store.SaveFile(ctx, file); err != nil {
		s.logger.Error("failed to persist ocr cache entry", "file_id", file.ID, "error", err)
	}
}

// ListForContact returns a contact's file associations, active and
// replaced, newest first.
func (s *Service) ListForContact(ctx context.Context, ownerID id.UserID, contactID id.ContactID) ([]*models.ContactFile, error) {
	if err := s.contacts.EnsureOwned(ctx, ownerID, contactID); err != nil {
		return nil, err
	}
	files, err := s.store.ListByContact(ctx, contactID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contact files")
	}
	return files, nil
}

// GetFile returns a single owned file record.
func (s *Service) GetFile(ctx context.Context, ownerID id.UserID, fileID id.FileID) (*models.StoredFile, error) {
	file, err := s.store.FindFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "file not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load file")
	}
	if file.OwnerID != ownerID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "file does not belong to user")
	}
	return file, nil
}
