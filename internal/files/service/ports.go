package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Storage,OCRProvider,ContactDirectory

import (
	"context"

	"twym/internal/files/models"
	id "twym/pkg/domain"
)

// UploadedBlob is the storage backend's receipt for a stored object.
type UploadedBlob struct {
	Path string
	URL  string
}

// Storage is the blob backend port. Implementations: S3 and an in-memory
// store for dev/test.
type Storage interface {
	Upload(ctx context.Context, ownerID id.UserID, filename, contentType string, data []byte) (UploadedBlob, error)
	Delete(ctx context.Context, path string) error
}

// OCRProvider extracts text from an image. Provider failures never fail the
// upload; the contact file just stays pending.
type OCRProvider interface {
	DetectText(ctx context.Context, data []byte) (models.OCRResult, error)
}

// ContactDirectory verifies the target contact before any storage work.
type ContactDirectory interface {
	EnsureOwned(ctx context.Context, ownerID id.UserID, contactID id.ContactID) error
}
