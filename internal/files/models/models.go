// Package models defines the file upload entities: the stored blob record
// and the contact-file association that carries OCR processing state.
package models

import (
	"time"

	id "twym/pkg/domain"
)

// DocType classifies what a contact file depicts.
type DocType string

const (
	DocBusinessCard DocType = "business_card"
)

// CardSide identifies which face of a card an image shows.
type CardSide string

const (
	SideFront CardSide = "front"
	SideBack  CardSide = "back"
)

// ProcessingStatus tracks OCR extraction for a contact file.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusSucceeded  ProcessingStatus = "succeeded"
	StatusFailed     ProcessingStatus = "failed"
)

// OCRResult holds the text extraction output persisted alongside both the
// file record and the contact file. A copy lives on the file record so later
// uploads of identical bytes can reuse it without calling the provider again.
type OCRResult struct {
	RawText    string  `json:"raw_text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Engine     string  `json:"engine"`
}

// StoredFile is one uploaded blob. ContentHash is the SHA-256 of the raw
// bytes and keys the OCR cache per owner.
type StoredFile struct {
	ID          id.FileID  `json:"id"`
	OwnerID     id.UserID  `json:"owner_id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	ContentHash string     `json:"content_hash"`
	StoragePath string     `json:"-"`
	URL         string     `json:"url"`
	OCR         *OCRResult `json:"ocr,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ContactFile associates an uploaded file with a contact. ContactID is nil
// for cards uploaded before the contact exists. At most one row per
// (contact, doc type, side) is active; replaced rows are deactivated,
// never deleted.
type ContactFile struct {
	ID               id.ContactFileID `json:"id"`
	ContactID        *id.ContactID    `json:"contact_id,omitempty"`
	FileID           id.FileID        `json:"file_id"`
	DocType          DocType          `json:"doc_type"`
	Side             CardSide         `json:"side"`
	IsActive         bool             `json:"is_active"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	OCR              *OCRResult       `json:"ocr,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
