// Package models defines the contact-capture form and its submissions.
package models

import (
	"time"

	id "twym/pkg/domain"
)

// FieldType is the input kind of a form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldTextarea FieldType = "textarea"
)

// KnownFieldType reports whether t is a supported field type.
func KnownFieldType(t FieldType) bool {
	switch t {
	case FieldText, FieldEmail, FieldPhone, FieldTextarea:
		return true
	}
	return false
}

// FieldDefinition describes one field of a capture form. Name keys the
// submission payload; Label is what visitors see.
type FieldDefinition struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
}

// ContactForm is a profile's public capture form. One form per profile.
type ContactForm struct {
	ID        id.FormID         `json:"id"`
	ProfileID id.ProfileID      `json:"profile_id"`
	OwnerID   id.UserID         `json:"owner_id"`
	Title     string            `json:"title"`
	Fields    []FieldDefinition `json:"fields"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ContactSubmission is one visitor submission against a form. SubmissionData
// holds only keys declared in the form's field definitions.
// CreatedContactID is stamped once when the owner converts the submission.
type ContactSubmission struct {
	ID               id.SubmissionID   `json:"id"`
	FormID           id.FormID         `json:"form_id"`
	ProfileID        id.ProfileID      `json:"profile_id"`
	SubmissionData   map[string]string `json:"submission_data"`
	VisitorIP        string            `json:"visitor_ip"`
	VisitorUserAgent string            `json:"visitor_user_agent"`
	VisitorReferrer  string            `json:"visitor_referrer"`
	CaptchaVerified  bool              `json:"captcha_verified"`
	IsRead           bool              `json:"is_read"`
	CreatedContactID *id.ContactID     `json:"created_contact_id,omitempty"`
	ExpiresAt        time.Time         `json:"expires_at"`
	CreatedAt        time.Time         `json:"created_at"`
}

// IsConverted reports whether a contact was already created from this
// submission.
func (s *ContactSubmission) IsConverted() bool {
	return s.CreatedContactID != nil
}
