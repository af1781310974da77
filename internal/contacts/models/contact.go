// Package models defines the contact aggregate and its child entities.
package models

import (
	"strings"
	"time"

	id "twym/pkg/domain"
)

// ContactType distinguishes contacts backed by a twym account from purely
// external ones.
type ContactType string

const (
	ContactTypeTwymUser ContactType = "twym_user"
	ContactTypeExternal ContactType = "external"
)

// AcquisitionChannel records how a contact entered the system.
type AcquisitionChannel string

const (
	AcquiredManual      AcquisitionChannel = "manual"
	AcquiredScanned     AcquisitionChannel = "scanned"
	AcquiredEvent       AcquisitionChannel = "event"
	AcquiredLounge      AcquisitionChannel = "lounge"
	AcquiredCaptureForm AcquisitionChannel = "contact_capture_form"
	AcquiredPhoneImport AcquisitionChannel = "phone_import"
)

// ScanType qualifies scanned acquisitions.
type ScanType string

const (
	ScanQRCode       ScanType = "qr_code"
	ScanBusinessCard ScanType = "business_card"
	ScanEventBadge   ScanType = "event_badge"
)

// Automatic tags assigned by the scan and conversion paths.
const (
	TagQRScan     = "QR Scan"
	TagEventBadge = "Event Badge"
	TagLead       = "Lead"
)

// PhoneType classifies a contact phone number.
type PhoneType string

const (
	PhoneMobile PhoneType = "mobile"
	PhoneWork   PhoneType = "work"
	PhoneHome   PhoneType = "home"
	PhoneOther  PhoneType = "other"
)

// EmailType classifies a contact email address.
type EmailType string

const (
	EmailPersonal EmailType = "personal"
	EmailWork     EmailType = "work"
	EmailOther    EmailType = "other"
)

// AddressType classifies a postal address.
type AddressType string

const (
	AddressHome  AddressType = "home"
	AddressWork  AddressType = "work"
	AddressOther AddressType = "other"
)

// LinkType classifies a web link.
type LinkType string

const (
	LinkWebsite  LinkType = "website"
	LinkLinkedIn LinkType = "linkedin"
	LinkSocial   LinkType = "social"
	LinkOther    LinkType = "other"
)

// PhoneNumber is a child entity of Contact.
type PhoneNumber struct {
	Number    string    `json:"number"`
	Type      PhoneType `json:"type"`
	IsPrimary bool      `json:"is_primary"`
}

// EmailAddress is a child entity of Contact.
type EmailAddress struct {
	Address   string    `json:"address"`
	Type      EmailType `json:"type"`
	IsPrimary bool      `json:"is_primary"`
}

// Address is a child entity of Contact.
type Address struct {
	Street     string      `json:"street"`
	City       string      `json:"city"`
	Country    string      `json:"country"`
	PostalCode string      `json:"postal_code"`
	Type       AddressType `json:"type"`
	IsPrimary  bool        `json:"is_primary"`
}

// Link is a child entity of Contact.
type Link struct {
	URL       string   `json:"url"`
	Type      LinkType `json:"type"`
	IsPrimary bool     `json:"is_primary"`
}

// Contact is one real-world entity accumulated by a user. The identity hash
// is the duplicate-detection key: at most one non-deleted contact per
// (owner, hash) pair. DeletedAt marks soft deletion; soft-deleted contacts
// are excluded from listings and hash lookups but remain restorable until
// the hard-delete sweep removes them.
type Contact struct {
	ID                  id.ContactID       `json:"id"`
	OwnerID             id.UserID          `json:"owner_id"`
	LinkedUserID        *id.UserID         `json:"linked_user_id,omitempty"`
	ContactType         ContactType        `json:"contact_type"`
	Name                string             `json:"name"`
	Title               string             `json:"title,omitempty"`
	Department          string             `json:"department,omitempty"`
	Company             string             `json:"company,omitempty"`
	AcquiredVia         AcquisitionChannel `json:"acquired_via"`
	ScannedType         *ScanType          `json:"scanned_type,omitempty"`
	EventID             *id.EventID        `json:"event_id,omitempty"`
	LoungeSessionID     *id.LoungeID       `json:"lounge_session_id,omitempty"`
	ContactSubmissionID *id.SubmissionID   `json:"contact_submission_id,omitempty"`
	MeetingNotes        string             `json:"meeting_notes,omitempty"`
	IsFavorite          bool               `json:"is_favorite"`
	IsPinned            bool               `json:"is_pinned"`
	AutomaticTags       []string           `json:"automatic_tags"`
	UserTags            []string           `json:"user_tags"`
	ContactHash         string             `json:"-"`
	Phones              []PhoneNumber      `json:"phone_numbers"`
	Emails              []EmailAddress     `json:"emails"`
	Addresses           []Address          `json:"addresses"`
	Links               []Link             `json:"links"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	DeletedAt           *time.Time         `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the contact is soft-deleted.
func (c *Contact) IsDeleted() bool {
	return c.DeletedAt != nil
}

// PrimaryEmail returns the first email address, empty when none exist. The
// identity hash uses the first email regardless of the is_primary flag, so
// re-ordering primaries never changes a contact's hash.
func (c *Contact) PrimaryEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0].Address
}

// PrimaryPhone returns the first phone number, empty when none exist.
func (c *Contact) PrimaryPhone() string {
	if len(c.Phones) == 0 {
		return ""
	}
	return c.Phones[0].Number
}

// HasTag reports whether the tag is present in either tag set. Matching is
// case-insensitive.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.AutomaticTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	for _, t := range c.UserTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// SortMode selects the ordering of search results.
type SortMode string

const (
	SortPinned    SortMode = "pinned"
	SortFavorite  SortMode = "favorite"
	SortName      SortMode = "name"
	SortTag       SortMode = "tag"
	SortScanned   SortMode = "scanned"
	SortDateAdded SortMode = "date_added"
)

// SearchQuery filters and orders a user's contacts. Text matches as a
// substring across name, company, title, department, and child
// email/phone values; Tags matches membership in either tag set,
// case-insensitively.
type SearchQuery struct {
	Text string
	Tags []string
	Sort SortMode
}
