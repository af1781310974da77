// Package domain defines the typed identifiers shared across modules.
//
// Each entity gets its own UUID-backed type so the compiler rejects an
// accidental swap (e.g. passing a ContactID where a UserID is expected).
// Parse functions enforce the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "twym/pkg/domain-errors"
)

type (
	// UserID identifies an account owning contacts.
	UserID uuid.UUID
	// ProfileID identifies a public profile (one per user).
	ProfileID uuid.UUID
	// ContactID identifies a contact row.
	ContactID uuid.UUID
	// FileID identifies an uploaded blob record.
	FileID uuid.UUID
	// ContactFileID identifies a document attached to a contact.
	ContactFileID uuid.UUID
	// FormID identifies a profile's contact-capture form.
	FormID uuid.UUID
	// SubmissionID identifies a visitor form submission.
	SubmissionID uuid.UUID
	// EventID identifies an event used by check-in pairing.
	EventID uuid.UUID
	// LoungeID identifies a lounge session used by pairing.
	LoungeID uuid.UUID
)

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ProfileID) String() string     { return uuid.UUID(id).String() }
func (id ContactID) String() string     { return uuid.UUID(id).String() }
func (id FileID) String() string        { return uuid.UUID(id).String() }
func (id ContactFileID) String() string { return uuid.UUID(id).String() }
func (id FormID) String() string        { return uuid.UUID(id).String() }
func (id SubmissionID) String() string  { return uuid.UUID(id).String() }
func (id EventID) String() string       { return uuid.UUID(id).String() }
func (id LoungeID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ContactID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id FileID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ContactFileID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FormID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id LoungeID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func NewUserID() UserID               { return UserID(uuid.New()) }
func NewProfileID() ProfileID         { return ProfileID(uuid.New()) }
func NewContactID() ContactID         { return ContactID(uuid.New()) }
func NewFileID() FileID               { return FileID(uuid.New()) }
func NewContactFileID() ContactFileID { return ContactFileID(uuid.New()) }
func NewFormID() FormID               { return FormID(uuid.New()) }
func NewSubmissionID() SubmissionID   { return SubmissionID(uuid.New()) }
func NewEventID() EventID             { return EventID(uuid.New()) }
func NewLoungeID() LoungeID           { return LoungeID(uuid.New()) }

// Defined types do not inherit uuid.UUID's marshaling methods, so each ID
// implements encoding.TextMarshaler/TextUnmarshaler to keep the canonical
// string form on the wire.

func (id UserID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ProfileID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ContactID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id FileID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ContactFileID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id FormID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id SubmissionID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id LoungeID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func unmarshalText(dst *uuid.UUID, data []byte) error {
	parsed, err := uuid.ParseBytes(data)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func (id *UserID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *ProfileID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *ContactID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *FileID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *ContactFileID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *FormID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *SubmissionID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *EventID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func (id *LoungeID) UnmarshalText(data []byte) error {
	return unmarshalText((*uuid.UUID)(id), data)
}

func parse(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parse(raw, "user_id")
	return UserID(parsed), err
}

func ParseProfileID(raw string) (ProfileID, error) {
	parsed, err := parse(raw, "profile_id")
	return ProfileID(parsed), err
}

func ParseContactID(raw string) (ContactID, error) {
	parsed, err := parse(raw, "contact_id")
	return ContactID(parsed), err
}

func ParseFileID(raw string) (FileID, error) {
	parsed, err := parse(raw, "file_id")
	return FileID(parsed), err
}

func ParseContactFileID(raw string) (ContactFileID, error) {
	parsed, err := parse(raw, "contact_file_id")
	return ContactFileID(parsed), err
}

func ParseFormID(raw string) (FormID, error) {
	parsed, err := parse(raw, "form_id")
	return FormID(parsed), err
}

func ParseSubmissionID(raw string) (SubmissionID, error) {
	parsed, err := parse(raw, "submission_id")
	return SubmissionID(parsed), err
}

func ParseEventID(raw string) (EventID, error) {
	parsed, err := parse(raw, "event_id")
	return EventID(parsed), err
}

func ParseLoungeID(raw string) (LoungeID, error) {
	parsed, err := parse(raw, "lounge_session_id")
	return LoungeID(parsed), err
}
