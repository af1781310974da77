package service

import (
	"context"

	"twym/internal/contacts/models"
	id "twym/pkg/domain"
)

// PhoneContact is the loosely-typed payload a device address book exports.
// Type strings are free-form; unrecognized values fall back to sensible
// defaults rather than failing the import.
type PhoneContact struct {
	Name      string              `json:"name"`
	Company   string              `json:"company,omitempty"`
	Title     string              `json:"title,omitempty"`
	Notes     string              `json:"notes,omitempty"`
	Phones    []PhoneContactEntry `json:"phones,omitempty"`
	Emails    []PhoneContactEntry `json:"emails,omitempty"`
	Addresses []PhoneAddressEntry `json:"addresses,omitempty"`
}

type PhoneContactEntry struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

type PhoneAddressEntry struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Type       string `json:"type,omitempty"`
}

// ImportPhoneContact maps one phone contact into the schema and runs it
// through the dedup gate. Unspecified phone types default to mobile and
// email types to personal; notes become meeting notes.
func (s *Service) ImportPhoneContact(ctx context.Context, ownerID id.UserID, payload PhoneContact) (*CreateResult, error) {
	req := CreateContactRequest{
		Name:         payload.Name,
		Company:      payload.Company,
		Title:        payload.Title,
		MeetingNotes: payload.Notes,
		AcquiredVia:  models.AcquiredPhoneImport,
	}

	for i, entry := range payload.Phones {
		req.Phones = append(req.Phones, models.PhoneNumber{
			Number:    entry.Value,
			Type:      phoneType(entry.Type),
			IsPrimary: i == 0,
		})
	}
	for i, entry := range payload.Emails {
		req.Emails = append(req.Emails, models.EmailAddress{
			Address:   entry.Value,
			Type:      emailType(entry.Type),
			IsPrimary: i == 0,
		})
	}
	for i, entry := range payload.Addresses {
		req.Addresses = append(req.Addresses, models.Address{
			Street:     entry.Street,
			City:       entry.City,
			Country:    entry.Country,
			PostalCode: entry.PostalCode,
			Type:       addressType(entry.Type),
			IsPrimary:  i == 0,
		})
	}

	return s.Create(ctx, ownerID, req)
}

// ImportResult pairs each imported payload with its create outcome so the
// caller can report created vs. skipped-as-duplicate counts.
type ImportResult struct {
	Results    []*CreateResult `json:"results"`
	Created    int             `json:"created"`
	Duplicates int             `json:"duplicates"`
}

// ImportPhoneContacts imports a batch, continuing past duplicates.
func (s *Service) ImportPhoneContacts(ctx context.Context, ownerID id.UserID, payloads []PhoneContact) (*ImportResult, error) {
	out := &ImportResult{}
	for _, payload := range payloads {
		result, err := s.ImportPhoneContact(ctx, ownerID, payload)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, result)
		if result.Duplicate {
			out.Duplicates++
		} else {
			out.Created++
		}
	}
	return out, nil
}

func phoneType(raw string) models.PhoneType {
	switch models.PhoneType(raw) {
	case models.PhoneMobile, models.PhoneWork, models.PhoneHome, models.PhoneOther:
		return models.PhoneType(raw)
	default:
		return models.PhoneMobile
	}
}

func emailType(raw string) models.EmailType {
	switch models.EmailType(raw) {
	case models.EmailPersonal, models.EmailWork, models.EmailOther:
		return models.EmailType(raw)
	default:
		return models.EmailPersonal
	}
}

func addressType(raw string) models.AddressType {
	switch models.AddressType(raw) {
	case models.AddressHome, models.AddressWork, models.AddressOther:
		return models.AddressType(raw)
	default:
		return models.AddressOther
	}
}
