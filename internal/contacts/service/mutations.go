package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"twym/internal/contacts/identity"
	"twym/internal/contacts/models"
	"twym/internal/events"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/platform/sentinel"
	platformstrings "twym/pkg/platform/strings"
	"twym/pkg/requestcontext"
)

// getOwned loads a contact and enforces ownership. Missing contact is
// NotFound; a contact owned by someone else is BadRequest, matching the
// rest of the mutation surface.
func (s *Service) getOwned(ctx context.Context, ownerID id.UserID, contactID id.ContactID) (*models.Contact, error) {
	contact, err := s.store.FindByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contact")
	}
	if contact.OwnerID != ownerID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "contact does not belong to user")
	}
	return contact, nil
}

// EnsureOwned verifies a contact exists and belongs to the user without
// returning it. The files service uses this before any storage work.
func (s *Service) EnsureOwned(ctx context.Context, ownerID id.UserID, contactID id.ContactID) error {
	_, err := s.getOwned(ctx, ownerID, contactID)
	return err
}

// Get returns a single owned contact.
func (s *Service) Get(ctx context.Context, ownerID id.UserID, contactID id.ContactID) (*models.Contact, error) {
	return s.getOwned(ctx, ownerID, contactID)
}

// List returns the owner's non-deleted contacts.
func (s *Service) List(ctx context.Context, ownerID id.UserID) ([]*models.Contact, error) {
	contacts, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts")
	}
	return contacts, nil
}

// Search filters and orders the owner's non-deleted contacts. Tag filters
// are matched case-insensitively.
func (s *Service) Search(ctx context.Context, ownerID id.UserID, query models.SearchQuery) ([]*models.Contact, error) {
	if query.Sort == "" {
		query.Sort = models.SortDateAdded
	}
	query.Tags = platformstrings.DedupeAndTrimLower(query.Tags)
	contacts, err := s.store.Search(ctx, ownerID, query)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search contacts")
	}
	return contacts, nil
}

// AddTags unions new user tags into the contact, deduplicating and
// enforcing the per-tag length and total count limits.
func (s *Service) AddTags(ctx context.Context, ownerID id.UserID, contactID id.ContactID, tags []string) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}

	cleaned := platformstrings.DedupeAndTrim(tags)
	for _, tag := range cleaned {
		if utf8.RuneCountInString(tag) > s.cfg.MaxTagLength {
			return nil, dErrors.New(dErrors.CodeBadRequest,
				fmt.Sprintf("tag exceeds %d characters", s.cfg.MaxTagLength))
		}
	}

	merged := platformstrings.DedupeAndTrim(append(contact.UserTags, cleaned...))
	if len(merged) > s.cfg.MaxUserTags {
		return nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("contact cannot have more than %d tags", s.cfg.MaxUserTags))
	}

	contact.UserTags = merged
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// RemoveTags subtracts tags from the contact's user tag set. Removing a
// tag that is not present is a no-op, not an error.
func (s *Service) RemoveTags(ctx context.Context, ownerID id.UserID, contactID id.ContactID, tags []string) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}

	remove := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		remove[tag] = struct{}{}
	}
	kept := contact.UserTags[:0]
	for _, tag := range contact.UserTags {
		if _, drop := remove[tag]; !drop {
			kept = append(kept, tag)
		}
	}
	contact.UserTags = kept

	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// SetFavorite toggles the favorite flag.
func (s *Service) SetFavorite(ctx context.Context, ownerID id.UserID, contactID id.ContactID, favorite bool) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	contact.IsFavorite = favorite
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// SetPinned toggles the pinned flag.
func (s *Service) SetPinned(ctx context.Context, ownerID id.UserID, contactID id.ContactID, pinned bool) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	contact.IsPinned = pinned
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// UpdateNotes replaces the free-text meeting notes.
func (s *Service) UpdateNotes(ctx context.Context, ownerID id.UserID, contactID id.ContactID, notes string) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	contact.MeetingNotes = notes
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// AddPhone appends a phone number. A new primary demotes the old one.
func (s *Service) AddPhone(ctx context.Context, ownerID id.UserID, contactID id.ContactID, phone models.PhoneNumber) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	if phone.IsPrimary {
		for i := range contact.Phones {
			contact.Phones[i].IsPrimary = false
		}
	}
	contact.Phones = append(contact.Phones, phone)
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// AddEmail appends an email address. A new primary demotes the old one.
func (s *Service) AddEmail(ctx context.Context, ownerID id.UserID, contactID id.ContactID, email models.EmailAddress) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	if email.IsPrimary {
		for i := range contact.Emails {
			contact.Emails[i].IsPrimary = false
		}
	}
	contact.Emails = append(contact.Emails, email)
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// AddAddress appends a postal address.
func (s *Service) AddAddress(ctx context.Context, ownerID id.UserID, contactID id.ContactID, address models.Address) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	if address.IsPrimary {
		for i := range contact.Addresses {
			contact.Addresses[i].IsPrimary = false
		}
	}
	contact.Addresses = append(contact.Addresses, address)
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// AddLink appends a web link.
func (s *Service) AddLink(ctx context.Context, ownerID id.UserID, contactID id.ContactID, link models.Link) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	if link.IsPrimary {
		for i := range contact.Links {
			contact.Links[i].IsPrimary = false
		}
	}
	contact.Links = append(contact.Links, link)
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// SoftDelete marks the contact deleted. The row stays intact and
// restorable until the hard-delete sweep passes the grace period.
func (s *Service) SoftDelete(ctx context.Context, ownerID id.UserID, contactID id.ContactID) error {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return err
	}
	if contact.IsDeleted() {
		return nil
	}

	now := requestcontext.Now(ctx)
	contact.DeletedAt = &now
	if err := s.save(ctx, contact); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.Event{
		Type:      events.ContactDeleted,
		OwnerID:   ownerID,
		ContactID: contactID,
		Timestamp: now,
	})
	return nil
}

// Restore clears the soft-delete marker and the contact reappears in
// listings.
func (s *Service) Restore(ctx context.Context, ownerID id.UserID, contactID id.ContactID) (*models.Contact, error) {
	contact, err := s.getOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	if !contact.IsDeleted() {
		return contact, nil
	}

	contact.DeletedAt = nil
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.Event{
		Type:      events.ContactRestored,
		OwnerID:   ownerID,
		ContactID: contactID,
		Timestamp: requestcontext.Now(ctx),
	})
	return contact, nil
}

// Compare scores two owned contacts with the similarity primitive. Nothing
// in the creation path calls this; it backs manual duplicate review.
func (s *Service) Compare(ctx context.Context, ownerID id.UserID, aID, bID id.ContactID) (float64, error) {
	a, err := s.getOwned(ctx, ownerID, aID)
	if err != nil {
		return 0, err
	}
	b, err := s.getOwned(ctx, ownerID, bID)
	if err != nil {
		return 0, err
	}
	return identity.Similarity(a, b), nil
}

func (s *Service) save(ctx context.Context, contact *models.Contact) error {
	contact.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, contact); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save contact")
	}
	return nil
}
